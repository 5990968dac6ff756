package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/lmfit/internal/errors"
	"github.com/copyleftdev/lmfit/internal/optimization/models"
)

// maxBodyBytes bounds the size of a fit request.
const maxBodyBytes = 8 << 20

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/fit", s.handleFit)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/fit/{id}", s.handleCancel)
		r.Get("/models", s.handleModels)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleFit handles POST /api/v1/fit
func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apperrors.WriteError(w, badRequest(err, "Server.handleFit"))
		return
	}

	view, err := s.Start(&req)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.Status(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCancel handles DELETE /api/v1/fit/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	view, err := s.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ModelInfo describes a built-in model.
type ModelInfo struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

func listModels() []ModelInfo {
	names := models.Names()
	out := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		shape, err := models.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{Name: name, Params: shape.ParamNames()})
	}
	return out
}

// handleModels handles GET /api/v1/models
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listModels())
}
