package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/lmfit/internal/errors"
)

// JSON-RPC 2.0 error codes
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, err)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "fit.start":
		var req FitRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.Start(&req)
		}
	case "fit.status":
		var req StatusRequest
		if err = decodeStatusParams(request.Params, &req); err == nil {
			result, err = s.Status(req.ID)
		}
	case "fit.cancel":
		var req StatusRequest
		if err = decodeStatusParams(request.Params, &req); err == nil {
			result, err = s.Cancel(req.ID)
		}
	case "models.list":
		result = listModels()
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusBadRequest {
			s.respondWithError(w, rpcInvalidParams, "Invalid params", request.ID, err)
			return
		}
		s.respondWithError(w, rpcServerError, "Server error", request.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

// decodeParams accepts either a params object or a one-element array
// holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	const op = "Server.decodeParams"

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apperrors.New("missing required parameters").WithOperation(op).WithStatus(http.StatusBadRequest)
	}
	if raw[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return badRequest(err, op)
		}
		if len(arr) != 1 {
			return apperrors.New("expected a single parameter object").WithOperation(op).WithStatus(http.StatusBadRequest)
		}
		raw = arr[0]
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err, op)
	}
	return nil
}

func decodeStatusParams(raw json.RawMessage, req *StatusRequest) error {
	if err := decodeParams(raw, req); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(err, "Server.decodeStatusParams")
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, cause error) {
	logger := s.logger.WithFields(map[string]interface{}{"code": code}).WithField("rpc_message", message)
	e := &rpcError{Code: code, Message: message}
	if cause != nil {
		e.Data = cause.Error()
		logger = logger.WithError(cause)
	}
	logger.Warn("JSON-RPC error")

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: e})
}
