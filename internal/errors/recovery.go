package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/copyleftdev/lmfit/internal/logging"
)

// RecoveryMiddleware returns a middleware that recovers from panics and
// answers with a JSON 500.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Recovered from panic", map[string]interface{}{
					"error":  rec,
					"stack":  string(debug.Stack()),
					"method": r.Method,
					"path":   r.URL.Path,
					"query":  r.URL.RawQuery,
				})

				WriteJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorHandler is a middleware that logs responses with an error status.
func ErrorHandler(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status < http.StatusBadRequest {
				return
			}
			fields := map[string]interface{}{
				"status": rw.status,
				"method": r.Method,
				"path":   r.URL.Path,
				"query":  r.URL.RawQuery,
				"ip":     r.RemoteAddr,
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Error("Request error", fields)
				return
			}
			logger.Warn("Request rejected", fields)
		})
	}
}

// WriteJSON writes {"error": msg} with the given status.
func WriteJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// WriteError writes err as JSON with the status from HTTPStatus.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, HTTPStatus(err), err.Error())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code before writing the header.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
