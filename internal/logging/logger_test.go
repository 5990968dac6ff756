package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithField("job", "abc")

	logger.Debug("hidden")
	logger.Info("fit started", map[string]interface{}{"model": "linear"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "fit started", e["message"])
	assert.Equal(t, "abc", e["job"])
	assert.Equal(t, "linear", e["model"])
	assert.Contains(t, e["caller"], "logging/logger_test.go:")
	assert.NotEmpty(t, e["timestamp"])
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	base := New(InfoLevel, &buf)
	base.WithField("job_id", "j1").WithError(errors.New("model exploded")).Warn("fit failed")
	base.Info("unrelated")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "j1", entries[0]["job_id"])
	assert.Equal(t, "model exploded", entries[0]["error"])
	assert.NotContains(t, entries[1], "error")
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf).WithFormat(TextFormat)

	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("slow fit")

	line := buf.String()
	assert.Contains(t, line, " WARN slow fit ")
	assert.Contains(t, line, " a=1 b=2 caller=logging/logger_test.go:")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestShouldLog(t *testing.T) {
	tests := []struct {
		level LogLevel
		entry LogLevel
		want  bool
	}{
		{DebugLevel, DebugLevel, true},
		{InfoLevel, DebugLevel, false},
		{InfoLevel, ErrorLevel, true},
		{ErrorLevel, WarnLevel, false},
		{"bogus", InfoLevel, false},
		{InfoLevel, "bogus", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level)+"/"+string(tt.entry), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.level, nil).shouldLog(tt.entry))
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "warn", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, logger.level)
	assert.Equal(t, TextFormat, logger.format)

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)

	logger, err = NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.level)
	assert.Equal(t, JSONFormat, logger.format)
}

func TestZapLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).Named("lm").With(zap.String("job", "j1"))

	zl.Debug("iteration", zap.Int("iter", 1))
	zl.Info("fit finished",
		zap.Int("nfev", 7),
		zap.Float64("chi2", 2.75),
		zap.Bool("converged", true),
		zap.Error(assert.AnError))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "fit finished", e["message"])
	assert.Equal(t, "lm", e["logger"])
	assert.Equal(t, "j1", e["job"])
	assert.Equal(t, float64(7), e["nfev"])
	assert.Equal(t, 2.75, e["chi2"])
	assert.Equal(t, true, e["converged"])
	assert.Equal(t, assert.AnError.Error(), e["error"])
	assert.Contains(t, e["caller"], "logging/logger_test.go:")
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0]["message"])
	assert.NotEmpty(t, entries[0]["request_id"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
	assert.Equal(t, "/ping", entries[1]["path"])
}
