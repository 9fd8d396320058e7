package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf).With("instance", "a").WithComponent(ComponentCache)

	logger.Info("hello")
	out := buf.String()
	assert.Contains(t, out, "component=cache")
	assert.Contains(t, out, "instance=a")
	assert.NotContains(t, out, "component=app")
	assert.Equal(t, ComponentCache, logger.Component())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestErrAttr(t *testing.T) {
	a := Err(errors.New("boom"))
	assert.Equal(t, FieldError, a.Key)
	assert.Equal(t, "boom", a.Value.String())
	assert.True(t, Err(nil).Equal(slog.Attr{}))
}

func TestLogFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithOperation(OpCreate).
		WithReceipt("r1", "Starbucks", "15.50", "2025-01-15").
		WithRequestID("").
		WithError(nil)

	assert.Equal(t, OpCreate, f[FieldOperation])
	assert.Equal(t, "r1", f[FieldReceiptID])
	assert.NotContains(t, f, FieldRequestID)
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestMiddlewareAddsRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf).WithComponent(ComponentHTTP)

	var fromCtx *Logger
	h := middleware.RequestID(Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/receipts?limit=5", nil))

	require.NotNil(t, fromCtx)
	assert.Equal(t, ComponentHTTP, fromCtx.Component())
	out := buf.String()
	assert.Contains(t, out, "HTTP request completed")
	assert.Contains(t, out, "status_code=418")
	assert.Contains(t, out, "request_id=")
	assert.True(t, strings.Contains(out, "level=WARN"))
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}
