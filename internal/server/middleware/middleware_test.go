package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth("s3cret", "/api/health")(okHandler)

	tests := []struct {
		name     string
		method   string
		target   string
		header   map[string]string
		wantCode int
	}{
		{name: "public path", method: http.MethodGet, target: "/api/health", wantCode: http.StatusOK},
		{name: "missing token", method: http.MethodGet, target: "/api/status", wantCode: http.StatusUnauthorized},
		{name: "bearer", method: http.MethodGet, target: "/api/status", header: map[string]string{"Authorization": "Bearer s3cret"}, wantCode: http.StatusOK},
		{name: "wrong bearer", method: http.MethodGet, target: "/api/status", header: map[string]string{"Authorization": "Bearer nope"}, wantCode: http.StatusUnauthorized},
		{name: "api key header", method: http.MethodPost, target: "/api/bot/start", header: map[string]string{"X-API-Key": "s3cret"}, wantCode: http.StatusOK},
		{name: "query token on ws", method: http.MethodGet, target: "/ws?token=s3cret", wantCode: http.StatusOK},
		{name: "query token elsewhere", method: http.MethodGet, target: "/api/status?token=s3cret", wantCode: http.StatusUnauthorized},
		{name: "preflight", method: http.MethodOptions, target: "/api/status", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.example"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "https://any.example"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://any.example"))
	assert.True(t, OriginAllowed([]string{"HTTPS://Dash.Example"}, "https://dash.example"))
	assert.False(t, OriginAllowed([]string{"https://dash.example"}, "https://other.example"))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bot/cycle", nil))
	id := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=502")
	assert.Contains(t, buf.String(), "request_id="+id)

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
