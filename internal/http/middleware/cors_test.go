package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{
			name:        "listed origin",
			allowed:     []string{"https://widget.example.com"},
			method:      http.MethodGet,
			origin:      "https://widget.example.com",
			wantOrigin:  "https://widget.example.com",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "unknown origin gets no headers",
			allowed:     []string{"https://widget.example.com"},
			method:      http.MethodGet,
			origin:      "https://evil.example",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "wildcard echoes origin",
			allowed:     []string{" * "},
			method:      http.MethodPost,
			origin:      "https://any.example",
			wantOrigin:  "https://any.example",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:       "preflight short circuits",
			allowed:    []string{"https://widget.example.com"},
			method:     http.MethodOptions,
			origin:     "https://widget.example.com",
			preflight:  true,
			wantOrigin: "https://widget.example.com",
			wantStatus: http.StatusNoContent,
		},
		{
			name:        "options without request method passes through",
			allowed:     []string{"https://widget.example.com"},
			method:      http.MethodOptions,
			origin:      "https://widget.example.com",
			wantOrigin:  "https://widget.example.com",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "no origin header",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/v1/availability", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantHandler, called)
			assert.Equal(t, tc.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantOrigin == "" {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCORSExposesRetryAfter(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set("Origin", "https://widget.example.com")
	rec := httptest.NewRecorder()
	CORS([]string{"https://widget.example.com"})(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "Authorization, Content-Type, X-Tenant-Id", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, POST, PUT, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}
