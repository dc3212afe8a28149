package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := LoggingMiddleware(nil, nil, inner)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status not propagated, got %d", rec.Code)
	}
	if seen == "" {
		t.Fatalf("request id missing from context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header and context request ids differ")
	}
}

func TestLoggingMiddlewareKeepsValidIncomingID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := LoggingMiddleware(nil, nil, inner)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-abc_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "client-abc_123" {
		t.Fatalf("valid incoming id must be kept, got %q", rec.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "bad id with spaces!" {
		t.Fatalf("invalid incoming id must be replaced")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/players", "/players"},
		{"/players/abc", "/players/:id"},
		{"/courses/abc", "/courses/:id"},
		{"/courses/abc/best-round", "/courses/:id/best-round"},
		{"/games/abc", "/games/:id"},
		{"/games/abc/scores", "/games/:id/scores"},
		{"/games/abc/snapshot", "/games/:id/snapshot"},
		{"/sessions/s1/messages", "/sessions/:id/messages"},
		{"/sessions/s1/subscribers", "/sessions/:id/subscribers"},
		{"/sessions/s1/subscribers/3", "/sessions/:id/subscribers"},
		{"/imports", "/imports"},
		{"/something/else", "/something/else"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.path); got != tc.want {
			t.Fatalf("normalizePath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
