package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openlgu/badyet/internal/db"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(Config{Host: "127.0.0.1", Port: 0}, database, nil)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestFeatureRoutesMountOnRouter(t *testing.T) {
	s := newTestServer(t)
	s.Router().Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t)
	if err := s.Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown before start should be a no-op: %v", err)
	}
}
