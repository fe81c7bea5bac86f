package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/skillforge/internal/platform/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "curricula")
	if err := os.MkdirAll(catalog, 0o755); err != nil {
		t.Fatal(err)
	}
	course := `
id: go-basics
topic: Go Basics
difficulty: beginner
modules:
  - week: 1
    title: Hello, World
    key_concepts: [packages]
  - week: 2
    title: Functions
    key_concepts: [closures]
`
	if err := os.WriteFile(filepath.Join(catalog, "go-basics.yaml"), []byte(course), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SKILLFORGE_LOCAL_STORE_PATH", filepath.Join(dir, "skillforge.db"))
	t.Setenv("SKILLFORGE_CATALOG_PATH", catalog)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func TestHealthEndpoints(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestNewApp_CatalogOnly(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	body := `{"owner":"farid","topic":"go basics","difficulty":"beginner"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/learners/farid/plans", nil)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Hello, World") {
		t.Errorf("list status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Unknown topics have no catalog course and no AI fallback.
	req = httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(`{"owner":"farid","topic":"quantum chemistry"}`))
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unknown topic status = %d, want 503", rec.Code)
	}
}

func TestNewApp_NoGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Curriculum.CatalogPath = ""
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("newApp() error = nil, want no generator error")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false, true},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, true, false},
		{"bad level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.cfg)

			logger.Debug("debug line")
			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			logger.Info("info line", "k", "v")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v (%q)", got, tt.wantJSON, buf.String())
			}
		})
	}
}
