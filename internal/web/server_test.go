package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultServerConfigFromEnv(t *testing.T) {
	t.Setenv(EnvListenAddr, "")
	t.Setenv(EnvDevMode, "")
	cfg, err := DefaultServerConfigFromEnv(":8080")
	if err != nil || cfg.ListenAddr != ":8080" || cfg.DevMode {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
	t.Setenv(EnvListenAddr, ":9000")
	t.Setenv(EnvDevMode, "true")
	cfg, err = DefaultServerConfigFromEnv(":8080")
	if err != nil || cfg.ListenAddr != ":9000" || !cfg.DevMode {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
	t.Setenv(EnvDevMode, "maybe")
	if _, err := DefaultServerConfigFromEnv(":8080"); err == nil {
		t.Fatal("want parse error")
	}
	t.Setenv(EnvDevMode, "")
	t.Setenv(EnvListenAddr, "8080")
	if _, err := DefaultServerConfigFromEnv(":8080"); err == nil {
		t.Fatal("want listen address error")
	}
	t.Setenv(EnvListenAddr, "")
	t.Setenv(EnvStaticDir, "/srv/ui")
	cfg, err = DefaultServerConfigFromEnv(":8080")
	if err != nil || cfg.StaticDir != "/srv/ui" {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
}

func TestDevCORS(t *testing.T) {
	s := NewHTTPServer(ServerConfig{DevMode: true}, APIV1Deps{}, nil)
	h := s.Handler()

	tests := []struct {
		name          string
		method        string
		origin        string
		requestMethod string
		wantCode      int
		wantOrigin    string
		wantMethods   bool
	}{
		{"preflight", http.MethodOptions, "http://localhost:5173", "PUT", http.StatusNoContent, "http://localhost:5173", true},
		{"plain options falls through", http.MethodOptions, "http://localhost:5173", "", http.StatusNotFound, "http://localhost:5173", false},
		{"no origin", http.MethodOptions, "", "PUT", http.StatusNotFound, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/v1/nope", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status=%d want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("allow-origin=%q want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods") != ""; got != tt.wantMethods {
				t.Fatalf("allow-methods present=%v want %v", got, tt.wantMethods)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	s := NewHTTPServer(ServerConfig{}, APIV1Deps{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestExtraRoutes(t *testing.T) {
	s := NewHTTPServer(ServerConfig{}, APIV1Deps{}, nil)
	s.Extra = func(mux *http.ServeMux) {
		mux.HandleFunc("/sim/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sim/ping", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestStartStop(t *testing.T) {
	s := NewHTTPServer(ServerConfig{ListenAddr: "127.0.0.1:0"}, APIV1Deps{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addr := s.ListenAddr()
	res, err := http.Get("http://" + addr + "/api/v1/nothing")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", res.StatusCode)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("restart after Stop must fail")
	}
}
