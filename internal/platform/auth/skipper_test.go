package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextForRoute(path string) echo.Context {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
	c.SetPath(path)
	return c
}

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/metrics", true},
		{"/api/v1/triage", false},
		{"/api/v1/triage/queue", false},
		{"/health/extra", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := AuthSkipper(contextForRoute(tt.path)); got != tt.want {
			t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/metrics") {
		t.Error("expected /metrics to be public")
	}
	if IsPublicPath("/api/v1/triage") {
		t.Error("expected /api/v1/triage to be protected")
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	c := contextForRoute("/health")
	called := false
	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Errorf("expected /health to bypass auth, err=%v", err)
	}
}
