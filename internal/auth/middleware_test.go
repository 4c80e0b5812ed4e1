package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestMiddlewareRoundTrip(t *testing.T) {
	orgID := uuid.New()
	token, err := generateToken(orgID)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(func(c echo.Context) error {
		got, err := GetOrgIDFromContext(c)
		if err != nil {
			t.Fatalf("org id missing from context: %v", err)
		}
		if got != orgID {
			t.Errorf("org id = %v, want %v", got, orgID)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { t.Fatal("next should not run"); return nil }

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := Middleware(next)(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusUnauthorized {
				t.Fatalf("err = %v, want 401", err)
			}
		})
	}
}
