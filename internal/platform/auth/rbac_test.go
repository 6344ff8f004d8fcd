package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required []string
		wantCode int
	}{
		{"clinical role", []string{RoleNurse}, ClinicalRoles, http.StatusOK},
		{"registrar reads", []string{RoleRegistrar}, ReadRoles, http.StatusOK},
		{"registrar cannot write", []string{RoleRegistrar}, ClinicalRoles, http.StatusForbidden},
		{"admin bypass", []string{RoleAdmin}, ClinicalRoles, http.StatusOK},
		{"no roles", nil, ReadRoles, http.StatusForbidden},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(WithUser(req.Context(), User{ID: "u1"}, tt.roles))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := RequireRole(tt.required...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			err := h(c)

			if tt.wantCode == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) || httpErr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestRequireRole_MessageNamesRoles(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireRole(RoleUrologist, RoleNurse)(func(echo.Context) error { return nil })(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Message != "required role: urologist or nurse" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestPrimaryRole(t *testing.T) {
	ctx := WithUser(context.Background(), User{ID: "u1"}, []string{RoleUrologist, RoleAdmin})
	if got := PrimaryRole(ctx); got != RoleUrologist {
		t.Errorf("PrimaryRole = %q, want urologist", got)
	}
	if got := PrimaryRole(context.Background()); got != DefaultRole {
		t.Errorf("PrimaryRole without roles = %q, want %q", got, DefaultRole)
	}
}
