package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// Clinic roles carried in the token's roles claim.
const (
	RoleUrologist = "urologist"
	RoleNurse     = "nurse"
	RoleRegistrar = "registrar"
	RoleAdmin     = "admin"
)

// DefaultRole labels authors whose token carried no role.
const DefaultRole = "clinician"

var (
	// ClinicalRoles may change a patient's care.
	ClinicalRoles = []string{RoleUrologist, RoleNurse}
	// ReadRoles may view a patient's record and schedule.
	ReadRoles = []string{RoleUrologist, RoleNurse, RoleRegistrar}
)

// RequireRole lets a request through when the user holds any of roles.
// Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				"required role: "+strings.Join(roles, " or "))
		}
	}
}

func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin || slices.Contains(roles, has) {
			return true
		}
	}
	return false
}

// PrimaryRole is the first role on the token, used to label note authors.
func PrimaryRole(ctx context.Context) string {
	if roles := RolesFromContext(ctx); len(roles) > 0 && roles[0] != "" {
		return roles[0]
	}
	return DefaultRole
}
