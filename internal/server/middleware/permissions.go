package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	PermissionGraphRead  = "graph.read"
	PermissionGraphWrite = "graph.write"
)

const RoleAdmin = "admin"

var allPermissions = []string{
	PermissionGraphRead,
	PermissionGraphWrite,
}

// impliedPermissions lists what each permission grants besides itself.
var impliedPermissions = map[string][]string{
	PermissionGraphWrite: {PermissionGraphRead},
}

// HasPermission reports whether user holds permission directly, through an
// implying permission, or by being an admin.
func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	if user.Role == RoleAdmin {
		return true
	}
	for _, p := range user.Permissions {
		if p == permission || slices.Contains(impliedPermissions[p], permission) {
			return true
		}
	}
	return false
}

// RequirePermission rejects requests whose user lacks any of permissions.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			var missing []string
			for _, p := range permissions {
				if !HasPermission(user, p) {
					missing = append(missing, p)
				}
			}
			if len(missing) > 0 {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "Forbidden: missing permission " + strings.Join(missing, ", "),
				})
			}

			return next(c)
		}
	}
}
