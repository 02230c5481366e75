package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var errInvalidUserID = errors.New("invalid user ID")

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// userFromClaims reads the id, role and permissions claims. The id may be a
// number or a numeric string. An admin without explicit permissions gets all
// of them.
func userFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	var userID int64
	switch id := claims["id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errInvalidUserID
		}
		userID = parsed
	case float64:
		userID = int64(id)
	default:
		return nil, errInvalidUserID
	}

	role := "user"
	if r, ok := claims["role"].(string); ok && r != "" {
		role = r
	}

	var permissions []string
	if raw, ok := claims["permissions"].([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				permissions = append(permissions, s)
			}
		}
	}
	if role == RoleAdmin && len(permissions) == 0 {
		permissions = allPermissions
	}

	return &AppUser{UserID: userID, Role: role, Permissions: permissions}, nil
}

// AuthMiddleware authenticates /api requests with the master API key or a
// JWT verified by App.Keyfunc. Without either configured every request runs
// as an anonymous user holding all permissions.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		app := ac.App
		if !app.AuthEnabled() {
			ac.User = &AppUser{Role: "anonymous", Permissions: allPermissions}
			return next(c)
		}

		unauthorized := func(msg string) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
		}

		token, ok := bearerToken(c.Request())
		if !ok {
			return unauthorized("Unauthorized")
		}

		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{Role: RoleAdmin, Permissions: allPermissions}
			return next(c)
		}
		if app.Keyfunc == nil {
			return unauthorized("Unauthorized")
		}

		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized("Unauthorized")
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized("Unauthorized")
		}

		user, err := userFromClaims(claims)
		if err != nil {
			return unauthorized("Invalid user ID")
		}
		ac.User = user

		return next(c)
	}
}
