package middleware

import (
	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App holds the dependencies shared by all handlers.
//
// Queue is nil when the server runs without RabbitMQ. Auth is skipped
// entirely when neither Keyfunc nor MasterAPIKey is set.
type App struct {
	Graph        *graph.GraphClient
	Queue        queue.Channel
	Keyfunc      jwt.Keyfunc
	MasterAPIKey string
}

func (a *App) AuthEnabled() bool {
	return a.Keyfunc != nil || a.MasterAPIKey != ""
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
