package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/artifact"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/pipeline"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/query"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App bundles the shared clients handlers need. It is built once at
// startup and attached to every request context.
type App struct {
	DBConn *pgxpool.Pool
	Queue  *amqp091.Channel
	Key    *keyfunc.Keyfunc
	S3     *s3.Client

	Documents    store.DocumentStore
	Tracker      *progress.Tracker
	Artifacts    *artifact.Store
	Orchestrator *pipeline.Orchestrator
	Engine       *query.Engine

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
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
