package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/flowboard/backend/api/handler"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Task     *apiHandler.TaskHandler
	User     *apiHandler.UserHandler
	Activity *apiHandler.ActivityHandler
	Health   *apiHandler.HealthHandler
	WS       fasthttp.RequestHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/logout", handlers.Auth.Logout)

	// The websocket endpoint authenticates during its own handshake.
	r.GET("/ws", handlers.WS)

	// Protected routes
	r.GET("/api/v1/board", authMiddleware(handlers.Task.GetBoard))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.PATCH("/api/v1/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	r.POST("/api/v1/tasks/{id}/move", authMiddleware(handlers.Task.MoveTask))
	r.POST("/api/v1/tasks/{id}/assign", authMiddleware(handlers.Task.AssignTask))
	r.POST("/api/v1/tasks/{id}/smart-assign", authMiddleware(handlers.Task.SmartAssignTask))
	r.POST("/api/v1/tasks/{id}/comments", authMiddleware(handlers.Task.AddComment))
	r.POST("/api/v1/tasks/{id}/archive", authMiddleware(handlers.Task.ArchiveTask))
	r.POST("/api/v1/tasks/{id}/resolve", authMiddleware(handlers.Task.ResolveConflict))

	r.GET("/api/v1/users", authMiddleware(handlers.User.ListUsers))
	r.GET("/api/v1/users/{id}", authMiddleware(handlers.User.GetUser))

	r.GET("/api/v1/activities", authMiddleware(handlers.Activity.Recent))
	r.POST("/api/v1/activities/prune", authMiddleware(handlers.Activity.Prune))

	return r
}
