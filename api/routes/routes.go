package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/bookmeta/api/handlers"
	"github.com/feichai0017/bookmeta/api/middleware"
)

// OperatorRole is the JWT role allowed to manage the dead-letter channel.
const OperatorRole = "operator"

type Options struct {
	AllowedOrigins []string
	Auth           middleware.AuthConfig
	// EventSecret signs object-created notifications.
	EventSecret string
}

// SetupRoutes registers every route on r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")
	v1.GET("/health", handlers.Health)

	// storage notifications come from the object store, not a user
	v1.POST("/events/object-created", middleware.VerifySignature(opts.EventSecret), h.Events.ObjectCreated)

	authed := v1.Group("")
	authed.Use(middleware.Auth(opts.Auth))

	uploads := authed.Group("/uploads")
	{
		uploads.POST("", h.Events.Upload)
		uploads.POST("/batch", h.Events.UploadBatch)
	}

	books := authed.Group("/books")
	{
		books.POST("/:bookId/extract", h.Books.Extract)
		books.GET("/:bookId/metadata", h.Books.Metadata)
	}

	dl := authed.Group("/dead-letter")
	dl.Use(middleware.RequireRole(OperatorRole))
	{
		dl.GET("", h.DeadLetter.List)
		dl.POST("/replay", h.DeadLetter.Replay)
		dl.DELETE("/:runId", h.DeadLetter.Ack)
		dl.POST("/:runId/discard", h.DeadLetter.Discard)
	}
}
