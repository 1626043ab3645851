package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/bookmeta/api/middleware"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/extraction"
	"github.com/feichai0017/bookmeta/internal/service/intake"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// Intake is the part of the intake service the handlers call.
type Intake interface {
	ObjectCreated(ctx context.Context, ev models.UploadEvent) (*intake.Accepted, error)
	Upload(ctx context.Context, ownerID string, file multipart.File, header *multipart.FileHeader, strategy models.Strategy) (*intake.Accepted, error)
	UploadBatch(ctx context.Context, ownerID string, files []*multipart.FileHeader, strategy models.Strategy) ([]*intake.Accepted, error)
	RequestExtraction(ctx context.Context, bookID, callerID, strategy string) (*intake.Accepted, error)
	Metadata(ctx context.Context, bookID, callerID string) (*intake.MetadataView, error)
}

// DeadLetters is the operator surface of the dead-letter channel.
type DeadLetters interface {
	List(ctx context.Context, max int) ([]models.DeadLetterEntry, error)
	Replay(ctx context.Context, max int) (*extraction.ReplayReport, error)
	Ack(ctx context.Context, runID string) error
	Discard(ctx context.Context, runID string) error
}

type Handlers struct {
	Events     *EventHandler
	Books      *BookHandler
	DeadLetter *DeadLetterHandler
}

func NewHandlers(svc Intake, dl DeadLetters, log logger.Logger) *Handlers {
	return &Handlers{
		Events:     NewEventHandler(svc, log),
		Books:      NewBookHandler(svc, log),
		DeadLetter: NewDeadLetterHandler(dl, log),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err with the status its class maps to.
func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	respondError(c, log, statusFor(err), message, err)
}

func respondError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = string(apperr.CodeOf(err))
	}
	c.AbortWithStatusJSON(status, resp)
}

func callerID(c *gin.Context) string {
	return middleware.UserID(c)
}
