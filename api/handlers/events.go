package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type EventHandler struct {
	service Intake
	logger  logger.Logger
}

func NewEventHandler(service Intake, log logger.Logger) *EventHandler {
	return &EventHandler{service: service, logger: log}
}

// ObjectCreatedRequest is the storage notification body.
type ObjectCreatedRequest struct {
	EventID     string    `json:"eventId"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key" binding:"required"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	OwnerID     string    `json:"ownerId" binding:"required"`
	BookID      string    `json:"bookId"`
	Strategy    string    `json:"strategy"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// ObjectCreated accepts a storage notification and queues a run.
func (h *EventHandler) ObjectCreated(c *gin.Context) {
	var req ObjectCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, "Invalid event payload", err)
		return
	}

	acc, err := h.service.ObjectCreated(c.Request.Context(), models.UploadEvent{
		EventID:     req.EventID,
		Bucket:      req.Bucket,
		Key:         req.Key,
		ContentType: req.ContentType,
		Size:        req.Size,
		OwnerID:     req.OwnerID,
		BookID:      req.BookID,
		Strategy:    models.Strategy(req.Strategy),
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		handleError(c, h.logger, "Failed to accept upload event", err)
		return
	}
	c.JSON(http.StatusAccepted, acc)
}

// Upload accepts one cover as multipart field "file".
func (h *EventHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	acc, err := h.service.Upload(c.Request.Context(), callerID(c), file, header, models.Strategy(c.Query("strategy")))
	if err != nil {
		handleError(c, h.logger, "Failed to upload cover", err)
		return
	}
	c.JSON(http.StatusAccepted, acc)
}

// UploadBatch accepts several covers as multipart field "files".
func (h *EventHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, h.logger, http.StatusBadRequest, "Invalid form data", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respondError(c, h.logger, http.StatusBadRequest, "No files provided", nil)
		return
	}

	accepted, err := h.service.UploadBatch(c.Request.Context(), callerID(c), files, models.Strategy(c.Query("strategy")))
	if err != nil && len(accepted) == 0 {
		handleError(c, h.logger, "Failed to upload covers", err)
		return
	}

	resp := gin.H{
		"message":  fmt.Sprintf("Processing %d of %d covers", len(accepted), len(files)),
		"accepted": accepted,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusAccepted, resp)
}
