package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/bookmeta/pkg/logger"
)

type BookHandler struct {
	service Intake
	logger  logger.Logger
}

func NewBookHandler(service Intake, log logger.Logger) *BookHandler {
	return &BookHandler{service: service, logger: log}
}

// Extract queues a manual retry. It never waits for the run.
func (h *BookHandler) Extract(c *gin.Context) {
	acc, err := h.service.RequestExtraction(c.Request.Context(), c.Param("bookId"), callerID(c), c.Query("strategy"))
	if err != nil {
		handleError(c, h.logger, "Failed to request extraction", err)
		return
	}
	c.JSON(http.StatusAccepted, acc)
}

func (h *BookHandler) Metadata(c *gin.Context) {
	view, err := h.service.Metadata(c.Request.Context(), c.Param("bookId"), callerID(c))
	if err != nil {
		handleError(c, h.logger, "Failed to get metadata", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
