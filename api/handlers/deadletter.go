package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type DeadLetterHandler struct {
	queue  DeadLetters
	logger logger.Logger
}

func NewDeadLetterHandler(q DeadLetters, log logger.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{queue: q, logger: log}
}

func maxParam(c *gin.Context) (int, bool) {
	raw := c.Query("max")
	if raw == "" {
		return deadletter.DefaultDrainMax, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return deadletter.ClampMax(n), true
}

func (h *DeadLetterHandler) List(c *gin.Context) {
	max, ok := maxParam(c)
	if !ok {
		respondError(c, h.logger, http.StatusBadRequest, "max must be an integer", nil)
		return
	}
	entries, err := h.queue.List(c.Request.Context(), max)
	if err != nil {
		handleError(c, h.logger, "Failed to list dead letters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

func (h *DeadLetterHandler) Replay(c *gin.Context) {
	max, ok := maxParam(c)
	if !ok {
		respondError(c, h.logger, http.StatusBadRequest, "max must be an integer", nil)
		return
	}
	report, err := h.queue.Replay(c.Request.Context(), max)
	if err != nil {
		handleError(c, h.logger, "Failed to replay dead letters", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *DeadLetterHandler) Ack(c *gin.Context) {
	runID := c.Param("runId")
	if err := h.queue.Ack(c.Request.Context(), runID); err != nil {
		handleError(c, h.logger, "Failed to ack dead letter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter acknowledged", "runId": runID})
}

func (h *DeadLetterHandler) Discard(c *gin.Context) {
	runID := c.Param("runId")
	if err := h.queue.Discard(c.Request.Context(), runID); err != nil {
		handleError(c, h.logger, "Failed to discard dead letter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter discarded", "runId": runID})
}
