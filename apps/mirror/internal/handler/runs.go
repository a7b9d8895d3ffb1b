package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// StartRun accepts an optional RunRequest body and starts a run under a new ID.
func (h *Handler) StartRun(c *gin.Context) {
	var req api.RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	runID := uuid.New().String()
	if err := h.runner.Start(c.Request.Context(), runID, req); err != nil {
		h.log.Error("start run failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}
	h.log.Info("run started", "run_id", runID)
	c.JSON(http.StatusAccepted, api.RunStatus{ID: runID, State: api.RunRunning})
}

// GetRun reports the state of a run and, once finished, its summary.
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	st, err := h.runner.GetStatus(c.Request.Context(), id)
	if errors.Is(err, mirror.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.log.Error("get run failed", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run status"})
		return
	}
	c.JSON(http.StatusOK, st)
}
