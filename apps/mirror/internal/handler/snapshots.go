package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LatestSnapshot returns the newest snapshot of the configured reader.
func (h *Handler) LatestSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no queryable snapshot store configured"})
		return
	}
	snap, err := h.snapshots.Latest(c.Request.Context())
	if err != nil {
		h.log.Error("latest snapshot failed", "store", h.snapshots.Name(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read snapshot"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
