// Package handler exposes mirror runs and stored snapshots over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/treemirror/apps/mirror/internal/execution"
	"github.com/tilsley/treemirror/apps/mirror/internal/store"
)

// Handler translates HTTP requests into runner and store calls.
type Handler struct {
	runner    execution.Runner
	snapshots store.Reader
	log       *slog.Logger
}

// RegisterRoutes mounts the treemirror API onto r. snapshots may be nil when
// no queryable store is configured; metrics may be nil to skip /metrics.
func RegisterRoutes(r *gin.Engine, runner execution.Runner, snapshots store.Reader, metrics http.Handler, log *slog.Logger) {
	h := &Handler{runner: runner, snapshots: snapshots, log: log}

	r.GET("/health", h.Health)

	r.POST("/runs", h.StartRun)
	r.GET("/runs/:id", h.GetRun)

	r.GET("/snapshots/latest", h.LatestSnapshot)

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
