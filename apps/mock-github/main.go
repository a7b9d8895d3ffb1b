// Command mock-github serves a seeded, rate-limited GitHub contents API for
// running treemirror locally.
package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/treemirror/apps/mock-github/contents"
	"github.com/tilsley/treemirror/pkg/logging"
)

func main() {
	log := logging.New()

	s := contents.New()
	seedRepos(s)

	limit := envInt(log, "RATE_LIMIT", 0)
	window := envDuration(log, "RATE_WINDOW", time.Minute)
	if limit > 0 {
		s.SetQuota(limit, window)
	}
	s.PageSize = envInt(log, "PAGE_SIZE", 0)

	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)

	port := envOr("PORT", "9090")
	log.Info("mock github listening", "port", port, "rate_limit", limit, "window", window, "page_size", s.PageSize)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(log *slog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

func envDuration(log *slog.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}
