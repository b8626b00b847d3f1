// Package api assembles the HTTP surface of the bot.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solana-buybot/internal/logger"
)

// Deps are the handlers mounted by NewRouter. Nil entries are not mounted.
type Deps struct {
	Webhook gin.HandlerFunc // POST /helius
	Health  http.Handler    // GET /healthz
	Feed    http.Handler    // GET /ws
	Metrics http.Handler    // GET /metrics, defaults to promhttp.Handler()
}

// NewRouter sets up HTTP routes:
//
//	GET  /         liveness, plain "ok"
//	GET  /healthz  dependency status (JSON)
//	GET  /metrics  Prometheus
//	GET  /ws       live alert feed
//	POST /helius   webhook ingress
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.Component("http")))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	if d.Health != nil {
		r.GET("/healthz", gin.WrapH(d.Health))
	}

	m := d.Metrics
	if m == nil {
		m = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(m))

	if d.Feed != nil {
		r.GET("/ws", gin.WrapH(d.Feed))
	}
	if d.Webhook != nil {
		r.POST("/helius", d.Webhook)
	}
	return r
}

// requestLogger logs one line per request. Scrapes and health probes are
// logged at debug.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		switch c.FullPath() {
		case "/", "/healthz", "/metrics":
			level = slog.LevelDebug
		}
		log.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
