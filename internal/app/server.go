package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scriptsignal/internal/biz/service"
	"scriptsignal/internal/log"
)

const shutdownTimeout = 10 * time.Second

// NewRouter wires the signal endpoints and /metrics.
func NewRouter(h *service.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(Logger(), gin.Recovery())

	api := r.Group("/signals")
	{
		api.GET("", h.HandleList)
		api.POST("/:name/fire", h.HandleFire)
		api.GET("/:name/wait", h.HandleWait)
		api.GET("/:name/ws", h.HandleWebSocket)
		api.GET("/:name/sse", h.HandleSSE)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Run serves the hub until ctx is done. The hub is closed before the server
// shuts down so that streaming and waiting requests return.
func Run(ctx context.Context, cfg Config, hub *service.Hub) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(service.NewHandlers(hub, cfg.OutboxSize)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		hub.Close()
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("proto", c.Request.Proto).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Msg("request")
	}
}
