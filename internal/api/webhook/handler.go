package webhook

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/spothook/internal/metrics"
	"github.com/Alias1177/spothook/internal/trading/dispatch"
)

const (
	AuthHeader      = "X-Auth-Token"
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 64 << 10
)

// Dispatcher is the part of dispatch.Dispatcher the HTTP layer needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, body []byte) dispatch.Result
}

// NewRouter wires the webhook, health and metrics endpoints. Browsers may call
// from origins; with none listed any origin is allowed without credentials.
func NewRouter(d Dispatcher, origins ...string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors(origins))

	r.POST("/order", orderHandler(d))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

// orderHandler always answers 200; the outcome travels in the JSON body.
func orderHandler(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := zerolog.Ctx(ctx)

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			logger.Warn().Err(err).Msg("Error reading request body")
			c.JSON(http.StatusOK, gin.H{
				"error":      dispatch.KindBadRequest,
				"details":    gin.H{"reason": "unreadable request body"},
				"request_id": dispatch.RequestID(ctx),
			})
			return
		}

		res := d.Dispatch(ctx, c.GetHeader(AuthHeader), body)

		out := res.Body()
		out["request_id"] = dispatch.RequestID(ctx)
		c.JSON(http.StatusOK, out)
	}
}

// requestLogger assigns a request id and logs every request once it is served.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		logger := log.With().Str("request_id", id).Logger()
		ctx := logger.WithContext(dispatch.WithRequestID(c.Request.Context(), id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("remote", c.ClientIP()).
			Dur("took", time.Since(start)).
			Msg("Request served")
	}
}

// cors answers preflight requests itself. Listed origins are echoed with
// credentials allowed; an empty list or "*" allows any origin anonymously.
func cors(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	anyOrigin := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allowed[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case anyOrigin:
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+AuthHeader+", "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
