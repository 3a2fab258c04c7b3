// Package middleware provides the HTTP middleware stack.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"watcher/internal/server/api/response"
	"watcher/internal/server/config"
	"watcher/internal/server/service"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Middleware represents middleware manager
type Middleware struct {
	logger *zap.Logger
	config *config.Config
}

// New creates a new middleware manager
func New(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		logger: logger,
		config: cfg,
	}
}

// RequestID adds request ID to context
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs request details
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		requestID := c.GetString("request_id")

		c.Next()

		m.logger.Info("request completed",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Recovery recovers from panics
func (m *Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 2048)
				n := runtime.Stack(buf, false)

				var errMsg string
				switch e := err.(type) {
				case error:
					errMsg = e.Error()
				default:
					errMsg = fmt.Sprintf("%v", e)
				}

				m.logger.Error("panic recovered",
					zap.String("error", errMsg),
					zap.String("stack", string(buf[:n])))

				response.New(c, m.logger).Error(http.StatusInternalServerError,
					errors.New("internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Secure adds security headers
func (m *Middleware) Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// Cors handles CORS
func (m *Middleware) Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", strings.Join(m.config.API.CORS.AllowedOrigins, ","))
		c.Header("Access-Control-Allow-Methods", strings.Join(m.config.API.CORS.AllowedMethods, ","))
		c.Header("Access-Control-Allow-Headers", strings.Join(m.config.API.CORS.AllowedHeaders, ","))
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit implements per-IP fixed-window rate limiting
func (m *Middleware) RateLimit() gin.HandlerFunc {
	type client struct {
		count    int
		lastSeen time.Time
	}

	var mu sync.Mutex
	clients := make(map[string]*client)

	return func(c *gin.Context) {
		if !m.config.API.RateLimit.Enabled {
			c.Next()
			return
		}

		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{lastSeen: now}
			clients[ip] = cl
		}
		if now.Sub(cl.lastSeen) > m.config.API.RateLimit.Window {
			cl.count = 0
			cl.lastSeen = now
		}
		cl.count++
		over := cl.count > m.config.API.RateLimit.Requests
		mu.Unlock()

		if over {
			response.New(c, m.logger).Error(http.StatusTooManyRequests,
				errors.New("rate limit exceeded"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// AgentAuth authenticates agent-scoped requests. Both credential headers
// must be present and the pair must match a stored agent; the path's agent
// id, when present, must match the authenticated agent.
func (m *Middleware) AgentAuth(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := response.New(c, m.logger)

		apiKey := c.GetHeader("X-Api-Key")
		secret := c.GetHeader("X-Secret")
		if apiKey == "" || secret == "" {
			resp.Unauthorized(errors.New("missing credentials"))
			c.Abort()
			return
		}

		agent, err := svc.Authenticate(c.Request.Context(), apiKey, secret)
		if err != nil {
			resp.Unauthorized(types.ErrInvalidCredentials)
			c.Abort()
			return
		}

		if id := c.Param("id"); id != "" && id != agent.ID {
			resp.Unauthorized(types.ErrInvalidCredentials)
			c.Abort()
			return
		}

		c.Set("agent", agent)
		c.Next()
	}
}

// AgentFromContext returns the authenticated agent set by AgentAuth
func AgentFromContext(c *gin.Context) (*types.Agent, bool) {
	v, ok := c.Get("agent")
	if !ok {
		return nil, false
	}
	agent, ok := v.(*types.Agent)
	return agent, ok
}
