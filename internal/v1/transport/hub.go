package transport

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/auth"
	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/roomstore"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ConnectionLimiter guards the WebSocket upgrade itself (per-IP) plus the
// per-user check applied once a JOIN payload names a user.
type ConnectionLimiter interface {
	UserRateLimiter
	CheckWebSocket(c *gin.Context) bool
}

// Hub upgrades incoming HTTP requests to WebSocket connections and hands
// each one off to a new Client. Unlike a video room hub, it owns no room
// registry of its own - that's roomstore.Store's job - so Hub is a thin,
// largely stateless front door.
type Hub struct {
	store          *roomstore.Store
	validator      auth.TokenValidator
	limiter        ConnectionLimiter
	allowedOrigins []string
	authMode       string
	queueSize      int
	keepalive      time.Duration
	typingExpiry   time.Duration
}

// Config bundles Hub's construction parameters.
type Config struct {
	Store          *roomstore.Store
	Validator      auth.TokenValidator
	Limiter        ConnectionLimiter
	AllowedOrigins []string
	AuthMode       string // "mock" or "jwt"
	QueueSize      int
	Keepalive      time.Duration
	TypingExpiry   time.Duration
}

// NewHub builds a Hub from cfg.
func NewHub(cfg Config) *Hub {
	return &Hub{
		store:          cfg.Store,
		validator:      cfg.Validator,
		limiter:        cfg.Limiter,
		allowedOrigins: cfg.AllowedOrigins,
		authMode:       cfg.AuthMode,
		queueSize:      cfg.QueueSize,
		keepalive:      cfg.Keepalive,
		typingExpiry:   cfg.TypingExpiry,
	}
}

var upgrader = func(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, a := range allowed {
				allowedURL, err := url.Parse(a)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}
}

// ServeWs upgrades the request to a WebSocket connection and starts the
// client actor. In AUTH_MODE=jwt, a bearer token is required as a query
// parameter and validated before upgrade; in AUTH_MODE=mock (the default -
// this relay's chat identity carries no authenticated claim), the upgrade
// proceeds unconditionally and identity is established later by the
// client's own join_chat payload.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	if h.authMode == "jwt" {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
			return
		}
		if _, err := h.validator.ValidateToken(token); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
	}

	up := upgrader(h.allowedOrigins)
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, h.store, h.queueSize, h.keepalive, h.typingExpiry, h.limiter)
	metrics.ActiveWebSocketConnections.Inc()
	client.Serve()
}
