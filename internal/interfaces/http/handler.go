package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookProcessor handles a decoded gateway event.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, evt entities.WebhookEvent) (usecases.WebhookResult, error)
}

// Authenticator issues dashboard tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Server groups what SetupRoutes mounts. Instances, Metrics and Ping are optional.
type Server struct {
	Relay         WebhookProcessor
	Auth          Authenticator
	Dashboard     DashboardService
	Instances     InstanceService
	Middleware    *Middleware
	WebhookAPIKey string
	Metrics       http.Handler
	Ping          func(ctx context.Context) error
}

func SetupRoutes(r *gin.Engine, s Server) {
	webhook := NewWebhookHandler(s.Relay, s.WebhookAPIKey)
	dashboard := NewDashboardHandler(s.Dashboard)
	admin := NewAdminHandler(s.Dashboard, s.Instances)

	r.Use(RequestLogger())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20))
	r.Use(s.Middleware.CORSMiddleware())

	r.GET("/healthz", healthHandler(s.Ping))
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics))
	}

	// Gateway webhook. The "by events" form appends the event to the path.
	hooks := r.Group("/webhook/evolution")
	hooks.Use(WebhookCORS())
	{
		hooks.OPTIONS("", webhook.Preflight)
		hooks.OPTIONS("/:event", webhook.Preflight)
		hooks.POST("", webhook.Receive)
		hooks.POST("/:event", webhook.Receive)
	}

	authGroup := r.Group("/api/auth")
	authGroup.Use(s.Middleware.RateLimit())
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if !ValidateLength(loginReq.Username, 1, MaxUsernameLength) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username"})
				return
			}
			token, err := s.Auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	api := r.Group("/api")
	api.Use(s.Middleware.AuthRequired())
	api.Use(s.Middleware.RateLimit())
	{
		api.GET("/dashboard/stats", dashboard.Stats)

		api.GET("/conversations", dashboard.ListConversations)
		api.GET("/conversations/:id/messages", dashboard.ListMessages)
		api.POST("/conversations/:id/messages", dashboard.SendMessage)
		api.PUT("/conversations/:id/status", dashboard.UpdateStatus)

		api.POST("/contacts", dashboard.CreateContact)
	}

	instances := api.Group("/instances")
	instances.Use(s.Middleware.AdminRequired())
	{
		instances.GET("", admin.ListInstances)
		instances.GET("/:name/qr", admin.InstanceQRCode)
		instances.GET("/:name/state", admin.InstanceState)
		if s.Instances != nil {
			instances.POST("", admin.CreateInstance)
			instances.POST("/:name/webhook", admin.ConfigureWebhook)
			instances.POST("/:name/connect", admin.Connect)
			instances.POST("/:name/restart", admin.Restart)
			instances.DELETE("/:name", admin.DeleteInstance)
		}
	}
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type WebhookHandler struct {
	relay  WebhookProcessor
	apiKey string
}

func NewWebhookHandler(relay WebhookProcessor, apiKey string) *WebhookHandler {
	return &WebhookHandler{relay: relay, apiKey: apiKey}
}

// Preflight answers CORS preflight with an empty 200.
func (h *WebhookHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Receive decodes a gateway event and hands it to the relay. Handled
// events answer 200; only a pipeline failure answers 500.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var evt entities.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		c.JSON(http.StatusBadRequest, usecases.WebhookResult{Success: false, Error: "invalid JSON body"})
		return
	}
	if evt.Event == "" {
		evt.Event = strings.Trim(c.Param("event"), "/")
	}

	if h.apiKey != "" {
		key := evt.APIKey
		if key == "" {
			key = c.GetHeader("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			zap.L().Warn("Webhook rejected: bad api key",
				zap.String("instance", evt.Instance),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, usecases.WebhookResult{Success: false, Error: "invalid api key"})
			return
		}
	}

	res, err := h.relay.HandleWebhook(c.Request.Context(), evt)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
