package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const webhookPrefix = "/webhook/"

// Context keys set by AuthRequired
const (
	ctxUserID   = "user_id"
	ctxTenantID = "tenant_id"
	ctxRole     = "role"
	ctxUsername = "username"
)

// Limiters unused for limiterIdleTTL are dropped on the next sweep.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Middleware struct {
	jwtSecret    []byte
	limit        rate.Limit
	burst        int
	rateLimiters map[string]*clientLimiter
	lastSweep    time.Time
	now          func() time.Time
	mu           sync.Mutex
}

func NewMiddleware(secret string, rps float64, burst int) *Middleware {
	return &Middleware{
		jwtSecret:    []byte(secret),
		limit:        rate.Limit(rps),
		burst:        burst,
		rateLimiters: make(map[string]*clientLimiter),
		lastSweep:    time.Now(),
		now:          time.Now,
	}
}

func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		tenantID, _ := claims["tenant_id"].(string)
		if !ok || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has no tenant"})
			return
		}

		// JWT numbers decode as float64
		if uid, ok := claims["user_id"].(float64); ok {
			c.Set(ctxUserID, int(uid))
		}
		c.Set(ctxTenantID, tenantID)
		c.Set(ctxRole, claims["role"])
		c.Set(ctxUsername, claims["username"])

		c.Next()
	}
}

// AdminRequired must follow AuthRequired.
func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(ctxRole); role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RateLimit applies a token bucket per key. Keys default to the client IP;
// authenticated routes are keyed by user.
func (m *Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid, ok := c.Get(ctxUserID); ok {
			key = fmt.Sprintf("user:%v", uid)
		}

		limiter := m.limiterFor(key)
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (m *Middleware) limiterFor(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= limiterIdleTTL {
		for k, cl := range m.rateLimiters {
			if now.Sub(cl.lastSeen) >= limiterIdleTTL {
				delete(m.rateLimiters, k)
			}
		}
		m.lastSweep = now
	}

	cl, ok := m.rateLimiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.rateLimiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// CORSMiddleware allows cross-origin dashboard requests. Webhook routes
// carry their own headers.
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, webhookPrefix) {
			c.Next()
			return
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// WebhookCORS sets the permissive headers the gateway and browser tools expect.
func WebhookCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		c.Next()
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// RequestSizeLimiter limits request body size
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// RequestLogger writes one zap line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			zap.L().Warn("Request failed", fields...)
			return
		}
		zap.L().Debug("Request served", fields...)
	}
}
