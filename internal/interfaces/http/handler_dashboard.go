package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardService is the tenant-scoped operator API.
type DashboardService interface {
	ListConversations(ctx context.Context, tenantID, status string) ([]entities.Conversation, error)
	ListMessages(ctx context.Context, tenantID, conversationID string) ([]entities.Message, error)
	SendAgentReply(ctx context.Context, tenantID, conversationID, agentName, text string) (*entities.Message, error)
	UpdateStatus(ctx context.Context, tenantID, conversationID, status string) error
	CreateContact(ctx context.Context, tenantID, name, phone string) (*entities.Contact, error)
	ListInstances(ctx context.Context, tenantID string) ([]entities.Instance, error)
	InstanceQRCode(ctx context.Context, tenantID, name string) ([]byte, error)
	InstanceState(ctx context.Context, tenantID, name string) (string, error)
	Stats(ctx context.Context, tenantID string, days int) ([]entities.DailyUsage, error)
}

type DashboardHandler struct {
	dashboard DashboardService
}

func NewDashboardHandler(dashboard DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// getTenantID extracts tenant_id from JWT context
func getTenantID(c *gin.Context) string {
	v, _ := c.Get(ctxTenantID)
	s, _ := v.(string)
	return s
}

func getAgentName(c *gin.Context) string {
	if v, ok := c.Get(ctxUsername); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "Agent"
}

// respondError maps usecase errors onto status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrNotFound), errors.Is(err, usecases.ErrNoQRCode):
		status = http.StatusNotFound
	case errors.Is(err, usecases.ErrInvalidStatus), errors.Is(err, usecases.ErrEmptyReply),
		errors.Is(err, usecases.ErrInvalidPhone):
		status = http.StatusBadRequest
	case errors.Is(err, usecases.ErrConversationConflict), errors.Is(err, usecases.ErrNoInstance),
		errors.Is(err, usecases.ErrInstanceExists), errors.Is(err, usecases.ErrContactTaken):
		status = http.StatusConflict
	case errors.Is(err, usecases.ErrGatewayUnavailable), errors.Is(err, usecases.ErrWebhookNotConfigured):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("Dashboard request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *DashboardHandler) ListConversations(c *gin.Context) {
	list, err := h.dashboard.ListConversations(c.Request.Context(), getTenantID(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []entities.Conversation{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *DashboardHandler) ListMessages(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}
	list, err := h.dashboard.ListMessages(c.Request.Context(), getTenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []entities.Message{}
	}
	c.JSON(http.StatusOK, list)
}

// SendMessage sends an agent reply through the gateway
func (h *DashboardHandler) SendMessage(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	content := SanitizeString(payload.Content)
	if !ValidateLength(content, 1, MaxReplyLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content must be between 1 and 4096 characters"})
		return
	}

	msg, err := h.dashboard.SendAgentReply(c.Request.Context(), getTenantID(c), id, getAgentName(c), content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *DashboardHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.dashboard.UpdateStatus(c.Request.Context(), getTenantID(c), id, payload.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": payload.Status})
}

// CreateContact registers a customer by hand
func (h *DashboardHandler) CreateContact(c *gin.Context) {
	var payload struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	name := TruncateString(SanitizeString(payload.Name), MaxContactNameLength)
	if !ValidateLength(payload.Phone, 1, MaxPhoneLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone"})
		return
	}

	contact, err := h.dashboard.CreateContact(c.Request.Context(), getTenantID(c), name, payload.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// Stats returns daily message counts for the tenant
func (h *DashboardHandler) Stats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	usage, err := h.dashboard.Stats(c.Request.Context(), getTenantID(c), days)
	if err != nil {
		respondError(c, err)
		return
	}

	var sent, received int
	for _, d := range usage {
		sent += d.MessagesSent
		received += d.MessagesReceived
	}
	c.JSON(http.StatusOK, gin.H{
		"days":           usage,
		"total_sent":     sent,
		"total_received": received,
	})
}
