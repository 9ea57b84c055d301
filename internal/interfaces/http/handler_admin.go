package http

import (
	"context"
	"net/http"

	"evolution_relay/internal/entities"

	"github.com/gin-gonic/gin"
)

// InstanceService manages the tenant's gateway instances.
type InstanceService interface {
	CreateInstance(ctx context.Context, tenantID, name, number string) (*entities.Instance, error)
	ConfigureWebhook(ctx context.Context, tenantID, name string) error
	Connect(ctx context.Context, tenantID, name string) (string, error)
	Restart(ctx context.Context, tenantID, name string) error
	DeleteInstance(ctx context.Context, tenantID, name string) error
}

// AdminHandler serves the tenant admin's instance pages.
type AdminHandler struct {
	dashboard DashboardService
	instances InstanceService
}

func NewAdminHandler(dashboard DashboardService, instances InstanceService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, instances: instances}
}

// instanceName reads and checks the :name path parameter.
func instanceName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !ValidInstanceName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid instance name"})
		return "", false
	}
	return name, true
}

// CreateInstance provisions a new instance on the gateway for the tenant
func (h *AdminHandler) CreateInstance(c *gin.Context) {
	var payload struct {
		InstanceName string `json:"instanceName"`
		Number       string `json:"number"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidInstanceName(payload.InstanceName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid instance name"})
		return
	}

	inst, err := h.instances.CreateInstance(c.Request.Context(), getTenantID(c), payload.InstanceName, payload.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inst)
}

func (h *AdminHandler) ConfigureWebhook(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	if err := h.instances.ConfigureWebhook(c.Request.Context(), getTenantID(c), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": name, "webhook": "configured"})
}

// Connect starts pairing and returns the QR while the instance is unpaired
func (h *AdminHandler) Connect(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	qr, err := h.instances.Connect(c.Request.Context(), getTenantID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": name, "qr_code": qr, "paired": qr == ""})
}

func (h *AdminHandler) Restart(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	if err := h.instances.Restart(c.Request.Context(), getTenantID(c), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": name, "status": entities.InstanceStarting})
}

func (h *AdminHandler) DeleteInstance(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	if err := h.instances.DeleteInstance(c.Request.Context(), getTenantID(c), name); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListInstances(c *gin.Context) {
	list, err := h.dashboard.ListInstances(c.Request.Context(), getTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []entities.Instance{}
	}
	c.JSON(http.StatusOK, list)
}

// InstanceQRCode returns the pending pairing QR as PNG
func (h *AdminHandler) InstanceQRCode(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	png, err := h.dashboard.InstanceQRCode(c.Request.Context(), getTenantID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// InstanceState asks the gateway for the live connection state
func (h *AdminHandler) InstanceState(c *gin.Context) {
	name, ok := instanceName(c)
	if !ok {
		return
	}
	state, err := h.dashboard.InstanceState(c.Request.Context(), getTenantID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": name, "state": state})
}
