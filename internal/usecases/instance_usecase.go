package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/interfaces"

	"go.uber.org/zap"
)

var (
	ErrInstanceExists       = errors.New("instance name already registered")
	ErrWebhookNotConfigured = errors.New("public webhook url not configured")
)

// InstanceUsecase provisions gateway instances for a tenant and keeps the
// instances table in step with the gateway.
type InstanceUsecase struct {
	instances  interfaces.InstanceStore
	gateway    interfaces.InstanceProvisioner
	webhookURL string
}

// NewInstanceUsecase wires provisioning. gateway may be nil, in which case
// every operation fails with ErrGatewayUnavailable.
func NewInstanceUsecase(instances interfaces.InstanceStore, gateway interfaces.InstanceProvisioner, webhookURL string) *InstanceUsecase {
	return &InstanceUsecase{
		instances:  instances,
		gateway:    gateway,
		webhookURL: webhookURL,
	}
}

// CreateInstance inserts the tenant-owned row, then creates the instance on
// the gateway. The row is removed again when the gateway refuses.
func (u *InstanceUsecase) CreateInstance(ctx context.Context, tenantID, name, number string) (*entities.Instance, error) {
	if u.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	if u.webhookURL == "" {
		return nil, ErrWebhookNotConfigured
	}

	inst, err := u.instances.Create(ctx, &entities.Instance{
		Name:            name,
		TenantID:        tenantID,
		IsActive:        true,
		Status:          entities.InstanceConnecting,
		ConnectionState: stateConnecting,
	})
	if errors.Is(err, entities.ErrAlreadyExists) {
		return nil, ErrInstanceExists
	}
	if err != nil {
		return nil, err
	}

	raw, err := u.gateway.CreateInstance(ctx, entities.InstanceSpec{
		Name:       name,
		Number:     entities.NormalizePhone(number),
		WebhookURL: u.webhookURL,
		Events:     entities.KnownEvents(),
	})
	if err != nil {
		if derr := u.instances.Delete(ctx, name); derr != nil {
			zap.L().Warn("Failed to roll back instance row", zap.String("instance", name), zap.Error(derr))
		}
		return nil, fmt.Errorf("create on gateway: %w", err)
	}

	zap.L().Info("Instance provisioned", zap.String("instance", name), zap.String("tenant_id", tenantID))
	if qr := u.storeQRCode(ctx, name, raw); qr != "" {
		inst.QRCode = qr
	}
	return inst, nil
}

// ConfigureWebhook points an existing instance back at this relay.
func (u *InstanceUsecase) ConfigureWebhook(ctx context.Context, tenantID, name string) error {
	if u.gateway == nil {
		return ErrGatewayUnavailable
	}
	if u.webhookURL == "" {
		return ErrWebhookNotConfigured
	}
	if _, err := ownedInstance(ctx, u.instances, tenantID, name); err != nil {
		return err
	}
	return u.gateway.SetWebhook(ctx, name, u.webhookURL, entities.KnownEvents())
}

// Connect asks the gateway to start pairing and returns the QR data URI,
// or "" when the instance is already paired.
func (u *InstanceUsecase) Connect(ctx context.Context, tenantID, name string) (string, error) {
	if u.gateway == nil {
		return "", ErrGatewayUnavailable
	}
	if _, err := ownedInstance(ctx, u.instances, tenantID, name); err != nil {
		return "", err
	}
	raw, err := u.gateway.Connect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("connect on gateway: %w", err)
	}
	return u.storeQRCode(ctx, name, raw), nil
}

func (u *InstanceUsecase) Restart(ctx context.Context, tenantID, name string) error {
	if u.gateway == nil {
		return ErrGatewayUnavailable
	}
	if _, err := ownedInstance(ctx, u.instances, tenantID, name); err != nil {
		return err
	}
	if err := u.gateway.Restart(ctx, name); err != nil {
		return fmt.Errorf("restart on gateway: %w", err)
	}
	status := entities.InstanceStarting
	if err := u.instances.ApplyUpdate(ctx, name, entities.InstanceUpdate{Status: &status}); err != nil {
		zap.L().Warn("Failed to mark instance restarting", zap.String("instance", name), zap.Error(err))
	}
	return nil
}

// DeleteInstance removes the instance from the gateway and then the row.
// The row is kept when the gateway refuses.
func (u *InstanceUsecase) DeleteInstance(ctx context.Context, tenantID, name string) error {
	if u.gateway == nil {
		return ErrGatewayUnavailable
	}
	if _, err := ownedInstance(ctx, u.instances, tenantID, name); err != nil {
		return err
	}
	if err := u.gateway.DeleteInstance(ctx, name); err != nil {
		return fmt.Errorf("delete on gateway: %w", err)
	}
	return u.instances.Delete(ctx, name)
}

// storeQRCode saves a QR found in a gateway body and returns it.
func (u *InstanceUsecase) storeQRCode(ctx context.Context, name string, raw json.RawMessage) string {
	qr, err := ExtractQRCode(raw)
	if err != nil || qr == "" {
		return ""
	}
	update := entities.InstanceUpdate{
		QRCode:          &qr,
		Status:          strPtr(entities.InstanceConnecting),
		ConnectionState: strPtr(stateConnecting),
	}
	if err := u.instances.ApplyUpdate(ctx, name, update); err != nil {
		zap.L().Warn("Failed to store pairing QR", zap.String("instance", name), zap.Error(err))
	}
	return qr
}

// ownedInstance loads an instance and hides it from other tenants.
func ownedInstance(ctx context.Context, store interfaces.InstanceStore, tenantID, name string) (*entities.Instance, error) {
	inst, err := store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if inst.TenantID != tenantID {
		return nil, entities.ErrNotFound
	}
	return inst, nil
}
