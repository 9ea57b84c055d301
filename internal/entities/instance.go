package entities

import "time"

// Instance statuses as shown on the dashboard
const (
	InstanceConnecting   = "connecting"
	InstanceConnected    = "connected"
	InstanceDisconnected = "disconnected"
	InstanceStarting     = "starting"
)

// Instance is a gateway WhatsApp session registered to a tenant.
type Instance struct {
	ID                string     `json:"id"`
	Name              string     `json:"instance_name"`
	TenantID          string     `json:"tenant_id"`
	IsActive          bool       `json:"is_active"`
	Status            string     `json:"status"`
	ConnectionState   string     `json:"connection_state"`
	QRCode            string     `json:"qr_code,omitempty"`
	ProfileName       string     `json:"profile_name,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	LastConnectedAt   *time.Time `json:"last_connected_at,omitempty"`
}

// InstanceUpdate is a partial update of the live status fields.
// Nil pointers are left untouched; ClearQRCode sets qr_code to NULL.
type InstanceUpdate struct {
	Status            *string
	ConnectionState   *string
	QRCode            *string
	ClearQRCode       bool
	LastConnectedAt   *time.Time
	ProfileName       *string
	ProfilePictureURL *string
}

// IsEmpty reports whether the update would change nothing.
func (u InstanceUpdate) IsEmpty() bool {
	return u.Status == nil && u.ConnectionState == nil && u.QRCode == nil && !u.ClearQRCode &&
		u.LastConnectedAt == nil && u.ProfileName == nil && u.ProfilePictureURL == nil
}

// InstanceSpec describes a gateway instance to provision.
type InstanceSpec struct {
	Name       string
	Number     string
	WebhookURL string
	Events     []string
}
