package entities

import "time"

// User is a dashboard operator (agent or tenant admin).
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	TenantID     string `json:"tenant_id"` // Owning company
	IsActive     bool   `json:"is_active"`
}

// DailyUsage is a tenant's message count for one day.
type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`
}
