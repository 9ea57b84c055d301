package entities

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultContactName is used when the gateway does not send a push name.
const DefaultContactName = "Customer"

// Contact is a customer identified by a digits-only phone number.
type Contact struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"` // unique, digits only
	Name      string    `json:"name"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant is a company using the dashboard.
type Tenant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
