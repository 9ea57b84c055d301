package entities

import "time"

// Conversation statuses
const (
	StatusActive    = "active"
	StatusInService = "in_service"
	StatusClosed    = "closed"
)

const (
	ChannelWhatsApp = "whatsapp"
	PriorityNormal  = "normal"
)

// OpenStatuses is the set in which at most one conversation per contact may live.
var OpenStatuses = []string{StatusActive, StatusInService}

// Conversation links a contact to the tenant's service queue.
type Conversation struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	TenantID  string    `json:"tenant_id"`
	Status    string    `json:"status"`
	Channel   string    `json:"channel"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether status belongs to the open set.
func IsOpen(status string) bool {
	for _, s := range OpenStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ValidStatus reports whether status is one the dashboard may set.
func ValidStatus(status string) bool {
	return IsOpen(status) || status == StatusClosed
}

// Chatbot session statuses
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// ChatbotSession tracks an automated flow running on a conversation.
type ChatbotSession struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// AuditEntry is a row of the audit log table.
type AuditEntry struct {
	Source        string                 `json:"source"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id"`
	Metadata      map[string]interface{} `json:"metadata"`
}
