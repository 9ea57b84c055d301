package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"evolution_relay/internal/entities"
)

// Record store ports, implemented by the Postgres repositories.

type InstanceStore interface {
	ApplyUpdate(ctx context.Context, name string, u entities.InstanceUpdate) error
	TenantForInstance(ctx context.Context, name string) (string, error)
	GetByName(ctx context.Context, name string) (*entities.Instance, error)
	ListByTenant(ctx context.Context, tenantID string) ([]entities.Instance, error)
	Create(ctx context.Context, inst *entities.Instance) (*entities.Instance, error)
	Delete(ctx context.Context, name string) error
}

type TenantStore interface {
	FirstActive(ctx context.Context) (string, error)
}

type ContactStore interface {
	Get(ctx context.Context, id string) (*entities.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*entities.Contact, error)
	Create(ctx context.Context, c *entities.Contact) (*entities.Contact, error)
}

type ConversationStore interface {
	LatestOpen(ctx context.Context, contactID string) (*entities.Conversation, error)
	Create(ctx context.Context, c *entities.Conversation) (*entities.Conversation, bool, error)
	Get(ctx context.Context, tenantID, id string) (*entities.Conversation, error)
	ListByTenant(ctx context.Context, tenantID, status string, limit int) ([]entities.Conversation, error)
	SetStatus(ctx context.Context, tenantID, id, status string) error
}

type MessageStore interface {
	Create(ctx context.Context, m *entities.Message) (*entities.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error)
}

type ChatbotSessionStore interface {
	HasActive(ctx context.Context, conversationID string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, e entities.AuditEntry) error
}

type UsageStore interface {
	IncrementSent(ctx context.Context, tenantID string) error
	IncrementReceived(ctx context.Context, tenantID string) error
	GetUsageHistory(ctx context.Context, tenantID string, days int) ([]entities.DailyUsage, error)
}

type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
}

// Downstream collaborators.

type ChatbotEngine interface {
	StartFlow(ctx context.Context, conversationID string) error
	ContinueFlow(ctx context.Context, conversationID, content, kind string) error
}

type Gateway interface {
	SendText(ctx context.Context, instance, number, text string) (string, error)
	ConnectionState(ctx context.Context, instance string) (string, error)
}

// InstanceProvisioner manages instances on the gateway. Create and Connect
// return the raw gateway body, which may carry a pairing QR code.
type InstanceProvisioner interface {
	CreateInstance(ctx context.Context, spec entities.InstanceSpec) (json.RawMessage, error)
	SetWebhook(ctx context.Context, instance, url string, events []string) error
	Connect(ctx context.Context, instance string) (json.RawMessage, error)
	Restart(ctx context.Context, instance string) error
	DeleteInstance(ctx context.Context, instance string) error
}

type Notifier interface {
	NotifyNewConversation(ctx context.Context, contactName, phone, preview string) error
}

// Process-local helpers.

type Dispatcher interface {
	Go(name string, run func(ctx context.Context) error) bool
}

type Locker interface {
	Lock(key string) func()
}

type DeliveryJournal interface {
	Seen(ctx context.Context, instance, messageID string) (bool, error)
	Remember(ctx context.Context, instance, messageID string) error
}

type EventObserver interface {
	ObserveEvent(kind, disposition string)
	ObservePipeline(start time.Time)
}
