package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/interfaces"

	"go.uber.org/zap"
)

var (
	ErrInvalidStatus        = errors.New("invalid conversation status")
	ErrConversationConflict = errors.New("contact already has an open conversation")
	ErrNoInstance           = errors.New("tenant has no connected instance")
	ErrGatewayUnavailable   = errors.New("gateway client not configured")
	ErrEmptyReply           = errors.New("reply text is empty")
	ErrInvalidPhone         = errors.New("phone number has no digits")
	ErrContactTaken         = errors.New("phone registered to another tenant")
)

const (
	defaultListLimit    = 100
	defaultMessageLimit = 500
	maxStatsDays        = 90
)

// DashboardUsecase serves the tenant-scoped operator API.
type DashboardUsecase struct {
	conversations interfaces.ConversationStore
	messages      interfaces.MessageStore
	contacts      interfaces.ContactStore
	instances     interfaces.InstanceStore
	usage         interfaces.UsageStore
	gateway       interfaces.Gateway
}

// NewDashboardUsecase wires the dashboard. gateway may be nil, in which case
// agent replies and live state lookups fail with ErrGatewayUnavailable.
func NewDashboardUsecase(
	conversations interfaces.ConversationStore,
	messages interfaces.MessageStore,
	contacts interfaces.ContactStore,
	instances interfaces.InstanceStore,
	usage interfaces.UsageStore,
	gateway interfaces.Gateway,
) *DashboardUsecase {
	return &DashboardUsecase{
		conversations: conversations,
		messages:      messages,
		contacts:      contacts,
		instances:     instances,
		usage:         usage,
		gateway:       gateway,
	}
}

// Conversations

func (u *DashboardUsecase) ListConversations(ctx context.Context, tenantID, status string) ([]entities.Conversation, error) {
	if status != "" && !entities.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return u.conversations.ListByTenant(ctx, tenantID, status, defaultListLimit)
}

func (u *DashboardUsecase) ListMessages(ctx context.Context, tenantID, conversationID string) ([]entities.Message, error) {
	if _, err := u.conversations.Get(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	return u.messages.ListByConversation(ctx, conversationID, defaultMessageLimit)
}

// SendAgentReply delivers text through the tenant's connected instance and
// stores it as an agent message. An active conversation moves to in_service.
func (u *DashboardUsecase) SendAgentReply(ctx context.Context, tenantID, conversationID, agentName, text string) (*entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReply
	}
	if u.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	conv, err := u.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if !entities.IsOpen(conv.Status) {
		return nil, fmt.Errorf("%w: conversation is %s", ErrInvalidStatus, conv.Status)
	}
	contact, err := u.contacts.Get(ctx, conv.ContactID)
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}
	inst, err := u.sendingInstance(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	gatewayID, err := u.gateway.SendText(ctx, inst.Name, contact.Phone, text)
	if err != nil {
		return nil, fmt.Errorf("send via gateway: %w", err)
	}

	msg, err := u.messages.Create(ctx, &entities.Message{
		ConversationID: conv.ID,
		Content:        text,
		SenderKind:     entities.SenderAgent,
		SenderName:     agentName,
		Kind:           entities.KindText,
		Metadata: map[string]interface{}{
			"messageId": gatewayID,
			"instance":  inst.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store agent message: %w", err)
	}

	if conv.Status == entities.StatusActive {
		if err := u.conversations.SetStatus(ctx, tenantID, conv.ID, entities.StatusInService); err != nil {
			zap.L().Warn("Failed to move conversation in service", zap.String("conversation_id", conv.ID), zap.Error(err))
		}
	}
	if err := u.usage.IncrementSent(ctx, tenantID); err != nil {
		zap.L().Warn("Failed to record usage", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return msg, nil
}

func (u *DashboardUsecase) sendingInstance(ctx context.Context, tenantID string) (*entities.Instance, error) {
	list, err := u.instances.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	for i := range list {
		if list[i].IsActive && list[i].Status == entities.InstanceConnected {
			return &list[i], nil
		}
	}
	return nil, ErrNoInstance
}

// UpdateStatus changes a conversation's status. Reopening is refused when
// the contact already has another open conversation.
func (u *DashboardUsecase) UpdateStatus(ctx context.Context, tenantID, conversationID, status string) error {
	if !entities.ValidStatus(status) {
		return ErrInvalidStatus
	}
	conv, err := u.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return err
	}
	if conv.Status == status {
		return nil
	}
	if entities.IsOpen(status) && !entities.IsOpen(conv.Status) {
		open, err := u.conversations.LatestOpen(ctx, conv.ContactID)
		switch {
		case err == nil && open.ID != conv.ID:
			return ErrConversationConflict
		case err != nil && !errors.Is(err, entities.ErrNotFound):
			return err
		}
	}
	return u.conversations.SetStatus(ctx, tenantID, conversationID, status)
}

// Contacts

// CreateContact registers a customer by hand. The phone is normalized like
// an inbound sender's.
func (u *DashboardUsecase) CreateContact(ctx context.Context, tenantID, name, phone string) (*entities.Contact, error) {
	phone = entities.NormalizePhone(phone)
	if phone == "" {
		return nil, ErrInvalidPhone
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = entities.DefaultContactName
	}
	contact, err := u.contacts.Create(ctx, &entities.Contact{Phone: phone, Name: name, TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	if contact.TenantID != tenantID {
		return nil, ErrContactTaken
	}
	return contact, nil
}

// Instances

func (u *DashboardUsecase) ListInstances(ctx context.Context, tenantID string) ([]entities.Instance, error) {
	return u.instances.ListByTenant(ctx, tenantID)
}

// InstanceQRCode returns the pending pairing QR as PNG bytes.
func (u *DashboardUsecase) InstanceQRCode(ctx context.Context, tenantID, name string) ([]byte, error) {
	inst, err := ownedInstance(ctx, u.instances, tenantID, name)
	if err != nil {
		return nil, err
	}
	return DecodeQRDataURI(inst.QRCode)
}

// InstanceState asks the gateway for the live connection state.
func (u *DashboardUsecase) InstanceState(ctx context.Context, tenantID, name string) (string, error) {
	if u.gateway == nil {
		return "", ErrGatewayUnavailable
	}
	if _, err := ownedInstance(ctx, u.instances, tenantID, name); err != nil {
		return "", err
	}
	return u.gateway.ConnectionState(ctx, name)
}

// Stats

func (u *DashboardUsecase) Stats(ctx context.Context, tenantID string, days int) ([]entities.DailyUsage, error) {
	if days < 1 || days > maxStatsDays {
		days = 7
	}
	return u.usage.GetUsageHistory(ctx, tenantID, days)
}
