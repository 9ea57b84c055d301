package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/interfaces"

	"go.uber.org/zap"
)

// Tenant fallback policies
const (
	FallbackFirstActive = "first_active"
	FallbackReject      = "reject"
)

var (
	ErrNoActiveTenant   = errors.New("no active tenant available")
	ErrTenantUnresolved = errors.New("instance has no owning tenant")
)

// Event dispositions reported to the observer
const (
	dispositionAcked     = "acked"
	dispositionStored    = "stored"
	dispositionIgnored   = "ignored"
	dispositionDiscarded = "discarded"
	dispositionDuplicate = "duplicate"
	dispositionFailed    = "failed"
)

// WebhookResult is the body returned to the gateway.
type WebhookResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	Instance       string `json:"instance,omitempty"`
	Event          string `json:"event,omitempty"`
	ConversationID string `json:"conversaId,omitempty"`
	MessageID      string `json:"mensagemId,omitempty"`
}

// RelayDeps wires the relay to its stores and collaborators. Chatbot,
// Notifier, Journal and Observer are optional.
type RelayDeps struct {
	Instances     interfaces.InstanceStore
	Tenants       interfaces.TenantStore
	Contacts      interfaces.ContactStore
	Conversations interfaces.ConversationStore
	Messages      interfaces.MessageStore
	Sessions      interfaces.ChatbotSessionStore
	Audit         interfaces.AuditStore
	Usage         interfaces.UsageStore

	Chatbot    interfaces.ChatbotEngine
	Notifier   interfaces.Notifier
	Dispatcher interfaces.Dispatcher
	Locker     interfaces.Locker
	Journal    interfaces.DeliveryJournal
	Observer   interfaces.EventObserver

	TenantFallback string
}

// RelayService turns gateway webhook events into CRM records.
type RelayService struct {
	RelayDeps
	now func() time.Time
}

func NewRelayService(deps RelayDeps) *RelayService {
	if deps.TenantFallback == "" {
		deps.TenantFallback = FallbackFirstActive
	}
	return &RelayService{RelayDeps: deps, now: time.Now}
}

// inbound is the outcome of the persistence half of the message pipeline.
type inbound struct {
	contact         *entities.Contact
	conversation    *entities.Conversation
	message         *entities.Message
	newConversation bool
	duplicate       bool
}

// HandleWebhook processes one gateway event. Every handled event yields a
// successful result; an error is returned only when the message pipeline
// could not store an inbound message.
func (s *RelayService) HandleWebhook(ctx context.Context, evt entities.WebhookEvent) (WebhookResult, error) {
	kind := entities.ClassifyEvent(evt.Event)
	name := entities.CanonicalEventName(evt.Event)

	switch kind {
	case entities.EventConnection:
		s.applyConnectionEvent(ctx, name, evt)
		s.observe(kind, dispositionAcked)
		return WebhookResult{Success: true, Message: fmt.Sprintf("event %s processed", name), Instance: evt.Instance}, nil

	case entities.EventDataSync:
		s.auditDataSync(ctx, name, evt)
		s.observe(kind, dispositionAcked)
		return WebhookResult{Success: true, Message: fmt.Sprintf("sync event %s recorded", name), Instance: evt.Instance}, nil

	case entities.EventPresence, entities.EventChatbotPlatform:
		s.observe(kind, dispositionIgnored)
		return WebhookResult{Success: true, Message: fmt.Sprintf("event %s received", name), Instance: evt.Instance}, nil

	case entities.EventMessage:
		if name != entities.EventMessagesUpsert {
			s.observe(kind, dispositionIgnored)
			return WebhookResult{Success: true, Message: fmt.Sprintf("event %s received", name), Instance: evt.Instance}, nil
		}
		return s.handleMessage(ctx, evt)

	default:
		zap.L().Info("Unsupported gateway event",
			zap.String("event", evt.Event),
			zap.String("instance", evt.Instance))
		s.observe(kind, dispositionIgnored)
		return WebhookResult{Success: true, Message: "unsupported event", Event: evt.Event}, nil
	}
}

func (s *RelayService) applyConnectionEvent(ctx context.Context, name string, evt entities.WebhookEvent) {
	log := zap.L().With(zap.String("event", name), zap.String("instance", evt.Instance))

	update, err := BuildInstanceUpdate(name, evt.Data, s.now())
	if err != nil {
		log.Warn("Failed to read connection event", zap.Error(err))
		return
	}
	if update.IsEmpty() {
		return
	}
	if err := s.Instances.ApplyUpdate(ctx, evt.Instance, update); err != nil {
		log.Error("Failed to update instance", zap.Error(err))
		return
	}
	if update.Status != nil {
		log.Info("Instance status updated", zap.String("status", *update.Status))
	}
}

func (s *RelayService) auditDataSync(ctx context.Context, name string, evt entities.WebhookEvent) {
	entry := entities.AuditEntry{
		Source:  "evolution-webhook",
		Level:   "info",
		Message: fmt.Sprintf("%s received", name),
		Metadata: map[string]interface{}{
			"event":    name,
			"instance": evt.Instance,
			"bytes":    len(evt.Data),
		},
	}
	if err := s.Audit.Log(ctx, entry); err != nil {
		zap.L().Warn("Failed to write sync audit row",
			zap.String("event", name),
			zap.String("instance", evt.Instance),
			zap.Error(err))
	}
}

func (s *RelayService) handleMessage(ctx context.Context, evt entities.WebhookEvent) (WebhookResult, error) {
	upsert, err := entities.DecodeMessageUpsert(evt.Data)
	if err != nil {
		zap.L().Warn("Undecodable message payload",
			zap.String("instance", evt.Instance),
			zap.Int("bytes", len(evt.Data)),
			zap.Error(err))
		s.observe(entities.EventMessage, dispositionDiscarded)
		return WebhookResult{Success: true, Message: "malformed message payload"}, nil
	}
	if !upsert.IsInbound() {
		s.observe(entities.EventMessage, dispositionIgnored)
		return WebhookResult{Success: true, Message: "own message ignored"}, nil
	}

	log := zap.L().With(zap.String("instance", evt.Instance), zap.String("message_id", upsert.Key.ID))

	content, ok := entities.ExtractContent(upsert, evt.Instance)
	if !ok {
		log.Info("Message shape not supported", zap.String("message_type", upsert.MessageType))
		s.observe(entities.EventMessage, dispositionDiscarded)
		return WebhookResult{Success: true, Message: "unsupported message type"}, nil
	}

	phone := entities.NormalizePhone(upsert.Key.RemoteJid)
	if phone == "" {
		log.Warn("Sender phone missing", zap.String("remote_jid", upsert.Key.RemoteJid))
		s.observe(entities.EventMessage, dispositionDiscarded)
		return WebhookResult{Success: true, Message: "sender not identified"}, nil
	}

	start := s.now()
	unlock := s.Locker.Lock(phone)
	in, err := s.persistInbound(ctx, evt.Instance, phone, upsert, content)
	unlock()
	if s.Observer != nil {
		s.Observer.ObservePipeline(start)
	}

	if err != nil {
		log.Error("Failed to store inbound message", zap.String("phone", phone), zap.Error(err))
		s.observe(entities.EventMessage, dispositionFailed)
		return WebhookResult{Success: false, Error: err.Error()}, err
	}
	if in.duplicate {
		log.Info("Duplicate delivery ignored")
		s.observe(entities.EventMessage, dispositionDuplicate)
		return WebhookResult{Success: true, Message: "duplicate delivery ignored"}, nil
	}

	log.Info("Inbound message stored",
		zap.String("conversation_id", in.conversation.ID),
		zap.String("kind", content.Kind),
		zap.Bool("new_conversation", in.newConversation))
	s.observe(entities.EventMessage, dispositionStored)

	s.dispatchFollowUps(ctx, in, content)

	return WebhookResult{
		Success:        true,
		Message:        "message processed",
		ConversationID: in.conversation.ID,
		MessageID:      in.message.ID,
	}, nil
}

// persistInbound runs the lookup-then-create sequence. Callers hold the
// per-phone lock.
func (s *RelayService) persistInbound(ctx context.Context, instance, phone string, upsert *entities.MessageUpsert, content entities.ExtractedContent) (*inbound, error) {
	gatewayID := upsert.Key.ID

	if s.Journal != nil && gatewayID != "" {
		seen, err := s.Journal.Seen(ctx, instance, gatewayID)
		if err != nil {
			zap.L().Warn("Delivery journal lookup failed", zap.Error(err))
		} else if seen {
			return &inbound{duplicate: true}, nil
		}
	}

	contact, err := s.resolveContact(ctx, instance, phone, upsert.SenderName())
	if err != nil {
		return nil, err
	}

	conv, created, err := s.resolveConversation(ctx, contact)
	if err != nil {
		return nil, err
	}

	msg, err := s.Messages.Create(ctx, &entities.Message{
		ConversationID: conv.ID,
		Content:        content.Content,
		SenderKind:     entities.SenderClient,
		SenderName:     upsert.SenderName(),
		Kind:           content.Kind,
		Metadata:       content.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if s.Usage != nil {
		if err := s.Usage.IncrementReceived(ctx, contact.TenantID); err != nil {
			zap.L().Warn("Failed to record usage", zap.String("tenant_id", contact.TenantID), zap.Error(err))
		}
	}
	if s.Journal != nil && gatewayID != "" {
		if err := s.Journal.Remember(ctx, instance, gatewayID); err != nil {
			zap.L().Warn("Failed to journal delivery", zap.Error(err))
		}
	}

	return &inbound{contact: contact, conversation: conv, message: msg, newConversation: created}, nil
}

func (s *RelayService) resolveContact(ctx context.Context, instance, phone, name string) (*entities.Contact, error) {
	contact, err := s.Contacts.GetByPhone(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, entities.ErrNotFound) {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}

	tenantID, err := s.resolveTenant(ctx, instance)
	if err != nil {
		return nil, err
	}

	contact, err = s.Contacts.Create(ctx, &entities.Contact{Phone: phone, Name: name, TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	zap.L().Info("Contact created", zap.String("contact_id", contact.ID), zap.String("tenant_id", tenantID))
	return contact, nil
}

// resolveTenant returns the instance owner, applying the fallback policy
// when the instance is not registered to an active tenant.
func (s *RelayService) resolveTenant(ctx context.Context, instance string) (string, error) {
	tenantID, err := s.Instances.TenantForInstance(ctx, instance)
	if err == nil {
		return tenantID, nil
	}
	if !errors.Is(err, entities.ErrNotFound) {
		return "", fmt.Errorf("lookup instance owner: %w", err)
	}

	if s.TenantFallback == FallbackReject {
		return "", fmt.Errorf("%w: %s", ErrTenantUnresolved, instance)
	}

	tenantID, err = s.Tenants.FirstActive(ctx)
	if errors.Is(err, entities.ErrNotFound) {
		return "", ErrNoActiveTenant
	}
	if err != nil {
		return "", fmt.Errorf("lookup fallback tenant: %w", err)
	}

	zap.L().Warn("Instance has no owner, assigning first active tenant",
		zap.String("instance", instance),
		zap.String("tenant_id", tenantID))
	entry := entities.AuditEntry{
		Source:  "evolution-webhook",
		Level:   "warn",
		Message: "tenant fallback applied",
		Metadata: map[string]interface{}{
			"instance":  instance,
			"tenant_id": tenantID,
			"policy":    s.TenantFallback,
		},
	}
	if err := s.Audit.Log(ctx, entry); err != nil {
		zap.L().Warn("Failed to audit tenant fallback", zap.Error(err))
	}
	return tenantID, nil
}

func (s *RelayService) resolveConversation(ctx context.Context, contact *entities.Contact) (*entities.Conversation, bool, error) {
	conv, err := s.Conversations.LatestOpen(ctx, contact.ID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, entities.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup conversation: %w", err)
	}

	conv, created, err := s.Conversations.Create(ctx, &entities.Conversation{
		ContactID: contact.ID,
		TenantID:  contact.TenantID,
		Status:    entities.StatusActive,
		Channel:   entities.ChannelWhatsApp,
		Priority:  entities.PriorityNormal,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, created, nil
}

// dispatchFollowUps hands the chatbot and notification calls to the
// dispatcher. Nothing here affects the webhook response.
func (s *RelayService) dispatchFollowUps(ctx context.Context, in *inbound, content entities.ExtractedContent) {
	convID := in.conversation.ID

	if in.newConversation {
		if s.Chatbot != nil {
			s.Dispatcher.Go("chatbot.start", func(ctx context.Context) error {
				return s.Chatbot.StartFlow(ctx, convID)
			})
		}
		if s.Notifier != nil {
			name, phone := in.contact.Name, in.contact.Phone
			s.Dispatcher.Go("notify.new_conversation", func(ctx context.Context) error {
				return s.Notifier.NotifyNewConversation(ctx, name, phone, content.Content)
			})
		}
		return
	}

	if s.Chatbot == nil || s.Sessions == nil {
		return
	}
	active, err := s.Sessions.HasActive(ctx, convID)
	if err != nil {
		zap.L().Warn("Chatbot session lookup failed", zap.String("conversation_id", convID), zap.Error(err))
		return
	}
	if !active {
		return
	}
	text, kind := content.Content, content.Kind
	s.Dispatcher.Go("chatbot.continue", func(ctx context.Context) error {
		return s.Chatbot.ContinueFlow(ctx, convID, text, kind)
	})
}

func (s *RelayService) observe(kind entities.EventKind, disposition string) {
	if s.Observer != nil {
		s.Observer.ObserveEvent(kind.String(), disposition)
	}
}
