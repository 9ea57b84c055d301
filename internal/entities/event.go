package entities

import (
	"encoding/json"
	"sort"
	"strings"
)

// EventKind is the disposition class of a gateway webhook event.
type EventKind int

const (
	EventUnsupported EventKind = iota
	EventConnection
	EventDataSync
	EventPresence
	EventChatbotPlatform
	EventMessage
)

// Gateway event names
const (
	EventQRCodeUpdated       = "QRCODE_UPDATED"
	EventConnectionUpdate    = "CONNECTION_UPDATE"
	EventApplicationStartup  = "APPLICATION_STARTUP"
	EventMessagesUpsert      = "MESSAGES_UPSERT"
	EventMessagesUpdate      = "MESSAGES_UPDATE"
	EventMessagesDelete      = "MESSAGES_DELETE"
	EventSendMessage         = "SEND_MESSAGE"
	EventTypebotStart        = "TYPEBOT_START"
	EventTypebotChangeStatus = "TYPEBOT_CHANGE_STATUS"
)

var eventKinds = map[string]EventKind{
	EventQRCodeUpdated:      EventConnection,
	EventConnectionUpdate:   EventConnection,
	EventApplicationStartup: EventConnection,

	"CONTACTS_SET":    EventDataSync,
	"CONTACTS_UPSERT": EventDataSync,
	"CONTACTS_UPDATE": EventDataSync,
	"CHATS_SET":       EventDataSync,
	"CHATS_UPSERT":    EventDataSync,
	"CHATS_UPDATE":    EventDataSync,
	"CHATS_DELETE":    EventDataSync,

	"PRESENCE_UPDATE": EventPresence,
	"CALL":            EventPresence,
	"NEW_JWT_TOKEN":   EventPresence,

	EventTypebotStart:        EventChatbotPlatform,
	EventTypebotChangeStatus: EventChatbotPlatform,

	EventMessagesUpsert: EventMessage,
	EventMessagesUpdate: EventMessage,
	EventMessagesDelete: EventMessage,
	EventSendMessage:    EventMessage,
}

// KnownEvents lists every event name the classifier recognizes, sorted.
// New instances subscribe to exactly this set.
func KnownEvents() []string {
	names := make([]string, 0, len(eventKinds))
	for name := range eventKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (k EventKind) String() string {
	switch k {
	case EventConnection:
		return "connection"
	case EventDataSync:
		return "data_sync"
	case EventPresence:
		return "presence"
	case EventChatbotPlatform:
		return "chatbot_platform"
	case EventMessage:
		return "message"
	default:
		return "unsupported"
	}
}

// CanonicalEventName maps the dotted lower-case form ("messages.upsert")
// to the upper snake form ("MESSAGES_UPSERT").
func CanonicalEventName(name string) string {
	name = strings.TrimSpace(name)
	if strings.ContainsAny(name, ".-") || strings.ToUpper(name) != name {
		name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
		name = strings.ToUpper(name)
	}
	return name
}

// ClassifyEvent returns the kind of a gateway event name. Unknown names
// map to EventUnsupported.
func ClassifyEvent(name string) EventKind {
	if kind, ok := eventKinds[CanonicalEventName(name)]; ok {
		return kind
	}
	return EventUnsupported
}

// WebhookEvent is the body the gateway posts for every event.
type WebhookEvent struct {
	Event       string          `json:"event"`
	Instance    string          `json:"instance"`
	Data        json.RawMessage `json:"data"`
	Destination string          `json:"destination,omitempty"`
	Source      string          `json:"source,omitempty"`
	APIKey      string          `json:"apikey,omitempty"`
}
