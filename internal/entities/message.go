package entities

import "time"

// Sender kinds
const (
	SenderClient = "client"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Message kinds
const (
	KindText        = "text"
	KindImage       = "image"
	KindDocument    = "document"
	KindAudio       = "audio"
	KindVideo       = "video"
	KindButtonReply = "button-reply"
	KindListReply   = "list-reply"
)

// Message is one appended row of a conversation. Never updated after insert.
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Content        string                 `json:"content"`
	SenderKind     string                 `json:"sender_kind"` // client, agent, system
	SenderName     string                 `json:"sender_name"`
	Kind           string                 `json:"kind"`
	Metadata       map[string]interface{} `json:"metadata"` // ids, media URL, mime type, timestamps
	CreatedAt      time.Time              `json:"created_at"`
}

// IsMediaKind reports whether kind carries an attachment rather than text.
func IsMediaKind(kind string) bool {
	switch kind {
	case KindImage, KindDocument, KindAudio, KindVideo:
		return true
	}
	return false
}
