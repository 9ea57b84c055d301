package entities

import (
	"encoding/json"
	"strings"
)

const (
	PlaceholderAudio = "[Audio]"
	PlaceholderVideo = "[Video]"
)

// MessageKey identifies a WhatsApp message on the gateway.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MediaMessage covers the image, document, audio and video shapes.
type MediaMessage struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	Title    string `json:"title"`
	FileName string `json:"fileName"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type ButtonsResponse struct {
	SelectedButtonID    string `json:"selectedButtonId"`
	SelectedDisplayText string `json:"selectedDisplayText"`
}

type ListResponse struct {
	Title             string `json:"title"`
	SingleSelectReply struct {
		SelectedRowID string `json:"selectedRowId"`
	} `json:"singleSelectReply"`
}

// MessageContent is the "message" object of a MESSAGES_UPSERT event.
type MessageContent struct {
	Conversation           string           `json:"conversation"`
	ExtendedTextMessage    *ExtendedText    `json:"extendedTextMessage"`
	ImageMessage           *MediaMessage    `json:"imageMessage"`
	DocumentMessage        *MediaMessage    `json:"documentMessage"`
	AudioMessage           *MediaMessage    `json:"audioMessage"`
	VideoMessage           *MediaMessage    `json:"videoMessage"`
	ButtonsResponseMessage *ButtonsResponse `json:"buttonsResponseMessage"`
	ListResponseMessage    *ListResponse    `json:"listResponseMessage"`
}

// MessageUpsert is the data object of a MESSAGES_UPSERT event.
type MessageUpsert struct {
	Key              *MessageKey     `json:"key"`
	PushName         string          `json:"pushName"`
	Message          *MessageContent `json:"message"`
	MessageType      string          `json:"messageType"`
	MessageTimestamp interface{}     `json:"messageTimestamp"`
}

// DecodeMessageUpsert parses the data object of a message event.
func DecodeMessageUpsert(raw json.RawMessage) (*MessageUpsert, error) {
	var m MessageUpsert
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsInbound reports whether the event was sent by a customer.
func (m *MessageUpsert) IsInbound() bool {
	return m != nil && m.Key != nil && !m.Key.FromMe
}

// SenderName returns the push name or the default contact name.
func (m *MessageUpsert) SenderName() string {
	if name := strings.TrimSpace(m.PushName); name != "" {
		return name
	}
	return DefaultContactName
}

// ExtractedContent is what a message event contributes to a Message row.
type ExtractedContent struct {
	Content  string
	Kind     string
	Metadata map[string]interface{}
}

// ExtractContent inspects the known message shapes in fixed order and
// returns the first that matches. ok is false when no shape matched.
func ExtractContent(m *MessageUpsert, instance string) (ExtractedContent, bool) {
	out := ExtractedContent{
		Kind:     KindText,
		Metadata: map[string]interface{}{"instance": instance},
	}
	if m.Key != nil {
		out.Metadata["messageId"] = m.Key.ID
		out.Metadata["remoteJid"] = m.Key.RemoteJid
	}
	if m.MessageTimestamp != nil {
		out.Metadata["timestamp"] = m.MessageTimestamp
	}

	msg := m.Message
	if msg == nil {
		return out, false
	}

	media := func(kind string, mm *MediaMessage) {
		out.Kind = kind
		out.Metadata["mediaUrl"] = mm.URL
		out.Metadata["mimeType"] = mm.Mimetype
	}

	switch {
	case msg.Conversation != "":
		out.Content = msg.Conversation
	case msg.ExtendedTextMessage != nil:
		out.Content = msg.ExtendedTextMessage.Text
	case msg.ImageMessage != nil:
		media(KindImage, msg.ImageMessage)
		out.Content = msg.ImageMessage.Caption
	case msg.DocumentMessage != nil:
		media(KindDocument, msg.DocumentMessage)
		out.Content = msg.DocumentMessage.Title
		if out.Content == "" {
			out.Content = msg.DocumentMessage.FileName
		}
		out.Metadata["fileName"] = msg.DocumentMessage.FileName
	case msg.AudioMessage != nil:
		media(KindAudio, msg.AudioMessage)
		out.Content = PlaceholderAudio
	case msg.VideoMessage != nil:
		media(KindVideo, msg.VideoMessage)
		out.Content = msg.VideoMessage.Caption
		if out.Content == "" {
			out.Content = PlaceholderVideo
		}
	case msg.ButtonsResponseMessage != nil:
		out.Kind = KindButtonReply
		out.Content = msg.ButtonsResponseMessage.SelectedDisplayText
		out.Metadata["selectedButtonId"] = msg.ButtonsResponseMessage.SelectedButtonID
	case msg.ListResponseMessage != nil:
		out.Kind = KindListReply
		out.Content = msg.ListResponseMessage.SingleSelectReply.SelectedRowID
		out.Metadata["selectedRowId"] = out.Content
	default:
		return out, false
	}

	// Text-bearing shapes without text carry nothing worth storing.
	if out.Content == "" && !IsMediaKind(out.Kind) {
		return out, false
	}
	return out, true
}
