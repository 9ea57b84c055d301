package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evolution_relay/internal/entities"

	"go.uber.org/zap"
)

// FlowRequest is the body the chatbot engine accepts.
type FlowRequest struct {
	ConversationID  string `json:"conversaId"`
	StartFlow       bool   `json:"iniciarFluxo,omitempty"`
	CustomerMessage string `json:"mensagemCliente,omitempty"`
	MessageKind     string `json:"tipoMensagem,omitempty"`
}

// ChatbotEngineClient calls the external chatbot engine function.
type ChatbotEngineClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewChatbotEngineClient(endpoint, token string, timeout time.Duration) *ChatbotEngineClient {
	return &ChatbotEngineClient{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ChatbotEngineClient) StartFlow(ctx context.Context, conversationID string) error {
	return c.post(ctx, FlowRequest{ConversationID: conversationID, StartFlow: true})
}

func (c *ChatbotEngineClient) ContinueFlow(ctx context.Context, conversationID, content, kind string) error {
	return c.post(ctx, FlowRequest{
		ConversationID:  conversationID,
		CustomerMessage: content,
		MessageKind:     kind,
	})
}

func (c *ChatbotEngineClient) post(ctx context.Context, body FlowRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatbot engine request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chatbot engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		result = string(raw)
	}
	zap.L().Info("chatbot engine result",
		zap.String("conversation_id", body.ConversationID),
		zap.Bool("start_flow", body.StartFlow),
		zap.Any("result", result),
	)
	return nil
}

// EvolutionClient talks to the gateway REST API.
type EvolutionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewEvolutionClient(baseURL, apiKey string) *EvolutionClient {
	return &EvolutionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendText sends a text message and returns the gateway message id.
func (e *EvolutionClient) SendText(ctx context.Context, instance, number, text string) (string, error) {
	var result struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	body := map[string]interface{}{
		"number": number,
		"text":   text,
	}
	if err := e.do(ctx, http.MethodPost, "/message/sendText/"+url.PathEscape(instance), body, &result); err != nil {
		return "", err
	}
	return result.Key.ID, nil
}

// ConnectionState returns the live state ("open", "close", "connecting").
func (e *EvolutionClient) ConnectionState(ctx context.Context, instance string) (string, error) {
	var result struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := e.do(ctx, http.MethodGet, "/instance/connectionState/"+url.PathEscape(instance), nil, &result); err != nil {
		return "", err
	}
	return result.Instance.State, nil
}

// CreateInstance provisions a Baileys instance that posts every listed
// event to spec.WebhookURL, one path per event.
func (e *EvolutionClient) CreateInstance(ctx context.Context, spec entities.InstanceSpec) (json.RawMessage, error) {
	body := map[string]interface{}{
		"instanceName":      spec.Name,
		"token":             spec.Name,
		"qrcode":            true,
		"integration":       "WHATSAPP-BAILEYS",
		"webhook":           spec.WebhookURL,
		"webhook_by_events": true,
		"events":            spec.Events,
		"reject_call":       true,
		"msg_call":          "Chamadas não são atendidas",
		"groups_ignore":     true,
		"always_online":     true,
		"read_messages":     true,
	}
	if spec.Number != "" {
		body["number"] = spec.Number
	}
	var raw json.RawMessage
	if err := e.do(ctx, http.MethodPost, "/instance/create", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SetWebhook re-registers the event webhook of an existing instance.
func (e *EvolutionClient) SetWebhook(ctx context.Context, instance, webhookURL string, events []string) error {
	body := map[string]interface{}{
		"enabled":           true,
		"url":               webhookURL,
		"webhook_by_events": true,
		"webhook_base64":    true,
		"events":            events,
	}
	return e.do(ctx, http.MethodPost, "/webhook/set/"+url.PathEscape(instance), body, nil)
}

// Connect starts pairing; the body carries the QR code while unpaired.
func (e *EvolutionClient) Connect(ctx context.Context, instance string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := e.do(ctx, http.MethodGet, "/instance/connect/"+url.PathEscape(instance), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (e *EvolutionClient) Restart(ctx context.Context, instance string) error {
	return e.do(ctx, http.MethodPut, "/instance/restart/"+url.PathEscape(instance), nil, nil)
}

func (e *EvolutionClient) DeleteInstance(ctx context.Context, instance string) error {
	return e.do(ctx, http.MethodDelete, "/instance/delete/"+url.PathEscape(instance), nil, nil)
}

func (e *EvolutionClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
