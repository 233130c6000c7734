package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
)

const defaultGraphAPIBase = "https://graph.facebook.com/v21.0"

// chunkPace is the delay between consecutive chunks of one multi-part send.
const chunkPace = 500 * time.Millisecond

// Dispatcher delivers replies through the channel send APIs, chunking long
// messages and pacing multi-part sends.
type Dispatcher struct {
	client *resty.Client
	base   string
	send   SendConfig
	logger *slog.Logger
}

// SendConfig carries the non-secret send parameters (the access token
// arrives with each message and is never stored here).
type SendConfig struct {
	WhatsAppPhoneNumberID string
}

func NewDispatcher(cfg config.ChannelsConfig, logger *slog.Logger) *Dispatcher {
	base := cfg.GraphAPIBase
	if base == "" {
		base = defaultGraphAPIBase
	}
	return &Dispatcher{
		client: resty.New().SetTimeout(30 * time.Second),
		base:   base,
		send:   SendConfig{WhatsAppPhoneNumberID: cfg.WhatsApp.PhoneNumberID},
		logger: logger,
	}
}

// Send delivers message to recipientID on ch, splitting it into channel-size
// chunks sent strictly in order. A non-2xx response from the channel API
// fails the whole send with the platform's error message when available.
func (d *Dispatcher) Send(ctx context.Context, ch domain.Channel, recipientID, message, authToken string) error {
	spec, ok := specs[ch]
	if !ok {
		return fmt.Errorf("unknown channel %q", ch)
	}

	url := spec.endpoint(d.base, d.send)
	chunks := SplitMessage(message, spec.chunkLimit)

	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-time.After(chunkPace):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := d.post(ctx, url, authToken, spec.payload(recipientID, chunk)); err != nil {
			return fmt.Errorf("%s send (chunk %d/%d): %w", ch, i+1, len(chunks), err)
		}
	}

	d.logger.Debug("dispatched reply", "channel", ch, "recipient", recipientID, "chunks", len(chunks))
	return nil
}

func (d *Dispatcher) post(ctx context.Context, url, authToken string, payload any) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetAuthToken(authToken).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("channel API request: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("channel API %d: %s", resp.StatusCode(), apiErrorMessage(resp.Body()))
	}
	return nil
}

// apiErrorMessage pulls the platform-reported message out of a Graph-style
// error body, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}

// --- Per-channel send endpoints and payload envelopes ---

func socialEndpoint(base string, _ SendConfig) string {
	return base + "/me/messages"
}

func socialPayload(recipientID, text string) any {
	return map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
}

func whatsappEndpoint(base string, send SendConfig) string {
	return base + "/" + send.WhatsAppPhoneNumberID + "/messages"
}

func whatsappPayload(recipientID, text string) any {
	return map[string]any{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
}
