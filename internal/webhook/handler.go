// Package webhook is the HTTP entry point for the unified inbound-messaging
// endpoint. The platform enforces a short response SLA, so the handler only
// verifies, parses and enqueues; everything I/O-heavy runs in the pipeline
// after the 200 has gone out.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"chatfunnel/internal/channel"
	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
	"chatfunnel/internal/metrics"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	maxBodyBytes    = 1 << 20 // 1MB max
)

// Handler serves the webhook endpoint: handshake, delivery, preflight.
type Handler struct {
	verifyToken string
	appSecret   string
	tokens      config.ChannelsConfig
	bus         domain.MessageBus
	logger      *slog.Logger
}

func NewHandler(cfg config.WebhookConfig, channels config.ChannelsConfig, bus domain.MessageBus, logger *slog.Logger) *Handler {
	return &Handler{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		tokens:      channels,
		bus:         bus,
		logger:      logger,
	}
}

// Routes mounts the endpoint on a chi router. CORS middleware answers the
// OPTIONS preflight; anything but GET/POST/OPTIONS gets a JSON 405.
func (h *Handler) Routes(path string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", signatureHeader},
	}))
	r.Get(path, h.handleHandshake)
	r.Post(path, h.handleDelivery)
	r.Options(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

// handleHandshake answers the platform's GET challenge used to register the
// endpoint: echo the challenge iff mode and token match.
func (h *Handler) handleHandshake(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	h.logger.Warn("webhook verification failed", "mode", mode)
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "verification failed"})
}

// handleDelivery verifies the signature, extracts text messages and enqueues
// each for background processing. The body stays unparsed until the
// signature has been accepted.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookRequests.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot read body"})
		return
	}
	defer r.Body.Close()

	// Header lookup is case-insensitive (net/http canonicalizes names).
	sig := r.Header.Get(signatureHeader)
	if !VerifySignature(body, sig, h.appSecret) {
		metrics.SignatureFailures.Inc()
		h.logger.Warn("invalid webhook signature", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	var probe struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		h.logger.Warn("malformed webhook payload", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "malformed payload"})
		return
	}

	// Unknown object types normalize to zero messages, not an error.
	msgs := channel.Normalize(probe.Object, body)
	for _, msg := range msgs {
		msg.AuthToken = h.authToken(msg.Channel)
		h.bus.Publish(msg)
	}
	metrics.MessagesReceived.Add(int64(len(msgs)))

	if len(msgs) > 0 {
		h.logger.Info("webhook delivery accepted", "object", probe.Object, "messages", len(msgs))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "EVENT_RECEIVED"})
}

// authToken selects the outbound send credential for a channel. Tokens ride
// on the in-flight message only; they are never persisted.
func (h *Handler) authToken(ch domain.Channel) string {
	switch ch {
	case domain.ChannelInstagram:
		return h.tokens.Instagram.AccessToken
	case domain.ChannelMessenger:
		return h.tokens.Messenger.PageToken
	case domain.ChannelWhatsApp:
		return h.tokens.WhatsApp.AccessToken
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
