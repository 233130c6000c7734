// Package pipeline runs the background processing for each inbound message:
// persist, load context, generate a reply, dispatch it, and capture leads.
// The HTTP acknowledgement has already gone out by the time a task starts,
// so failures here can only degrade toward a fallback send, never change
// the response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatfunnel/internal/domain"
	"chatfunnel/internal/lead"
	"chatfunnel/internal/metrics"
)

const (
	defaultConcurrency  = 5
	defaultHistoryLimit = 10
	leadSnapshotTurns   = 5
)

// Sender dispatches a reply through a channel's send API.
type Sender interface {
	Send(ctx context.Context, ch domain.Channel, recipientID, message, authToken string) error
}

// Generator produces replies and the static fallback texts.
type Generator interface {
	Generate(ctx context.Context, userText string, history []domain.StoredMessage, ch domain.Channel) string
	MinimalFallback() string
}

// Pipeline consumes the bus and processes each message as an independent,
// unawaited unit of work.
type Pipeline struct {
	store        domain.ConversationStore
	replier      Generator
	sender       Sender
	bus          domain.MessageBus
	logger       *slog.Logger
	concurrency  int
	historyLimit int
}

type Config struct {
	Store        domain.ConversationStore
	Replier      Generator
	Sender       Sender
	Bus          domain.MessageBus
	Logger       *slog.Logger
	Concurrency  int
	HistoryLimit int // turns loaded as model context
}

func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Pipeline{
		store:        cfg.Store,
		replier:      cfg.Replier,
		sender:       cfg.Sender,
		bus:          cfg.Bus,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
		historyLimit: cfg.HistoryLimit,
	}
}

// Run consumes inbound messages until the context is cancelled or the bus
// closes. Messages run with bounded concurrency and no ordering guarantee,
// even within one conversation.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("pipeline started", "concurrency", p.concurrency)

	sem := make(chan struct{}, p.concurrency)
	inbound := p.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				p.logger.Info("inbound channel closed, pipeline stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				p.Process(ctx, m)
			}(msg)
		}
	}
}

// Process runs the full per-message sequence. It never lets an error or
// panic escape: once the platform has its 200, the only remaining moves are
// a fallback send or a log line.
func (p *Pipeline) Process(ctx context.Context, msg domain.InboundMessage) {
	metrics.PipelinesActive.Inc()
	defer metrics.PipelinesActive.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic recovered", "channel", msg.Channel, "sender", msg.ExternalUserID, "panic", r)
		}
	}()

	if !msg.Channel.Valid() {
		p.logger.Error("dropping message for unknown channel", "channel", msg.Channel, "sender", msg.ExternalUserID)
		return
	}

	key := msg.Channel.ConversationKey(msg.ExternalUserID)

	// Losing history is preferable to failing to reply.
	if err := p.store.AppendMessage(ctx, key, domain.StoredMessage{
		Text:      msg.Text,
		IsBot:     false,
		Channel:   msg.Channel,
		Username:  msg.DisplayName,
		Timestamp: msg.Timestamp,
	}); err != nil {
		p.logger.Warn("failed to save inbound message", "key", key, "error", err)
	}

	if err := p.respond(ctx, key, msg); err != nil {
		metrics.DispatchFailures.Inc()
		p.logger.Error("reply pipeline failed, sending minimal fallback", "key", key, "error", err)
		if err := p.sender.Send(ctx, msg.Channel, msg.ExternalUserID, p.replier.MinimalFallback(), msg.AuthToken); err != nil {
			// Accepted degradation: the user stays silent only when both
			// the reply and the fallback send fail.
			p.logger.Error("fallback send failed", "key", key, "error", err)
		}
	}
}

// respond covers history load through dispatch and lead capture. Store
// failures are logged and swallowed; only a dispatch failure propagates.
func (p *Pipeline) respond(ctx context.Context, key string, msg domain.InboundMessage) error {
	history, err := p.store.RecentMessages(ctx, key, p.historyLimit)
	if err != nil {
		p.logger.Warn("failed to load history, continuing without it", "key", key, "error", err)
		history = nil
	}

	// Lead detection runs on the raw inbound text, independent of the reply.
	signals := lead.Detect(msg.Text)

	reply := p.replier.Generate(ctx, msg.Text, history, msg.Channel)

	if err := p.store.AppendMessage(ctx, key, domain.StoredMessage{
		Text:      reply,
		IsBot:     true,
		Channel:   msg.Channel,
		Username:  "bot",
		Timestamp: time.Now(),
	}); err != nil {
		p.logger.Warn("failed to save reply", "key", key, "error", err)
	}

	if err := p.store.UpsertConversation(ctx, key, domain.ConversationMeta{
		UserID:        msg.ExternalUserID,
		Channel:       msg.Channel,
		Username:      msg.DisplayName,
		LastMessage:   msg.Text,
		LastMessageAt: time.Now(),
	}); err != nil {
		p.logger.Warn("failed to upsert conversation", "key", key, "error", err)
	}

	if err := p.sender.Send(ctx, msg.Channel, msg.ExternalUserID, reply, msg.AuthToken); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	metrics.RepliesSent.Inc()

	if signals.IsLead {
		p.captureLead(ctx, msg, signals, history)
	}

	return nil
}

// captureLead writes a new lead record with a snapshot of the most recent
// turns. Every qualifying message produces its own record; there is no
// dedup across a conversation.
func (p *Pipeline) captureLead(ctx context.Context, msg domain.InboundMessage, signals lead.Signals, history []domain.StoredMessage) {
	snapshot := history
	if len(snapshot) > leadSnapshotTurns {
		snapshot = snapshot[len(snapshot)-leadSnapshotTurns:]
	}
	turns := make([]domain.LeadTurn, 0, len(snapshot))
	for _, m := range snapshot {
		role := "user"
		if m.IsBot {
			role = "assistant"
		}
		turns = append(turns, domain.LeadTurn{Role: role, Text: m.Text})
	}

	record := domain.Lead{
		ID:         uuid.NewString(),
		UserID:     msg.ExternalUserID,
		Channel:    msg.Channel,
		Username:   msg.DisplayName,
		Email:      signals.Email,
		Phone:      signals.Phone,
		CapturedAt: time.Now(),
		Source:     msg.Channel.LeadSource(),
		Status:     domain.LeadStatusNew,
		Context:    turns,
	}

	if err := p.store.SaveLead(ctx, record); err != nil {
		p.logger.Warn("failed to save lead", "user", msg.ExternalUserID, "error", err)
		return
	}
	metrics.LeadsCaptured.Inc()
	p.logger.Info("lead captured",
		"channel", msg.Channel,
		"user", msg.ExternalUserID,
		"email", signals.Email != "",
		"phone", signals.Phone != "",
		"intent", signals.HasIntent,
	)
}
