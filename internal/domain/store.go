package domain

import (
	"context"
	"time"
)

// StoredMessage is one turn in a conversation's append-only history.
type StoredMessage struct {
	Text      string    `json:"text"`
	IsBot     bool      `json:"is_bot"`
	Channel   Channel   `json:"channel"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationMeta is the merge-upserted summary of a thread, refreshed
// after every turn.
type ConversationMeta struct {
	UserID        string    `json:"user_id"`
	Channel       Channel   `json:"channel"`
	Username      string    `json:"username"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// LeadTurn is one history entry in a lead's conversation snapshot.
type LeadTurn struct {
	Role string `json:"role"` // user | assistant
	Text string `json:"text"`
}

// Lead is a captured contact/intent signal. Leads are write-once: repeated
// qualifying messages in one conversation each produce a new record.
type Lead struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Channel    Channel    `json:"channel"`
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	Source     string     `json:"lead_source"`
	Status     string     `json:"status"`
	Context    []LeadTurn `json:"context,omitempty"`
}

// LeadStatusNew is the initial status of every captured lead.
const LeadStatusNew = "new"

// ConversationStore owns all persistence for conversation history and leads.
// Implementations must be safe for concurrent use: the pipeline appends to
// the same conversation key from multiple goroutines.
type ConversationStore interface {
	// AppendMessage appends one turn to the conversation's history.
	AppendMessage(ctx context.Context, key string, msg StoredMessage) error

	// RecentMessages returns up to limit most recent turns, oldest first.
	RecentMessages(ctx context.Context, key string, limit int) ([]StoredMessage, error)

	// UpsertConversation merges meta into the conversation record, creating
	// it on first contact.
	UpsertConversation(ctx context.Context, key string, meta ConversationMeta) error

	// SaveLead writes a new lead record. There is no update path.
	SaveLead(ctx context.Context, lead Lead) error

	Close() error
}
