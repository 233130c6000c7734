package domain

import "time"

// Channel identifies one of the supported messaging surfaces. The set is
// closed: every channel needs an entry in the channel dispatch table before
// the rest of the system will touch it.
type Channel string

const (
	// ChannelInstagram carries Instagram direct messages.
	ChannelInstagram Channel = "instagram"
	// ChannelMessenger carries Facebook page messages.
	ChannelMessenger Channel = "messenger"
	// ChannelWhatsApp carries WhatsApp Business Cloud messages.
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInstagram, ChannelMessenger, ChannelWhatsApp:
		return true
	}
	return false
}

// ConversationKey returns the identity of the thread for a sender on this
// channel. The same external id on two channels is two conversations.
func (c Channel) ConversationKey(externalUserID string) string {
	return string(c) + "_" + externalUserID
}

// LeadSource tags lead records with the surface they came from.
func (c Channel) LeadSource() string {
	return string(c) + "_dm"
}

// InboundMessage is the normalized form of one received chat message,
// produced by the channel normalizers from the three wire formats.
type InboundMessage struct {
	Channel        Channel
	ExternalUserID string
	DisplayName    string
	Text           string
	Timestamp      time.Time

	// AuthToken is the channel access credential used for the outbound send.
	// It is attached by the webhook controller and is never persisted.
	AuthToken string
}
