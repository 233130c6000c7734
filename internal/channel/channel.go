// Package channel knows the three messaging surfaces: how each one's webhook
// payload is shaped, how its send API is called, and how long its messages
// may be. All per-channel behavior lives in one dispatch table so adding a
// surface is a compile-time checked table entry, not a string switch.
package channel

import (
	"chatfunnel/internal/domain"
)

// channelSpec binds one channel variant to its wire behavior.
type channelSpec struct {
	object     string // webhook "object" value announcing this channel
	normalize  func(body []byte) []domain.InboundMessage
	chunkLimit int
	endpoint   func(base string, send SendConfig) string
	payload    func(recipientID, text string) any
}

const (
	// The two social surfaces share Meta's conversations API limit; the
	// business surface allows far longer message bodies.
	socialChunkLimit   = 1000
	businessChunkLimit = 4096
)

var specs = map[domain.Channel]channelSpec{
	domain.ChannelInstagram: {
		object:     "instagram",
		normalize:  normalizeMessaging(domain.ChannelInstagram, "ig_", true),
		chunkLimit: socialChunkLimit,
		endpoint:   socialEndpoint,
		payload:    socialPayload,
	},
	domain.ChannelMessenger: {
		object:     "page",
		normalize:  normalizeMessaging(domain.ChannelMessenger, "fb_", false),
		chunkLimit: socialChunkLimit,
		endpoint:   socialEndpoint,
		payload:    socialPayload,
	},
	domain.ChannelWhatsApp: {
		object:     "whatsapp_business_account",
		normalize:  normalizeWhatsApp,
		chunkLimit: businessChunkLimit,
		endpoint:   whatsappEndpoint,
		payload:    whatsappPayload,
	},
}

// objectIndex maps webhook object values back to channels.
var objectIndex = func() map[string]domain.Channel {
	idx := make(map[string]domain.Channel, len(specs))
	for ch, s := range specs {
		idx[s.object] = ch
	}
	return idx
}()

// FromObject resolves the channel announced by a webhook payload's object
// field. Unknown objects are not an error; the caller treats them as zero
// extracted messages.
func FromObject(object string) (domain.Channel, bool) {
	ch, ok := objectIndex[object]
	return ch, ok
}

// ChunkLimit returns the maximum outbound message length for the channel.
func ChunkLimit(ch domain.Channel) int {
	return specs[ch].chunkLimit
}
