package channel

import (
	"encoding/json"
	"time"

	"chatfunnel/internal/domain"
)

// Normalize walks the webhook body for the channel announced by object and
// returns the text messages it carries. Unknown objects and entries without
// a text body yield no messages, never an error.
func Normalize(object string, body []byte) []domain.InboundMessage {
	ch, ok := FromObject(object)
	if !ok {
		return nil
	}
	return specs[ch].normalize(body)
}

// --- Instagram / Messenger envelope ---
//
// Both social surfaces deliver entry[].messaging[] with a sender id and a
// message body. Instagram may include the sender's username; Messenger never
// exposes a name at this layer.

type messagingPayload struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

func normalizeMessaging(ch domain.Channel, prefix string, useUsername bool) func(body []byte) []domain.InboundMessage {
	return func(body []byte) []domain.InboundMessage {
		var payload messagingPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil
		}

		var msgs []domain.InboundMessage
		for _, entry := range payload.Entry {
			for _, ev := range entry.Messaging {
				if ev.Message.Text == "" || ev.Sender.ID == "" {
					continue
				}
				var name string
				if useUsername {
					name = ev.Sender.Username
				}
				if name == "" {
					name = synthesizeName(prefix, ev.Sender.ID)
				}
				msgs = append(msgs, domain.InboundMessage{
					Channel:        ch,
					ExternalUserID: ev.Sender.ID,
					DisplayName:    name,
					Text:           ev.Message.Text,
					Timestamp:      time.Now(),
				})
			}
		}
		return msgs
	}
}

// --- WhatsApp Business envelope ---

type whatsappPayloadBody struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func normalizeWhatsApp(body []byte) []domain.InboundMessage {
	var payload whatsappPayloadBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	var msgs []domain.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			// Contact display names ride alongside the messages.
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				if c.Profile.Name != "" {
					names[c.WaID] = c.Profile.Name
				}
			}

			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil || m.Text.Body == "" {
					continue
				}
				name := names[m.From]
				if name == "" {
					name = synthesizeName("wa_", m.From)
				}
				msgs = append(msgs, domain.InboundMessage{
					Channel:        domain.ChannelWhatsApp,
					ExternalUserID: m.From,
					DisplayName:    name,
					Text:           m.Text.Body,
					Timestamp:      time.Now(),
				})
			}
		}
	}
	return msgs
}

// synthesizeName builds a placeholder display name from the first 8
// characters of the channel-scoped id.
func synthesizeName(prefix, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return prefix + id
}
