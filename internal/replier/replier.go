// Package replier turns an inbound message plus conversation history into a
// reply, applying the sales persona and the per-channel formatting rules.
// Generate never fails: when the model path is down the caller gets a static
// channel-specific text that always includes a human contact path.
package replier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
	"chatfunnel/internal/metrics"
)

const (
	replyMaxTokens   = 500
	replyTemperature = 0.7
)

type Replier struct {
	provider domain.Provider
	business config.BusinessConfig
	logger   *slog.Logger
}

func New(provider domain.Provider, business config.BusinessConfig, logger *slog.Logger) *Replier {
	return &Replier{
		provider: provider,
		business: business,
		logger:   logger,
	}
}

// Generate produces a reply for userText given the prior history (oldest
// first). Exactly one user message is submitted per call; prior bot turns
// map to the model role. Any provider failure yields the channel's static
// fallback instead of an error.
func (r *Replier) Generate(ctx context.Context, userText string, history []domain.StoredMessage, ch domain.Channel) string {
	messages := make([]domain.Message, 0, len(history)+1)
	for _, turn := range history {
		role := domain.RoleUser
		if turn.IsBot {
			role = domain.RoleModel
		}
		messages = append(messages, domain.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: userText})

	resp, err := r.provider.Chat(ctx, domain.ChatRequest{
		System:      r.systemPrompt(ch),
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		metrics.AIFailures.Inc()
		r.logger.Warn("reply generation failed, using fallback", "channel", ch, "error", err)
		return r.Fallback(ch)
	}

	return strings.TrimSpace(resp.Content)
}

// systemPrompt combines the shared sales persona with the channel's
// formatting overlay.
func (r *Replier) systemPrompt(ch domain.Channel) string {
	base := fmt.Sprintf(`Sos el asistente comercial de %s. Atendés consultas por chat en español, con tono cercano y profesional.

Ofrecemos: %s.

Tu objetivo es el embudo de ventas:
1. Saludá y entendé qué necesita la persona.
2. Presentá la opción que mejor le sirva.
3. Pedile un dato de contacto (teléfono o email) para avanzar.
4. Cerrá proponiendo el siguiente paso concreto.

No inventes precios ni promociones. Si no sabés algo, ofrecé que un asesor humano lo llame al %s.`,
		r.business.Name, r.business.Services, r.business.ContactPhone)

	return base + "\n\n" + channelOverlays[ch]
}

// channelOverlays adjust length, emoji density and the closing call to
// action per surface.
var channelOverlays = map[domain.Channel]string{
	domain.ChannelInstagram: `Formato Instagram: respuestas cortas (menos de 500 caracteres), hasta dos emojis, cerrá con "Escribinos y te armamos una propuesta 🙌".`,
	domain.ChannelMessenger: `Formato Messenger: respuestas cortas (menos de 500 caracteres), un emoji como máximo, cerrá invitando a dejar un teléfono de contacto.`,
	domain.ChannelWhatsApp:  `Formato WhatsApp: podés extenderte un poco más y usar listas, sin emojis salvo el saludo, cerrá ofreciendo coordinar una llamada.`,
}

// Fallback returns the static reply for a channel, used whenever the model
// path fails. It always names a human contact path.
func (r *Replier) Fallback(ch domain.Channel) string {
	switch ch {
	case domain.ChannelInstagram:
		return fmt.Sprintf("¡Gracias por escribirnos! 🙌 Ahora mismo no puedo responderte por acá, pero llamanos al %s y te ayudamos con lo que necesites.", r.business.ContactPhone)
	case domain.ChannelMessenger:
		return fmt.Sprintf("¡Gracias por tu mensaje! En este momento no puedo responderte por acá. Llamanos al %s y un asesor te atiende enseguida.", r.business.ContactPhone)
	case domain.ChannelWhatsApp:
		return fmt.Sprintf("Gracias por contactarnos. Estamos con demoras para responder por este medio; si es urgente, llamanos al %s y te atendemos al momento.", r.business.ContactPhone)
	}
	return fmt.Sprintf("Gracias por tu mensaje. Llamanos al %s y te ayudamos.", r.business.ContactPhone)
}

// MinimalFallback is the last-resort text the pipeline tries to deliver when
// the normal reply path failed end to end.
func (r *Replier) MinimalFallback() string {
	return fmt.Sprintf("Tuvimos un problema técnico. Llamanos al %s y te ayudamos.", r.business.ContactPhone)
}
