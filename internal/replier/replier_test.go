package replier

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testBusiness = config.BusinessConfig{
	Name:         "Estudio Norte",
	ContactPhone: "+54 9 11 4444-5555",
	Services:     "diseño web, branding y campañas",
}

// stubProvider returns canned responses or a fixed error.
type stubProvider struct {
	resp    string
	err     error
	lastReq domain.ChatRequest
}

func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ChatResponse{Content: s.resp}, nil
}

func (s *stubProvider) Name() string                      { return "stub" }
func (s *stubProvider) Healthy(ctx context.Context) error { return nil }

func TestGenerate_ReturnsTrimmedReply(t *testing.T) {
	p := &stubProvider{resp: "  ¡Hola! ¿En qué te ayudo?  \n"}
	r := New(p, testBusiness, testLogger())

	got := r.Generate(context.Background(), "hola", nil, domain.ChannelInstagram)
	if got != "¡Hola! ¿En qué te ayudo?" {
		t.Errorf("expected trimmed reply, got %q", got)
	}
}

func TestGenerate_MapsHistoryRoles(t *testing.T) {
	p := &stubProvider{resp: "ok"}
	r := New(p, testBusiness, testLogger())

	history := []domain.StoredMessage{
		{Text: "hola", IsBot: false},
		{Text: "¡Hola! ¿Qué necesitás?", IsBot: true},
	}
	r.Generate(context.Background(), "quiero info", history, domain.ChannelWhatsApp)

	msgs := p.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser {
		t.Errorf("first turn should be user, got %s", msgs[0].Role)
	}
	if msgs[1].Role != domain.RoleModel {
		t.Errorf("bot turn should map to model role, got %s", msgs[1].Role)
	}
	if msgs[2].Role != domain.RoleUser || msgs[2].Content != "quiero info" {
		t.Errorf("new message should be the final user turn, got %+v", msgs[2])
	}
}

func TestGenerate_SystemPromptPerChannel(t *testing.T) {
	p := &stubProvider{resp: "ok"}
	r := New(p, testBusiness, testLogger())

	r.Generate(context.Background(), "hola", nil, domain.ChannelInstagram)
	igPrompt := p.lastReq.System

	r.Generate(context.Background(), "hola", nil, domain.ChannelWhatsApp)
	waPrompt := p.lastReq.System

	if igPrompt == waPrompt {
		t.Error("channels should get different system prompts")
	}
	for _, prompt := range []string{igPrompt, waPrompt} {
		if !strings.Contains(prompt, testBusiness.Name) {
			t.Error("system prompt should name the business")
		}
		if !strings.Contains(prompt, testBusiness.ContactPhone) {
			t.Error("system prompt should carry the human contact phone")
		}
	}
	if !strings.Contains(igPrompt, "Instagram") {
		t.Error("instagram overlay missing")
	}
	if !strings.Contains(waPrompt, "WhatsApp") {
		t.Error("whatsapp overlay missing")
	}
}

func TestGenerate_ProviderFailureYieldsFallback(t *testing.T) {
	p := &stubProvider{err: errors.New("model unavailable")}
	r := New(p, testBusiness, testLogger())

	for _, ch := range []domain.Channel{
		domain.ChannelInstagram,
		domain.ChannelMessenger,
		domain.ChannelWhatsApp,
	} {
		got := r.Generate(context.Background(), "hola", nil, ch)
		want := r.Fallback(ch)
		if got != want {
			t.Errorf("%s: expected the static fallback, got %q", ch, got)
		}
		if !strings.Contains(got, testBusiness.ContactPhone) {
			t.Errorf("%s: fallback must include the contact phone", ch)
		}
	}
}

func TestFallback_DistinctPerChannel(t *testing.T) {
	r := New(&stubProvider{}, testBusiness, testLogger())

	ig := r.Fallback(domain.ChannelInstagram)
	fb := r.Fallback(domain.ChannelMessenger)
	wa := r.Fallback(domain.ChannelWhatsApp)
	if ig == fb || fb == wa || ig == wa {
		t.Error("each channel should have its own fallback text")
	}
}

func TestMinimalFallback(t *testing.T) {
	r := New(&stubProvider{}, testBusiness, testLogger())

	got := r.MinimalFallback()
	if !strings.Contains(got, testBusiness.ContactPhone) {
		t.Errorf("minimal fallback must include the contact phone, got %q", got)
	}
}
