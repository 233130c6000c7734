package channel

import (
	"testing"

	"chatfunnel/internal/domain"
)

func TestNormalize_UnknownObject(t *testing.T) {
	msgs := Normalize("unknown_thing", []byte(`{"object":"unknown_thing","entry":[]}`))
	if msgs != nil {
		t.Errorf("unknown object should yield no messages, got %d", len(msgs))
	}
}

func TestNormalize_MalformedBody(t *testing.T) {
	if msgs := Normalize("instagram", []byte("not json")); msgs != nil {
		t.Errorf("malformed body should yield no messages, got %d", len(msgs))
	}
}

func TestNormalize_InstagramWithUsername(t *testing.T) {
	body := []byte(`{"object":"instagram","entry":[{"messaging":[{"sender":{"id":"178900112233","username":"juana.perez"},"message":{"text":"hola!"}}]}]}`)

	msgs := Normalize("instagram", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Channel != domain.ChannelInstagram {
		t.Errorf("expected instagram, got %s", m.Channel)
	}
	if m.DisplayName != "juana.perez" {
		t.Errorf("expected profile username, got %q", m.DisplayName)
	}
	if m.ExternalUserID != "178900112233" {
		t.Errorf("expected sender id, got %q", m.ExternalUserID)
	}
}

func TestNormalize_InstagramWithoutUsername(t *testing.T) {
	body := []byte(`{"object":"instagram","entry":[{"messaging":[{"sender":{"id":"178900112233"},"message":{"text":"hola"}}]}]}`)

	msgs := Normalize("instagram", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].DisplayName != "ig_17890011" {
		t.Errorf("expected synthesized name ig_17890011, got %q", msgs[0].DisplayName)
	}
}

func TestNormalize_MessengerAlwaysSynthesizesName(t *testing.T) {
	// The page surface never exposes a profile name at this layer, even if a
	// username field rides along in the payload.
	body := []byte(`{"object":"page","entry":[{"messaging":[{"sender":{"id":"244600998877","username":"leaked"},"message":{"text":"buenas"}}]}]}`)

	msgs := Normalize("page", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Channel != domain.ChannelMessenger {
		t.Errorf("expected messenger, got %s", msgs[0].Channel)
	}
	if msgs[0].DisplayName != "fb_24460099" {
		t.Errorf("expected synthesized name fb_24460099, got %q", msgs[0].DisplayName)
	}
}

func TestNormalize_SkipsEmptyText(t *testing.T) {
	body := []byte(`{"object":"instagram","entry":[{"messaging":[
		{"sender":{"id":"1"},"message":{"text":""}},
		{"sender":{"id":"2"},"message":{"text":"real"}},
		{"sender":{"id":""},"message":{"text":"no sender"}}
	]}]}`)

	msgs := Normalize("instagram", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "real" {
		t.Errorf("expected the one text message, got %q", msgs[0].Text)
	}
}

func TestNormalize_WhatsAppTextMessage(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"contacts":[{"wa_id":"5491155551234","profile":{"name":"Ana García"}}],
		"messages":[{"from":"5491155551234","type":"text","text":{"body":"quiero un presupuesto"}}]
	}}]}]}`)

	msgs := Normalize("whatsapp_business_account", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Channel != domain.ChannelWhatsApp {
		t.Errorf("expected whatsapp, got %s", m.Channel)
	}
	if m.DisplayName != "Ana García" {
		t.Errorf("expected contact profile name, got %q", m.DisplayName)
	}
	if m.Text != "quiero un presupuesto" {
		t.Errorf("unexpected text %q", m.Text)
	}
}

func TestNormalize_WhatsAppSkipsNonText(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"messages":[
			{"from":"5491155551234","type":"image"},
			{"from":"5491155551234","type":"audio"},
			{"from":"5491155551234","type":"text","text":{"body":"solo esto"}}
		]
	}}]}]}`)

	msgs := Normalize("whatsapp_business_account", body)
	if len(msgs) != 1 {
		t.Fatalf("expected only the text message, got %d", len(msgs))
	}
	if msgs[0].Text != "solo esto" {
		t.Errorf("unexpected text %q", msgs[0].Text)
	}
}

func TestNormalize_WhatsAppWithoutContactName(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"messages":[{"from":"5491155551234","type":"text","text":{"body":"hola"}}]
	}}]}]}`)

	msgs := Normalize("whatsapp_business_account", body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].DisplayName != "wa_54911555" {
		t.Errorf("expected synthesized name wa_54911555, got %q", msgs[0].DisplayName)
	}
}

func TestFromObject(t *testing.T) {
	cases := []struct {
		object string
		ch     domain.Channel
		ok     bool
	}{
		{"instagram", domain.ChannelInstagram, true},
		{"page", domain.ChannelMessenger, true},
		{"whatsapp_business_account", domain.ChannelWhatsApp, true},
		{"user", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		ch, ok := FromObject(tc.object)
		if ok != tc.ok {
			t.Errorf("FromObject(%q): ok=%v, want %v", tc.object, ok, tc.ok)
			continue
		}
		if ok && ch != tc.ch {
			t.Errorf("FromObject(%q)=%s, want %s", tc.object, ch, tc.ch)
		}
	}
}

func TestChunkLimit(t *testing.T) {
	if got := ChunkLimit(domain.ChannelInstagram); got != socialChunkLimit {
		t.Errorf("instagram limit %d, want %d", got, socialChunkLimit)
	}
	if got := ChunkLimit(domain.ChannelWhatsApp); got != businessChunkLimit {
		t.Errorf("whatsapp limit %d, want %d", got, businessChunkLimit)
	}
}
