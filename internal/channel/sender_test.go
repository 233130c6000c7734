package channel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
)

func testSenderLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordedRequest struct {
	path string
	auth string
	body map[string]any
}

// recordingServer captures every request the dispatcher makes, in order.
type recordingServer struct {
	mu   sync.Mutex
	reqs []recordedRequest
	srv  *httptest.Server
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)

		rs.mu.Lock()
		rs.reqs = append(rs.reqs, recordedRequest{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			body: body,
		})
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message_id":"m1"}`))
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *recordingServer) requests() []recordedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]recordedRequest(nil), rs.reqs...)
}

func newTestDispatcher(baseURL string) *Dispatcher {
	return NewDispatcher(config.ChannelsConfig{
		GraphAPIBase: baseURL,
		WhatsApp:     config.WhatsAppConfig{PhoneNumberID: "5550001"},
	}, testSenderLogger())
}

func TestDispatcher_SocialEnvelope(t *testing.T) {
	rs := newRecordingServer(t)
	d := newTestDispatcher(rs.srv.URL)

	err := d.Send(context.Background(), domain.ChannelInstagram, "user-42", "hola!", "ig-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := rs.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.path != "/me/messages" {
		t.Errorf("expected /me/messages, got %s", req.path)
	}
	if req.auth != "Bearer ig-token" {
		t.Errorf("expected bearer token, got %q", req.auth)
	}
	recipient, _ := req.body["recipient"].(map[string]any)
	if recipient["id"] != "user-42" {
		t.Errorf("expected recipient.id user-42, got %v", recipient["id"])
	}
	message, _ := req.body["message"].(map[string]any)
	if message["text"] != "hola!" {
		t.Errorf("expected message.text hola!, got %v", message["text"])
	}
}

func TestDispatcher_WhatsAppEnvelope(t *testing.T) {
	rs := newRecordingServer(t)
	d := newTestDispatcher(rs.srv.URL)

	err := d.Send(context.Background(), domain.ChannelWhatsApp, "5491155551234", "hola", "wa-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := rs.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.path != "/5550001/messages" {
		t.Errorf("expected phone-number path, got %s", req.path)
	}
	if req.body["messaging_product"] != "whatsapp" {
		t.Errorf("expected messaging_product whatsapp, got %v", req.body["messaging_product"])
	}
	if req.body["to"] != "5491155551234" {
		t.Errorf("expected to field, got %v", req.body["to"])
	}
	if req.body["type"] != "text" {
		t.Errorf("expected type text, got %v", req.body["type"])
	}
	text, _ := req.body["text"].(map[string]any)
	if text["body"] != "hola" {
		t.Errorf("expected text.body hola, got %v", text["body"])
	}
}

func TestDispatcher_ChunksInOrder(t *testing.T) {
	rs := newRecordingServer(t)
	d := newTestDispatcher(rs.srv.URL)

	// Three lines that cannot share a 1000-byte chunk.
	lines := []string{
		"primero " + strings.Repeat("a", 900),
		"segundo " + strings.Repeat("b", 900),
		"tercero " + strings.Repeat("c", 900),
	}
	msg := strings.Join(lines, "\n")

	err := d.Send(context.Background(), domain.ChannelMessenger, "user-1", msg, "fb-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := rs.requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 chunk requests, got %d", len(reqs))
	}
	prefixes := []string{"primero", "segundo", "tercero"}
	for i, req := range reqs {
		message, _ := req.body["message"].(map[string]any)
		text, _ := message["text"].(string)
		if !strings.HasPrefix(text, prefixes[i]) {
			t.Errorf("chunk %d out of order: starts with %q", i, text[:10])
		}
	}
}

func TestDispatcher_APIErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","code":190}}`))
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	err := d.Send(context.Background(), domain.ChannelInstagram, "user-1", "hola", "bad-token")
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
	if !strings.Contains(err.Error(), "Invalid OAuth access token.") {
		t.Errorf("expected platform error message surfaced, got %v", err)
	}
}

func TestDispatcher_UnknownChannel(t *testing.T) {
	d := newTestDispatcher("http://unused")
	err := d.Send(context.Background(), domain.Channel("telegram"), "u", "m", "t")
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestDispatcher_ContextCancelledBetweenChunks(t *testing.T) {
	rs := newRecordingServer(t)
	d := newTestDispatcher(rs.srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel after the first chunk has had time to go out; the pacing delay
	// before chunk two must observe the cancellation.
	go func() {
		for len(rs.requests()) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		// Let the first response finish before cancelling the pacing delay.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	msg := strings.Repeat("a", 900) + "\n" + strings.Repeat("b", 900)
	err := d.Send(ctx, domain.ChannelInstagram, "user-1", msg, "tok")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(rs.requests()) != 1 {
		t.Errorf("expected only the first chunk sent, got %d", len(rs.requests()))
	}
}
