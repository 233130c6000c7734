package channel

import (
	"strings"
	"testing"
)

func TestSplitMessage_Short(t *testing.T) {
	chunks := SplitMessage("mensaje corto", 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "mensaje corto" {
		t.Errorf("short message should pass through untouched, got %q", chunks[0])
	}
}

func TestSplitMessage_ExactLimit(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks := SplitMessage(text, 50)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("text at exactly the limit should be a single chunk")
	}
}

func TestSplitMessage_BreaksOnNewlines(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "esta es una línea de contenido del mensaje")
	}
	text := strings.Join(lines, "\n")

	chunks := SplitMessage(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
		}
	}
}

func TestSplitMessage_PreservesAllLines(t *testing.T) {
	lines := []string{
		"Hola, gracias por escribirnos.",
		"Tenemos tres planes disponibles.",
		"El plan básico incluye soporte por chat.",
		"El plan completo suma llamadas mensuales.",
		"¿Cuál te interesa?",
	}
	text := strings.Join(lines, "\n")

	chunks := SplitMessage(text, 70)
	joined := strings.Join(chunks, "\n")
	for _, line := range lines {
		if !strings.Contains(joined, line) {
			t.Errorf("line lost during split: %q", line)
		}
	}
}

func TestSplitMessage_LoneOverlongLineTruncates(t *testing.T) {
	// A single line with no break point cannot be chunked; it is truncated
	// to the limit rather than sent oversized.
	text := strings.Repeat("x", 250)
	chunks := SplitMessage(text, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 truncated chunk, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 {
		t.Errorf("expected truncation to the limit, got %d bytes", len(chunks[0]))
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	chunks := SplitMessage("", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for empty text, got %d", len(chunks))
	}
}
