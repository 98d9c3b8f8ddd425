package services

import (
	"strings"
	"testing"
)

func TestSplitMessageIntoChunks(t *testing.T) {
	short := "короткое сообщение"
	chunks := splitMessageIntoChunks(short, 4000)
	if len(chunks) != 1 || chunks[0] != short {
		t.Errorf("Expected short message untouched, got %v", chunks)
	}

	long := strings.Repeat("абзац текста.\n\n", 600)
	chunks = splitMessageIntoChunks(long, 4000)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 4000 {
			t.Errorf("Chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
		if chunk == "" {
			t.Errorf("Chunk %d is empty", i)
		}
	}
}

func TestSplitMessageIntoChunksPrefersParagraphBreaks(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 3000)
	chunks := splitMessageIntoChunks(text, 4000)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[0], "b") {
		t.Error("Expected the split to land on the paragraph break")
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bold", "привет **мир**", "привет мир"},
		{"inline code", "запусти `make build`", "запусти make build"},
		{"header", "# Заголовок\nтекст", "Заголовок\nтекст"},
		{"link", "смотри [тут](https://example.com)", "смотри тут (https://example.com)"},
		{"plain", "обычный текст", "обычный текст"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdown(tt.input); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConvertToTelegramHTML(t *testing.T) {
	got := convertToTelegramHTML("привет **мир**")
	if !strings.Contains(got, "<b>мир</b>") {
		t.Errorf("Expected bold tag in output, got %q", got)
	}
}
