package engine

import (
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"endoftext token", "a<|endoftext|>b", "ab"},
		{"im_start token", "<|im_start|>assistant", "assistant"},
		{"inst markers", "[INST]do it[/INST]", "do it"},
		{"sys markers", "<<SYS>>prompt<</SYS>>", "prompt"},
		{"mixed", "x<|a|>[INST]y", "xy"},
		{"empty", "", ""},
		{"pipe without brackets kept", "a | b |> c", "a | b |> c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateRunesKeepsBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short string untouched", "abc", 10, "abc"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"multibyte preserved whole", "héllo", 3, "hé"}, // é is 2 bytes
		{"cut inside a rune backs up", "aé", 2, "a"},
		{"cut inside cjk backs up", "日本語", 4, "日"}, // 3 bytes per rune
		{"exact boundary", "日本語", 6, "日本"},
		{"zero max", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateRunes(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateRunes(%q, %d) produced invalid UTF-8", tt.in, tt.max)
			}
		})
	}
}

func TestSanitizeMessagesLeavesArgumentsAlone(t *testing.T) {
	msgs := []Message{
		AssistantMessage("<|bad|>text", []ToolCall{
			{ID: "1", Name: "echo", Arguments: `{"text":"<|literal|>"}`},
		}),
	}
	out := SanitizeMessages(msgs)
	if out[0].Content != "text" {
		t.Errorf("content = %q, want %q", out[0].Content, "text")
	}
	if out[0].ToolCalls[0].Arguments != `{"text":"<|literal|>"}` {
		t.Errorf("arguments were rewritten: %q", out[0].ToolCalls[0].Arguments)
	}
}
