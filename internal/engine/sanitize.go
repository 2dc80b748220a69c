package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// controlTokenRe matches special-token artifacts that some models leak into
// their output. Feeding them back verbatim can derail subsequent turns or
// trigger 400s on strict endpoints.
var controlTokenRe = regexp.MustCompile(`<\|[^|>]*\|>`)

var controlMarkers = []string{
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
}

// Sanitize strips control-token artifacts from model-visible text.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = controlTokenRe.ReplaceAllString(s, "")
	for _, m := range controlMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return s
}

// truncateRunes cuts s to at most max bytes without splitting a rune, so
// truncated text never carries a replacement character back to a provider.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// SanitizeMessages returns a copy of msgs with textual content sanitized.
// Tool call arguments are left untouched: they are machine-generated JSON
// and rewriting them could corrupt valid payloads.
func SanitizeMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Content = Sanitize(m.Content)
		out[i] = m
	}
	return out
}
