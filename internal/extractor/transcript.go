package extractor

import (
	"strconv"
	"strings"

	"convo-insights-go/internal/types"
)

// Window bounds how much of a transcript reaches the oracle.
type Window struct {
	MaxMessages int // 0 keeps every message
	MaxChars    int // per message, in runes; 0 keeps full content
}

var (
	NameWindow       = Window{MaxMessages: 10, MaxChars: 500}
	CompanyWindow    = Window{MaxMessages: 10, MaxChars: 500}
	SummaryWindow    = Window{MaxMessages: 20, MaxChars: 600}
	ServiceWindow    = Window{MaxMessages: 15, MaxChars: 500}
	CompletionWindow = Window{MaxMessages: 0, MaxChars: 800}
)

const (
	agentLabel    = "MarIA"
	customerLabel = "Client"
	ellipsis      = " […]"
)

// Render writes the windowed transcript as "Speaker: content" lines.
func Render(t types.Transcript, w Window) string {
	var b strings.Builder
	for _, m := range t.Head(w.MaxMessages) {
		speaker := customerLabel
		if m.Role == types.RoleAgent {
			speaker = agentLabel
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(truncate(strings.TrimSpace(m.Content), w.MaxChars))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderAgent writes only the agent's turns, one per line, numbered.
func RenderAgent(t types.Transcript, w Window) string {
	var b strings.Builder
	for i, m := range t.AgentMessages().Head(w.MaxMessages) {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(truncate(strings.TrimSpace(m.Content), w.MaxChars))
		b.WriteByte('\n')
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
