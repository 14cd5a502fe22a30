// Package extractor turns a conversation transcript into the individual
// analysis fields. Every extractor makes a single oracle call and never
// returns an error: failures are reported through the result state so one
// failed field cannot take down the others.
package extractor

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/types"
)

// Result is one extracted field. Err is set only when State is FieldFailed.
type Result[T any] struct {
	Value T
	State types.FieldState
	Err   error
}

func found[T any](v T) Result[T] { return Result[T]{Value: v, State: types.FieldFound} }

func absent[T any](v T) Result[T] { return Result[T]{Value: v, State: types.FieldAbsent} }

func failed[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, State: types.FieldFailed, Err: err}
}

// base carries what every extractor needs to talk to the oracle.
type base struct {
	oracle      oracle.Client
	task        string
	window      Window
	maxTokens   int
	temperature float64
	log         *logrus.Entry
}

func newBase(o oracle.Client, task string, w Window, maxTokens int, temperature float64) base {
	return base{
		oracle:      o,
		task:        task,
		window:      w,
		maxTokens:   maxTokens,
		temperature: temperature,
		log:         logger.New().WithField("component", "extractor").WithField("task", task),
	}
}

func (b base) ask(ctx context.Context, conversationID, prompt string) (string, error) {
	start := time.Now()
	out, err := b.oracle.Complete(ctx, oracle.Request{
		Task:            b.task,
		System:          systemAnalyst,
		Prompt:          prompt,
		MaxOutputTokens: b.maxTokens,
		Temperature:     b.temperature,
	})
	log := b.log.WithField("conversation_id", conversationID).WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		log.WithError(err).Warn("extraction failed")
		return "", err
	}
	log.Debug("extraction answered")
	return cleanText(out), nil
}

// cleanText strips the markdown fences models like to wrap answers in.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], " ") {
			// drop the language tag line
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func conversationID(t types.Transcript) string {
	if len(t) == 0 {
		return ""
	}
	return t[0].ConversationID
}
