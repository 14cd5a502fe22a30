// Package oracle wraps the text-generation service every extractor talks to.
// Calls are independent: no conversation state is kept between them.
package oracle

import (
	"context"
	"errors"
)

var (
	// ErrTransient covers network failures, timeouts, rate limiting and 5xx answers.
	ErrTransient = errors.New("oracle: transient failure")
	// ErrMalformed means the service answered but gave no usable text.
	ErrMalformed = errors.New("oracle: malformed response")
	// ErrPermanent is a rejected request that retrying will not fix.
	ErrPermanent = errors.New("oracle: request rejected")
)

type Request struct {
	// Task names the extraction for logs and metrics (client_name, summary, ...).
	Task            string
	System          string
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
