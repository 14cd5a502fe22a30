package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
)

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// InitialBackoff is the first retry wait; tests shrink it.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    *logrus.Entry
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	// retries are ours, not the SDK's, so every attempt is classified the same way
	options := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}

	client := openai.NewClient(options...)
	return &OpenAIClient{
		client: &client,
		cfg:    cfg,
		log:    logger.New().WithField("component", "oracle").WithField("model", cfg.Model),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    messages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	log := c.log.WithField("task", req.Task)
	start := time.Now()
	attempt := 0
	var out string

	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		resp, err := c.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			err = classify(ctx, err)
			log.WithField("attempt", attempt).WithError(err).Warn("oracle call failed")
			if !errors.Is(err, ErrTransient) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", ErrMalformed)
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return fmt.Errorf("%w: empty content (finish_reason=%s)", ErrMalformed, resp.Choices[0].FinishReason)
		}
		out = content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx))
	if err != nil {
		metrics.ObserveOracle(req.Task, outcome(err), time.Since(start))
		return "", err
	}
	metrics.ObserveOracle(req.Task, "ok", time.Since(start))
	log.WithField("attempts", attempt).WithField("duration_ms", time.Since(start).Milliseconds()).Debug("oracle call succeeded")
	return out, nil
}

func messages(req Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	return append(msgs, openai.UserMessage(req.Prompt))
}

// classify maps SDK and transport errors onto the oracle error kinds.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		// the caller gave up; retrying is pointless
		return fmt.Errorf("%w: %v", ErrPermanent, parent.Err())
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: status %d: %v", ErrTransient, apiErr.StatusCode, err)
		default:
			return fmt.Errorf("%w: status %d: %v", ErrPermanent, apiErr.StatusCode, err)
		}
	}
	// timeouts, resets, DNS: everything below HTTP is worth another try
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrPermanent):
		return "rejected"
	default:
		return "transient"
	}
}
