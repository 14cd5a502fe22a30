// Package processor analyzes a single conversation: it runs every field
// extractor and assembles the resulting analysis record.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"convo-insights-go/internal/extractor"
	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

// FieldOutcomes records how each field came out, keyed by field name.
type FieldOutcomes map[string]types.FieldState

// Failed lists the failed fields in record order.
func (f FieldOutcomes) Failed() []string {
	var out []string
	for _, name := range fieldOrder {
		if f[name] == types.FieldFailed {
			out = append(out, name)
		}
	}
	return out
}

var fieldOrder = []string{
	types.FieldClientName,
	types.FieldCompanyName,
	types.FieldSummary,
	types.FieldServiceInterest,
	types.FieldCompletion,
}

type Analyzer struct {
	name       *extractor.EntityExtractor
	company    *extractor.EntityExtractor
	summary    *extractor.SummaryGenerator
	service    *extractor.ServiceClassifier
	completion *extractor.CompletionClassifier

	parallel bool
	now      func() time.Time
	log      *logrus.Entry
}

type Option func(*Analyzer)

// WithParallelFields runs the five extractions concurrently. Off by default
// so a single conversation never has more than one oracle call in flight.
func WithParallelFields(on bool) Option {
	return func(a *Analyzer) { a.parallel = on }
}

// WithClock replaces time.Now for last_updated stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(o oracle.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		name:       extractor.NewNameExtractor(o),
		company:    extractor.NewCompanyExtractor(o),
		summary:    extractor.NewSummaryGenerator(o),
		service:    extractor.NewServiceClassifier(o),
		completion: extractor.NewCompletionClassifier(o),
		now:        time.Now,
		log:        logger.New().WithField("component", "processor"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every extractor against the transcript and assembles a
// best-effort record. A failed field never stops the others.
func (a *Analyzer) Analyze(ctx context.Context, conversationID string, t types.Transcript) (types.AnalysisRecord, FieldOutcomes) {
	start := time.Now()
	var (
		name, company, summary extractor.Result[*string]
		service                extractor.Result[taxonomy.Service]
		verdict                extractor.Verdict
	)
	tasks := []func(){
		func() { name = a.name.Extract(ctx, t) },
		func() { company = a.company.Extract(ctx, t) },
		func() { summary = a.summary.Generate(ctx, t) },
		func() { service = a.service.Classify(ctx, t) },
		func() { verdict = a.completion.Classify(ctx, t) },
	}
	if a.parallel {
		var g errgroup.Group
		for _, task := range tasks {
			g.Go(func() error {
				task()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, task := range tasks {
			task()
		}
	}

	outcomes := FieldOutcomes{
		types.FieldClientName:      name.State,
		types.FieldCompanyName:     company.State,
		types.FieldSummary:         summary.State,
		types.FieldServiceInterest: service.State,
		types.FieldCompletion:      verdict.State,
	}
	rec := types.AnalysisRecord{
		ConversationID:      conversationID,
		ClientName:          name.Value,
		CompanyName:         company.Value,
		Summary:             summary.Value,
		ServiceInterest:     service.Value,
		TotalMessages:       t.Len(),
		ConversationStart:   t.Start(),
		ConversationEnd:     t.End(),
		IsCompleted:         verdict.IsCompleted,
		CompletionRationale: verdict.Rationale,
		Status:              types.StatusComplete,
		FailedFields:        outcomes.Failed(),
		LastUpdated:         a.now().UTC(),
	}
	if len(rec.FailedFields) > 0 {
		rec.Status = types.StatusPartial
	}
	applyShortConversationGuard(&rec)

	for field, state := range outcomes {
		metrics.Fields.WithLabelValues(field, string(state)).Inc()
	}
	a.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"messages":        rec.TotalMessages,
		"status":          rec.Status,
		"failed_fields":   rec.FailedFields,
		"is_completed":    rec.IsCompleted,
		"service":         rec.ServiceInterest,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Debug("conversation analyzed")
	return rec, outcomes
}

// applyShortConversationGuard enforces that a conversation shorter than
// MinCompleteMessages is never stored as complete.
func applyShortConversationGuard(rec *types.AnalysisRecord) {
	if !rec.ShortCompleted() {
		return
	}
	rec.IsCompleted = false
	rec.CompletionRationale = fmt.Sprintf("%s [forced incomplete: %d messages]", rec.CompletionRationale, rec.TotalMessages)
}
