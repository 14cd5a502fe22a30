// Package pipeline runs the analysis batch over a selection of conversations.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
	"convo-insights-go/internal/processor"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

// Store is the slice of *store.Store the batch needs.
type Store interface {
	Transcript(ctx context.Context, conversationID string) (types.Transcript, error)
	UpsertAnalysis(ctx context.Context, rec types.AnalysisRecord) error
}

// Analyzer is implemented by *processor.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, conversationID string, t types.Transcript) (types.AnalysisRecord, processor.FieldOutcomes)
}

type Options struct {
	// Workers consuming the dispatch queue; values below 1 mean 1.
	Workers int
	// Delay between two dispatched conversations; 0 disables pacing.
	Delay time.Duration
	// DryRun analyzes without writing records.
	DryRun bool
}

type Orchestrator struct {
	store    Store
	analyzer Analyzer
	opts     Options
	log      *logrus.Entry
}

func New(store Store, analyzer Analyzer, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		store:    store,
		analyzer: analyzer,
		opts:     opts,
		log:      logger.New().WithField("component", "pipeline"),
	}
}

// WithLogger tags the orchestrator's lines, typically with a run id.
func (o *Orchestrator) WithLogger(log *logrus.Entry) *Orchestrator {
	o.log = log.WithField("component", "pipeline")
	return o
}

// Run analyzes every candidate and returns the aggregate counts. Cancelling
// ctx stops dispatching; conversations already handed to a worker finish.
func (o *Orchestrator) Run(ctx context.Context, candidates []types.CandidateConversation) types.BatchStats {
	start := time.Now()
	stats := types.BatchStats{Selected: len(candidates)}
	o.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"workers":    o.opts.Workers,
		"delay":      o.opts.Delay.String(),
		"dry_run":    o.opts.DryRun,
	}).Info("analysis batch starting")

	var (
		mu   sync.Mutex
		g    errgroup.Group
		jobs = make(chan types.CandidateConversation)
		work = context.WithoutCancel(ctx)
	)
	for i := 0; i < o.opts.Workers; i++ {
		g.Go(func() error {
			for c := range jobs {
				s := o.handle(work, c)
				mu.Lock()
				stats.Add(s)
				mu.Unlock()
			}
			return nil
		})
	}

	var tick <-chan time.Time
	if o.opts.Delay > 0 {
		ticker := time.NewTicker(o.opts.Delay)
		defer ticker.Stop()
		tick = ticker.C
	}

dispatch:
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				break dispatch
			case <-tick:
			}
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- c:
		}
	}
	close(jobs)
	_ = g.Wait()

	if ctx.Err() != nil {
		o.log.WithField("dispatched", stats.Processed+stats.Skipped+stats.Errors).Warn("analysis batch interrupted")
	}
	stats.Duration = time.Since(start)
	o.log.WithFields(logrus.Fields{
		"processed":           stats.Processed,
		"skipped":             stats.Skipped,
		"errors":              stats.Errors,
		"names_extracted":     stats.NamesExtracted,
		"companies_extracted": stats.CompaniesExtracted,
		"summaries_generated": stats.SummariesGenerated,
		"services_identified": stats.ServicesIdentified,
		"completed":           stats.Completed,
		"field_failures":      stats.FieldFailures,
		"duration":            stats.Duration.String(),
	}).Info("analysis batch finished")
	return stats
}

func (o *Orchestrator) handle(ctx context.Context, c types.CandidateConversation) types.BatchStats {
	log := o.log.WithField("conversation_id", c.ConversationID)

	t, err := o.store.Transcript(ctx, c.ConversationID)
	if err != nil {
		log.WithError(err).Error("could not fetch transcript")
		metrics.Conversations.WithLabelValues("error").Inc()
		return types.BatchStats{Errors: 1}
	}
	if len(t) == 0 {
		log.Info("empty transcript, skipping")
		metrics.Conversations.WithLabelValues("skipped").Inc()
		return types.BatchStats{Skipped: 1}
	}

	rec, outcomes := o.analyzer.Analyze(ctx, c.ConversationID, t)
	s := fieldStats(rec, outcomes)

	if o.opts.DryRun {
		log.WithFields(logrus.Fields{
			"client_name":  deref(rec.ClientName),
			"company_name": deref(rec.CompanyName),
			"service":      rec.ServiceInterest,
			"is_completed": rec.IsCompleted,
			"status":       rec.Status,
			"summary":      rec.SummaryText(),
		}).Info("dry run, record not saved")
		metrics.Conversations.WithLabelValues("processed").Inc()
		s.Processed = 1
		return s
	}

	if err := o.store.UpsertAnalysis(ctx, rec); err != nil {
		log.WithError(err).Error("could not save analysis")
		metrics.Conversations.WithLabelValues("error").Inc()
		return types.BatchStats{Errors: 1}
	}
	log.WithFields(logrus.Fields{
		"status":       rec.Status,
		"is_completed": rec.IsCompleted,
		"service":      rec.ServiceInterest,
	}).Info("analysis saved")
	metrics.Conversations.WithLabelValues("processed").Inc()
	s.Processed = 1
	return s
}

func fieldStats(rec types.AnalysisRecord, outcomes processor.FieldOutcomes) types.BatchStats {
	var s types.BatchStats
	if outcomes[types.FieldClientName] == types.FieldFound {
		s.NamesExtracted = 1
	}
	if outcomes[types.FieldCompanyName] == types.FieldFound {
		s.CompaniesExtracted = 1
	}
	if outcomes[types.FieldSummary] == types.FieldFound {
		s.SummariesGenerated = 1
	}
	if outcomes[types.FieldServiceInterest] == types.FieldFound && rec.ServiceInterest != taxonomy.Default {
		s.ServicesIdentified = 1
	}
	if rec.IsCompleted {
		s.Completed = 1
	}
	for _, f := range outcomes.Failed() {
		if s.FieldFailures == nil {
			s.FieldFailures = map[string]int{}
		}
		s.FieldFailures[f]++
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
