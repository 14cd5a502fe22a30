// Package reconcile corrects analysis records that claim a conversation too
// short to be complete was completed.
package reconcile

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
	"convo-insights-go/internal/store"
	"convo-insights-go/internal/types"
)

// Store is implemented by *store.Store.
type Store interface {
	ShortCompleted(ctx context.Context, min int) ([]store.ShortCompletion, error)
	MarkIncomplete(ctx context.Context, conversationIDs []string, now time.Time) (int64, error)
	CompletionTotals(ctx context.Context) (store.Totals, error)
}

type Result struct {
	Violations []store.ShortCompletion `json:"violations"`
	Corrected  int64                   `json:"corrected"`
	Totals     store.Totals            `json:"totals"`
}

type Reconciler struct {
	store Store
	now   func() time.Time
	log   *logrus.Entry
}

func New(s Store) *Reconciler {
	return &Reconciler{
		store: s,
		now:   time.Now,
		log:   logger.New().WithField("component", "reconcile"),
	}
}

// WithLogger tags the reconciler's lines, typically with a run id.
func (r *Reconciler) WithLogger(log *logrus.Entry) *Reconciler {
	r.log = log.WithField("component", "reconcile")
	return r
}

// Plan lists the records Reconcile would correct without writing anything.
func (r *Reconciler) Plan(ctx context.Context) (Result, error) {
	found, err := r.store.ShortCompleted(ctx, types.MinCompleteMessages)
	if err != nil {
		return Result{}, err
	}
	totals, err := r.store.CompletionTotals(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, v := range found {
		r.log.WithFields(logrus.Fields{
			"conversation_id": v.ConversationID,
			"live_messages":   v.LiveMessages,
			"total_messages":  v.TotalMessages,
		}).Info("short conversation marked complete")
	}
	return Result{Violations: found, Totals: totals}, nil
}

// Reconcile sets is_completed=false and refreshes last_updated on every
// complete record whose conversation has fewer than three messages, either
// in the live message table or in the record's own snapshot. No other field
// is touched, and a second run with nothing new to fix writes nothing.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	found, err := r.store.ShortCompleted(ctx, types.MinCompleteMessages)
	if err != nil {
		return Result{}, err
	}
	res := Result{Violations: found}
	if len(found) > 0 {
		ids := make([]string, 0, len(found))
		for _, v := range found {
			ids = append(ids, v.ConversationID)
		}
		n, err := r.store.MarkIncomplete(ctx, ids, r.now())
		if err != nil {
			return res, errors.Wrapf(err, "correcting %d records", len(ids))
		}
		res.Corrected = n
		metrics.Reconciled.Add(float64(n))
	}
	if res.Totals, err = r.store.CompletionTotals(ctx); err != nil {
		return res, err
	}
	r.log.WithFields(logrus.Fields{
		"found":      len(found),
		"corrected":  res.Corrected,
		"completed":  res.Totals.Completed,
		"incomplete": res.Totals.Incomplete,
	}).Info("reconciliation finished")
	return res, nil
}
