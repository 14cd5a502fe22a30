// Package selector picks the conversations a batch run should analyze.
package selector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/types"
)

// Source lists grouped conversations; *store.Store implements it.
type Source interface {
	Candidates(ctx context.Context, since time.Time, limit int, force bool) ([]types.CandidateConversation, error)
}

type Selector struct {
	src Source
	now func() time.Time
	log *logrus.Entry
}

func New(src Source) *Selector {
	return &Selector{
		src: src,
		now: time.Now,
		log: logger.New().WithField("component", "selector"),
	}
}

// Select returns up to limit conversations with messages in the last days
// days, most recently ended first. Unless force is set, conversations that
// already have a complete analysis are left out. Read errors are logged and
// yield an empty selection.
func (s *Selector) Select(ctx context.Context, days, limit int, force bool) []types.CandidateConversation {
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	log := s.log.WithFields(logrus.Fields{"days": days, "limit": limit, "force": force})

	out, err := s.src.Candidates(ctx, since, limit, force)
	if err != nil {
		log.WithError(err).Error("could not select conversations")
		return nil
	}
	log.WithField("selected", len(out)).Info("conversations selected")
	return out
}
