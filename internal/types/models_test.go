package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptHelpers(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tr := Transcript{
		{Role: RoleCustomer, Content: "Bonjour", CreatedAt: base},
		{Role: RoleAgent, Content: "Bonjour, je suis MarIA", CreatedAt: base.Add(time.Minute)},
		{Role: RoleCustomer, Content: "Je cherche un salon", CreatedAt: base.Add(2 * time.Minute)},
		{Role: RoleAgent, Content: "Contactez Yasmine", CreatedAt: base.Add(3 * time.Minute)},
	}

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, base, tr.Start())
	assert.Equal(t, base.Add(3*time.Minute), tr.End())
	assert.Len(t, tr.Head(2), 2)
	assert.Len(t, tr.Head(10), 4)
	assert.Len(t, tr.Head(0), 4)
	assert.Len(t, tr.AgentMessages(), 2)

	var empty Transcript
	assert.True(t, empty.Start().IsZero())
	assert.True(t, empty.End().IsZero())
}

func TestAnalysisRecordHelpers(t *testing.T) {
	summary := "1. Besoins: ..."
	r := AnalysisRecord{TotalMessages: 2, IsCompleted: true}
	assert.True(t, r.ShortCompleted())
	assert.Equal(t, SummaryUnavailable, r.SummaryText())

	r.TotalMessages = 3
	r.Summary = &summary
	assert.False(t, r.ShortCompleted())
	assert.Equal(t, summary, r.SummaryText())
}

func TestBatchStatsAdd(t *testing.T) {
	var s BatchStats
	s.Add(BatchStats{Processed: 1, FieldFailures: map[string]int{FieldSummary: 1}})
	s.Add(BatchStats{Processed: 2, Errors: 1, FieldFailures: map[string]int{FieldSummary: 1, FieldCompletion: 1}})

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, map[string]int{FieldSummary: 2, FieldCompletion: 1}, s.FieldFailures)
}
