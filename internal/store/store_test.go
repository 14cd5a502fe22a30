package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo-insights-go/internal/store"
	"convo-insights-go/internal/store/storetest"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

var day = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func record(id string, status types.AnalysisStatus) types.AnalysisRecord {
	return types.AnalysisRecord{
		ConversationID:      id,
		ClientName:          strp("Ana"),
		Summary:             strp("1. Besoins: export"),
		ServiceInterest:     taxonomy.TradeMissions,
		TotalMessages:       5,
		ConversationStart:   day,
		ConversationEnd:     day.Add(4 * time.Minute),
		IsCompleted:         true,
		CompletionRationale: "COMPLETE - contact transmis",
		Status:              status,
		LastUpdated:         day.Add(time.Hour),
	}
}

func TestTranscriptOrdering(t *testing.T) {
	s := storetest.New(t)
	msgs := storetest.Conversation("c1", day, "C:Bonjour", "A:Bonjour !", "C:Je veux exporter")
	// insert out of order
	storetest.Seed(t, s, []types.Message{msgs[2], msgs[0], msgs[1]})

	tr, err := s.Transcript(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, tr, 3)
	assert.Equal(t, "Bonjour", tr[0].Content)
	assert.Equal(t, types.RoleAgent, tr[1].Role)
	assert.True(t, tr[2].CreatedAt.Equal(day.Add(2*time.Minute)))

	empty, err := s.Transcript(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertMessagesTwiceKeepsOneCopy(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	msgs := storetest.Conversation("c1", day, "C:Bonjour", "A:Bonjour !")

	require.NoError(t, s.InsertMessages(ctx, msgs))
	require.NoError(t, s.InsertMessages(ctx, msgs))

	tr, err := s.Transcript(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, tr, 2)
}

func TestMessagesSince(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.Seed(t, s,
		storetest.Conversation("old", day.Add(-48*time.Hour), "C:Hola", "A:Bonjour !"),
		storetest.Conversation("new", day, "C:Bonjour", "A:Bonjour !", "C:Merci"),
	)

	all, err := s.Messages(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "old", all[0].ConversationID)

	recent, err := s.Messages(ctx, day.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 3)
	for _, m := range recent {
		assert.Equal(t, "new", m.ConversationID)
	}
}

func TestUpsertReplacesEveryField(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	first := record("c1", types.StatusComplete)
	require.NoError(t, s.UpsertAnalysis(ctx, first))

	second := first
	second.ClientName = nil
	second.Summary = nil
	second.ServiceInterest = taxonomy.Training
	second.IsCompleted = false
	second.Status = types.StatusPartial
	second.FailedFields = []string{types.FieldSummary}
	second.LastUpdated = day.Add(2 * time.Hour)
	require.NoError(t, s.UpsertAnalysis(ctx, second))

	got, err := s.GetAnalysis(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got.ClientName)
	assert.Nil(t, got.Summary)
	assert.Equal(t, taxonomy.Training, got.ServiceInterest)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, types.StatusPartial, got.Status)
	assert.Equal(t, []string{types.FieldSummary}, got.FailedFields)
	assert.True(t, got.LastUpdated.Equal(day.Add(2*time.Hour)))
	assert.True(t, got.ConversationStart.Equal(day))

	var n int64
	require.NoError(t, s.DB.Model(&store.ConversationAnalysis{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestGetAnalysisNotFound(t *testing.T) {
	_, err := storetest.New(t).GetAnalysis(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLegacyServiceLabelIsNormalized(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.DB.Exec(
		`INSERT INTO conversation_analysis (chatid, service_interest, total_messages, is_completed, completion_analysis, conversation_start_date, conversation_end_date, last_updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"legacy", "Missions économiques", 4, true, "COMPLETE", day, day, day).Error)

	got, err := s.GetAnalysis(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.TradeMissions, got.ServiceInterest)
	assert.Equal(t, types.StatusPartial, got.Status, "rows without a status are not complete")
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.Seed(t, s,
		storetest.Conversation("old", day.Add(-10*24*time.Hour), "C:Bonjour", "A:Bonjour"),
		storetest.Conversation("done", day.Add(1*time.Hour), "C:Bonjour", "A:Bonjour", "C:Merci"),
		storetest.Conversation("partial", day.Add(2*time.Hour), "C:Bonjour", "A:Bonjour"),
		storetest.Conversation("new", day.Add(3*time.Hour), "C:Hola"),
		storetest.Conversation("legacy", day.Add(4*time.Hour), "C:Hola", "A:Hola"),
	)
	require.NoError(t, s.UpsertAnalysis(ctx, record("done", types.StatusComplete)))
	require.NoError(t, s.UpsertAnalysis(ctx, record("partial", types.StatusPartial)))
	legacy := record("legacy", types.StatusComplete)
	legacy.Summary = nil
	require.NoError(t, s.UpsertAnalysis(ctx, legacy))

	since := day.Add(-24 * time.Hour)

	got, err := s.Candidates(ctx, since, 10, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy", "new", "partial"}, ids(got))

	got, err = s.Candidates(ctx, since, 10, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy", "new", "partial", "done"}, ids(got))
	done := got[3]
	assert.Equal(t, 3, done.MessageCount)
	assert.True(t, done.StartTime.Equal(day.Add(time.Hour)), done.StartTime)
	assert.True(t, done.EndTime.Equal(day.Add(time.Hour+2*time.Minute)), done.EndTime)

	got, err = s.Candidates(ctx, since, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy", "new"}, ids(got))
}

func ids(cs []types.CandidateConversation) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.ConversationID)
	}
	return out
}

func TestListAnalyses(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	a := record("a", types.StatusComplete)
	b := record("b", types.StatusComplete)
	b.ConversationEnd = day.Add(24 * time.Hour)
	b.ServiceInterest = taxonomy.Training
	b.IsCompleted = false
	require.NoError(t, s.UpsertAnalysis(ctx, a))
	require.NoError(t, s.UpsertAnalysis(ctx, b))

	all, err := s.ListAnalyses(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ConversationID)

	completed := true
	only, err := s.ListAnalyses(ctx, store.Filter{Completed: &completed})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "a", only[0].ConversationID)

	training, err := s.ListAnalyses(ctx, store.Filter{Service: string(taxonomy.Training)})
	require.NoError(t, err)
	require.Len(t, training, 1)
	assert.Equal(t, "b", training[0].ConversationID)

	recent, err := s.ListAnalyses(ctx, store.Filter{Since: day.Add(12 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].ConversationID)
}

func TestShortCompletedAndMarkIncomplete(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.Seed(t, s,
		storetest.Conversation("short", day, "C:Bonjour", "A:Contactez Yasmine"),
		storetest.Conversation("long", day, "C:Bonjour", "A:Bonjour", "C:Export", "A:Contactez Yasmine"),
		storetest.Conversation("stale", day, "C:a", "A:b", "C:c"),
	)
	for _, id := range []string{"short", "long", "stale", "gone"} {
		require.NoError(t, s.UpsertAnalysis(ctx, record(id, types.StatusComplete)))
	}
	// snapshot disagrees with the live table
	stale := record("stale", types.StatusComplete)
	stale.TotalMessages = 2
	require.NoError(t, s.UpsertAnalysis(ctx, stale))

	found, err := s.ShortCompleted(ctx, types.MinCompleteMessages)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, store.ShortCompletion{ConversationID: "gone", TotalMessages: 5, LiveMessages: 0}, found[0])
	assert.Equal(t, store.ShortCompletion{ConversationID: "short", TotalMessages: 5, LiveMessages: 2}, found[1])
	assert.Equal(t, store.ShortCompletion{ConversationID: "stale", TotalMessages: 2, LiveMessages: 3}, found[2])

	now := day.Add(48 * time.Hour)
	n, err := s.MarkIncomplete(ctx, []string{"short", "gone", "stale"}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.MarkIncomplete(ctx, []string{"short"}, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetAnalysis(ctx, "short")
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	assert.True(t, got.LastUpdated.Equal(now))
	assert.Equal(t, "COMPLETE - contact transmis", got.CompletionRationale)
	assert.Equal(t, "Ana", *got.ClientName)

	totals, err := s.CompletionTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Totals{Completed: 1, Incomplete: 3}, totals)
}

func TestDialectorFor(t *testing.T) {
	assert.Equal(t, "postgres", store.DialectName("postgres://u:p@localhost:5432/chat"))
	assert.Equal(t, "postgres", store.DialectName("host=localhost user=u dbname=chat"))
	assert.Equal(t, "sqlite", store.DialectName("file:insights.db"))
	assert.Equal(t, "sqlite", store.DialectName("sqlite://insights.db"))
}
