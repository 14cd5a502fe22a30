package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"convo-insights-go/internal/store"
	"convo-insights-go/internal/store/storetest"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

var now = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func seeded(t *testing.T) *store.Store {
	t.Helper()
	st := storetest.New(t)
	storetest.Seed(t, st,
		storetest.Conversation("chat-recent", now.Add(-24*time.Hour),
			"Bonjour, je suis Laura",
			"A:Bonjour Laura, je suis MarIA.",
			"Une mission commerciale ?",
			"A:Contactez Yasmine Azlabi, +57 304 658 9045."),
		storetest.Conversation("chat-old", now.Add(-20*24*time.Hour),
			"Hola",
			"A:Bonjour !"),
		storetest.Conversation("chat-pending", now.Add(-2*time.Hour),
			"Bonjour"),
	)
	ctx := context.Background()
	require.NoError(t, st.UpsertAnalysis(ctx, types.AnalysisRecord{
		ConversationID:      "chat-recent",
		ClientName:          strPtr("Laura"),
		Summary:             strPtr("1. Besoins: mission commerciale"),
		ServiceInterest:     taxonomy.TradeMissions,
		TotalMessages:       4,
		ConversationStart:   now.Add(-24 * time.Hour),
		ConversationEnd:     now.Add(-24*time.Hour + 3*time.Minute),
		IsCompleted:         true,
		CompletionRationale: "COMPLETE",
		Status:              types.StatusComplete,
		LastUpdated:         now,
	}))
	require.NoError(t, st.UpsertAnalysis(ctx, types.AnalysisRecord{
		ConversationID:      "chat-old",
		ServiceInterest:     taxonomy.Default,
		TotalMessages:       2,
		ConversationStart:   now.Add(-20 * 24 * time.Hour),
		ConversationEnd:     now.Add(-20*24*time.Hour + time.Minute),
		CompletionRationale: "error: oracle: transient failure",
		Status:              types.StatusPartial,
		FailedFields:        []string{types.FieldSummary, types.FieldCompletion},
		LastUpdated:         now,
	}))
	return st
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func newServer(t *testing.T) *Server {
	srv := New(seeded(t), ":0")
	srv.now = func() time.Time { return now }
	return srv
}

func TestHealth(t *testing.T) {
	code, body := get(t, newServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
}

func TestListConversations(t *testing.T) {
	srv := newServer(t)

	code, body := get(t, srv, "/api/conversations")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())
	assert.Equal(t, "chat-recent", gjson.Get(body, "conversations.0.conversation_id").String())
	assert.Equal(t, "Missions économiques", gjson.Get(body, "conversations.0.service_label").String())
	assert.Equal(t, types.SummaryUnavailable, gjson.Get(body, "conversations.1.summary_text").String())
	assert.Equal(t, gjson.Null, gjson.Get(body, "conversations.1.summary").Type)

	tests := []struct {
		query string
		ids   []string
	}{
		{"?days=7", []string{"chat-recent"}},
		{"?days=0", []string{"chat-recent", "chat-old"}},
		{"?completed=false", []string{"chat-old"}},
		{"?service=trade_missions", []string{"chat-recent"}},
		{"?limit=1&offset=1", []string{"chat-old"}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			code, body := get(t, srv, "/api/conversations"+tc.query)
			require.Equal(t, http.StatusOK, code, body)
			var ids []string
			for _, v := range gjson.Get(body, "conversations.#.conversation_id").Array() {
				ids = append(ids, v.String())
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestListConversationsRejectsBadParameters(t *testing.T) {
	srv := newServer(t)
	for _, q := range []string{"?days=-1", "?days=x", "?service=crypto", "?completed=maybe", "?limit=0", "?limit=501", "?offset=-2"} {
		t.Run(q, func(t *testing.T) {
			code, body := get(t, srv, "/api/conversations"+q)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, int64(http.StatusBadRequest), gjson.Get(body, "code").Int())
			assert.NotEmpty(t, gjson.Get(body, "message").String())
		})
	}
}

func TestGetConversation(t *testing.T) {
	srv := newServer(t)

	code, body := get(t, srv, "/api/conversations/chat-recent")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Laura", gjson.Get(body, "analysis.client_name").String())
	assert.Equal(t, int64(4), gjson.Get(body, "transcript.#").Int())
	assert.Equal(t, "agent", gjson.Get(body, "transcript.1.role").String())

	// messages without an analysis yet
	code, body = get(t, srv, "/api/conversations/chat-pending")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, gjson.Null, gjson.Get(body, "analysis").Type)
	assert.Equal(t, int64(1), gjson.Get(body, "transcript.#").Int())

	code, _ = get(t, srv, "/api/conversations/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReport(t *testing.T) {
	srv := newServer(t)

	code, body := get(t, srv, "/api/report")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, int64(2), gjson.Get(body, "insight.total").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "insight.completed").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "insight.partial").Int())
	assert.True(t, gjson.Get(body, "actions.#").Int() > 0)
	assert.Equal(t, int64(3), gjson.Get(body, "volume.conversations").Int())
	assert.Equal(t, int64(7), gjson.Get(body, "volume.messages").Int())

	_, body = get(t, srv, "/api/report?days=7")
	assert.Equal(t, int64(1), gjson.Get(body, "insight.total").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "volume.conversations").Int())
	assert.Equal(t, int64(5), gjson.Get(body, "volume.messages").Int())

	_, body = get(t, srv, "/api/report?days=0")
	assert.Equal(t, int64(2), gjson.Get(body, "insight.total").Int())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t)
	get(t, srv, "/healthz")

	code, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "insights_http_request_duration_seconds")
}
