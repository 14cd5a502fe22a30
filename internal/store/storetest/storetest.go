// Package storetest provides throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"convo-insights-go/internal/store"
	"convo-insights-go/internal/types"
)

// New opens a fresh in-memory sqlite store with both tables migrated.
func New(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background(), true))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Conversation builds one message per turn, a minute apart. Turns prefixed
// with "A:" are the agent's, anything else (optionally "C:") the customer's.
func Conversation(id string, start time.Time, turns ...string) []types.Message {
	msgs := make([]types.Message, 0, len(turns))
	for i, turn := range turns {
		role := types.RoleCustomer
		content := strings.TrimPrefix(turn, "C:")
		if strings.HasPrefix(turn, "A:") {
			role = types.RoleAgent
			content = strings.TrimPrefix(turn, "A:")
		}
		msgs = append(msgs, types.Message{
			ConversationID: id,
			MessageID:      fmt.Sprintf("%s-%03d", id, i),
			Role:           role,
			Content:        strings.TrimSpace(content),
			CreatedAt:      start.Add(time.Duration(i) * time.Minute).UTC(),
		})
	}
	return msgs
}

// Seed inserts the messages and fails the test on error.
func Seed(t testing.TB, s *store.Store, msgs ...[]types.Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, s.InsertMessages(context.Background(), m))
	}
}
