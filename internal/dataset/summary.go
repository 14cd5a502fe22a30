package dataset

import (
	"sort"

	"convo-insights-go/internal/types"
)

type DailyCount struct {
	Date     string `json:"date"`
	Messages int    `json:"messages"`
}

// Summary is the message-volume view of a set of conversations.
type Summary struct {
	Conversations         int          `json:"conversations"`
	Messages              int          `json:"messages"`
	CustomerMessages      int          `json:"customer_messages"`
	AgentMessages         int          `json:"agent_messages"`
	AvgConversationLength float64      `json:"avg_conversation_length"`
	ShortConversations    int          `json:"short_conversations"`
	Daily                 []DailyCount `json:"daily"`
}

// Summarize counts messages per conversation, per role and per UTC day.
func Summarize(msgs []types.Message) Summary {
	perChat := map[string]int{}
	perDay := map[string]int{}
	var s Summary
	for _, m := range msgs {
		perChat[m.ConversationID]++
		perDay[m.CreatedAt.UTC().Format("2006-01-02")]++
		if m.Role == types.RoleAgent {
			s.AgentMessages++
		} else {
			s.CustomerMessages++
		}
	}
	s.Messages = len(msgs)
	s.Conversations = len(perChat)
	for _, n := range perChat {
		if n < types.MinCompleteMessages {
			s.ShortConversations++
		}
	}
	if s.Conversations > 0 {
		s.AvgConversationLength = float64(s.Messages) / float64(s.Conversations)
	}
	for d, n := range perDay {
		s.Daily = append(s.Daily, DailyCount{Date: d, Messages: n})
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Date < s.Daily[j].Date })
	return s
}
