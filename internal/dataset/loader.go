// Package dataset loads chat exports from spreadsheets into the message table
// for local runs, and summarizes message volumes.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/types"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"01-02-06 15:04",
	"2/1/2006 15:04",
	"2006-01-02",
}

// LoadMessages reads the first sheet of a chat export. Columns are found by
// header name; rows missing a conversation id, content or a parseable
// timestamp are skipped.
func LoadMessages(path string) ([]types.Message, error) {
	log := logger.New().WithField("component", "dataset.loader").WithField("path", path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	chatIdx, msgIdx, roleIdx, contentIdx, timeIdx := -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "chat") || strings.Contains(l, "conversation"):
			if chatIdx == -1 {
				chatIdx = i
			}
		case strings.Contains(l, "message") && strings.Contains(l, "id"):
			if msgIdx == -1 {
				msgIdx = i
			}
		case strings.Contains(l, "role") || strings.Contains(l, "sender"):
			if roleIdx == -1 {
				roleIdx = i
			}
		case strings.Contains(l, "content") || strings.Contains(l, "text") || l == "message":
			if contentIdx == -1 {
				contentIdx = i
			}
		case strings.Contains(l, "created") || strings.Contains(l, "date") || strings.Contains(l, "time"):
			if timeIdx == -1 {
				timeIdx = i
			}
		}
	}
	if chatIdx == -1 || contentIdx == -1 || timeIdx == -1 {
		return nil, fmt.Errorf("missing columns: need conversation id, content and created_at in %q", rows[0])
	}
	log.WithFields(map[string]interface{}{
		"chatIdx":    chatIdx,
		"messageIdx": msgIdx,
		"roleIdx":    roleIdx,
		"contentIdx": contentIdx,
		"timeIdx":    timeIdx,
	}).Debug("detected column indices")

	var out []types.Message
	skipped := 0
	for i, r := range rows {
		if i == 0 {
			continue
		}
		m := types.Message{
			ConversationID: cell(r, chatIdx),
			MessageID:      cell(r, msgIdx),
			Role:           parseRole(cell(r, roleIdx)),
			Content:        cell(r, contentIdx),
		}
		ts, ok := parseTime(cell(r, timeIdx))
		if m.ConversationID == "" || m.Content == "" || !ok {
			skipped++
			continue
		}
		m.CreatedAt = ts
		if m.MessageID == "" {
			m.MessageID = fmt.Sprintf("%s-%d", m.ConversationID, i)
		}
		out = append(out, m)
	}
	log.WithField("messages", len(out)).WithField("skipped", skipped).Info("chat export loaded")
	return out, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

// parseRole maps the export's sender labels; anything that is not the
// assistant is the customer.
func parseRole(s string) types.Role {
	switch strings.ToLower(s) {
	case "agent", "assistant", "bot", "maria":
		return types.RoleAgent
	}
	return types.RoleCustomer
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
