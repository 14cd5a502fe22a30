package store

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/pkg/errors"

	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

// Message is a row of the chat system's message table. This service only reads it.
type Message struct {
	MessageID string    `gorm:"column:messageid;primaryKey"`
	ChatID    string    `gorm:"column:chatid;index:idx_message_chat_created,priority:1"`
	Role      string    `gorm:"column:role"`
	Content   string    `gorm:"column:content"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_message_chat_created,priority:2;index"`
}

func (Message) TableName() string { return "message" }

// ConversationAnalysis is one analysis record, keyed by conversation.
type ConversationAnalysis struct {
	ChatID                string    `gorm:"column:chatid;primaryKey"`
	ClientName            *string   `gorm:"column:client_name"`
	CompanyName           *string   `gorm:"column:company_name"`
	ConversationSummary   *string   `gorm:"column:conversation_summary"`
	ServiceInterest       *string   `gorm:"column:service_interest;index"`
	TotalMessages         int       `gorm:"column:total_messages"`
	ConversationStartDate time.Time `gorm:"column:conversation_start_date"`
	ConversationEndDate   time.Time `gorm:"column:conversation_end_date;index"`
	IsCompleted           bool      `gorm:"column:is_completed;not null"`
	CompletionAnalysis    string    `gorm:"column:completion_analysis"`
	// AnalysisStatus is NULL on rows written before it existed; they count as incomplete.
	AnalysisStatus *string   `gorm:"column:analysis_status"`
	FailedFields   FieldList `gorm:"column:failed_fields;type:text"`
	LastUpdated    time.Time `gorm:"column:last_updated"`
}

func (ConversationAnalysis) TableName() string { return "conversation_analysis" }

// FieldList is stored as comma separated text so it reads the same on postgres and sqlite.
type FieldList []string

func (f FieldList) Value() (driver.Value, error) {
	return strings.Join(f, ","), nil
}

func (f *FieldList) Scan(v any) error {
	var s string
	switch x := v.(type) {
	case nil:
		*f = nil
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return errors.Errorf("failed_fields: cannot scan %T", v)
	}
	*f = nil
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

func fromRecord(r types.AnalysisRecord) ConversationAnalysis {
	service := string(r.ServiceInterest)
	if !r.ServiceInterest.Valid() {
		service = string(taxonomy.Default)
	}
	status := string(r.Status)
	return ConversationAnalysis{
		ChatID:                r.ConversationID,
		ClientName:            r.ClientName,
		CompanyName:           r.CompanyName,
		ConversationSummary:   r.Summary,
		ServiceInterest:       &service,
		TotalMessages:         r.TotalMessages,
		ConversationStartDate: r.ConversationStart.UTC(),
		ConversationEndDate:   r.ConversationEnd.UTC(),
		IsCompleted:           r.IsCompleted,
		CompletionAnalysis:    r.CompletionRationale,
		AnalysisStatus:        &status,
		FailedFields:          FieldList(r.FailedFields),
		LastUpdated:           r.LastUpdated.UTC(),
	}
}

func (a ConversationAnalysis) record() types.AnalysisRecord {
	r := types.AnalysisRecord{
		ConversationID:      a.ChatID,
		ClientName:          a.ClientName,
		CompanyName:         a.CompanyName,
		Summary:             a.ConversationSummary,
		ServiceInterest:     taxonomy.Default,
		TotalMessages:       a.TotalMessages,
		ConversationStart:   a.ConversationStartDate,
		ConversationEnd:     a.ConversationEndDate,
		IsCompleted:         a.IsCompleted,
		CompletionRationale: a.CompletionAnalysis,
		Status:              types.StatusPartial,
		FailedFields:        []string(a.FailedFields),
		LastUpdated:         a.LastUpdated,
	}
	if a.ServiceInterest != nil {
		s := taxonomy.Service(*a.ServiceInterest)
		if !s.Valid() {
			// legacy rows hold the label the oracle answered
			s = taxonomy.Normalize(*a.ServiceInterest)
		}
		r.ServiceInterest = s
	}
	if a.AnalysisStatus != nil {
		r.Status = types.AnalysisStatus(*a.AnalysisStatus)
	}
	return r
}

func fromMessage(m Message) types.Message {
	return types.Message{
		ConversationID: m.ChatID,
		MessageID:      m.MessageID,
		Role:           types.Role(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// flexTime scans aggregate timestamps. sqlite returns MIN/MAX of a datetime
// column as text since the aggregate loses the declared type.
type flexTime struct {
	time.Time
}

var sqliteLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339Nano,
}

func (f *flexTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		f.Time = time.Time{}
		return nil
	case time.Time:
		f.Time = x
		return nil
	case []byte:
		return f.parse(string(x))
	case string:
		return f.parse(x)
	}
	return errors.Errorf("cannot scan %T into a timestamp", v)
}

func (f *flexTime) parse(s string) error {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range sqliteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	return errors.Errorf("unrecognized timestamp %q", s)
}
