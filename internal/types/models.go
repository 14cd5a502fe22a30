package types

import (
	"time"

	"convo-insights-go/internal/taxonomy"
)

// MinCompleteMessages is the shortest conversation that may be marked complete.
const MinCompleteMessages = 3

// SummaryUnavailable is shown wherever a summary failed to generate. It is never stored.
const SummaryUnavailable = "Résumé non disponible"

type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

type Message struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Transcript is one conversation's messages, oldest first.
type Transcript []Message

func (t Transcript) Len() int { return len(t) }

func (t Transcript) Start() time.Time {
	if len(t) == 0 {
		return time.Time{}
	}
	return t[0].CreatedAt
}

func (t Transcript) End() time.Time {
	if len(t) == 0 {
		return time.Time{}
	}
	return t[len(t)-1].CreatedAt
}

// Head returns at most the first n messages.
func (t Transcript) Head(n int) Transcript {
	if n <= 0 || n >= len(t) {
		return t
	}
	return t[:n]
}

func (t Transcript) AgentMessages() Transcript {
	var out Transcript
	for _, m := range t {
		if m.Role == RoleAgent {
			out = append(out, m)
		}
	}
	return out
}

// CandidateConversation is a conversation eligible for (re)analysis.
type CandidateConversation struct {
	ConversationID string    `json:"conversation_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	MessageCount   int       `json:"message_count"`
}

// FieldState distinguishes a validly empty field from one that failed to compute.
type FieldState string

const (
	FieldFound  FieldState = "found"
	FieldAbsent FieldState = "absent"
	FieldFailed FieldState = "failed"
)

// AnalysisStatus is stored with each record so selection does not have to
// infer completeness from individual nullable columns.
type AnalysisStatus string

const (
	StatusAbsent   AnalysisStatus = "absent"
	StatusPartial  AnalysisStatus = "partial"
	StatusComplete AnalysisStatus = "complete"
)

// Field names used in FailedFields, stats and metrics labels.
const (
	FieldClientName      = "client_name"
	FieldCompanyName     = "company_name"
	FieldSummary         = "summary"
	FieldServiceInterest = "service_interest"
	FieldCompletion      = "completion"
)

type AnalysisRecord struct {
	ConversationID      string           `json:"conversation_id"`
	ClientName          *string          `json:"client_name"`
	CompanyName         *string          `json:"company_name"`
	Summary             *string          `json:"summary"`
	ServiceInterest     taxonomy.Service `json:"service_interest"`
	TotalMessages       int              `json:"total_messages"`
	ConversationStart   time.Time        `json:"conversation_start"`
	ConversationEnd     time.Time        `json:"conversation_end"`
	IsCompleted         bool             `json:"is_completed"`
	CompletionRationale string           `json:"completion_rationale"`
	Status              AnalysisStatus   `json:"analysis_status"`
	FailedFields        []string         `json:"failed_fields,omitempty"`
	LastUpdated         time.Time        `json:"last_updated"`
}

// SummaryText is the summary for display, with the unavailable marker when missing.
func (r AnalysisRecord) SummaryText() string {
	if r.Summary == nil {
		return SummaryUnavailable
	}
	return *r.Summary
}

// ShortCompleted reports a record violating the minimum-length completion rule.
func (r AnalysisRecord) ShortCompleted() bool {
	return r.IsCompleted && r.TotalMessages < MinCompleteMessages
}

// BatchStats are the aggregate counts reported at the end of a batch run.
type BatchStats struct {
	Selected           int            `json:"selected"`
	Processed          int            `json:"processed"`
	Skipped            int            `json:"skipped"`
	Errors             int            `json:"errors"`
	NamesExtracted     int            `json:"names_extracted"`
	CompaniesExtracted int            `json:"companies_extracted"`
	SummariesGenerated int            `json:"summaries_generated"`
	ServicesIdentified int            `json:"services_identified"`
	Completed          int            `json:"completed"`
	FieldFailures      map[string]int `json:"field_failures,omitempty"`
	Duration           time.Duration  `json:"duration"`
}

// Add folds o into s.
func (s *BatchStats) Add(o BatchStats) {
	s.Selected += o.Selected
	s.Processed += o.Processed
	s.Skipped += o.Skipped
	s.Errors += o.Errors
	s.NamesExtracted += o.NamesExtracted
	s.CompaniesExtracted += o.CompaniesExtracted
	s.SummariesGenerated += o.SummariesGenerated
	s.ServicesIdentified += o.ServicesIdentified
	s.Completed += o.Completed
	for k, v := range o.FieldFailures {
		if s.FieldFailures == nil {
			s.FieldFailures = map[string]int{}
		}
		s.FieldFailures[k] += v
	}
}
