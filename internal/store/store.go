// Package store reads conversations from the message table and persists
// analysis records. Postgres is the production backend; sqlite DSNs are
// accepted for local runs and tests.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/types"
)

// ErrNotFound is returned when no analysis record exists for a conversation.
var ErrNotFound = errors.New("analysis record not found")

type Store struct {
	DB *gorm.DB
}

// Open connects to postgres for postgres:// URLs and key=value DSNs, and to
// sqlite for anything else.
func Open(dsn string) (*Store, error) {
	dialector, isSQLite := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger.New().WithField("component", "store"), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "open database")
		}
		// a single writer avoids "database is locked" with concurrent workers
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{DB: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn), false
	}
	return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the analysis table. The message table belongs to
// the chat system and is only created when withMessages is set (local runs, tests).
func (s *Store) Migrate(ctx context.Context, withMessages bool) error {
	models := []any{&ConversationAnalysis{}}
	if withMessages {
		models = append(models, &Message{})
	}
	return errors.Wrap(s.DB.WithContext(ctx).AutoMigrate(models...), "migrate")
}

// InsertMessages writes chat messages; used to seed local databases. Messages
// whose id is already stored are left as they are, so reseeding is harmless.
func (s *Store) InsertMessages(ctx context.Context, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, Message{
			MessageID: m.MessageID,
			ChatID:    m.ConversationID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC(),
		})
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "messageid"}}, DoNothing: true}).
		CreateInBatches(rows, 500).Error
	return errors.Wrap(err, "insert messages")
}

// Transcript returns a conversation's messages oldest first.
func (s *Store) Transcript(ctx context.Context, conversationID string) (types.Transcript, error) {
	var rows []Message
	err := s.DB.WithContext(ctx).
		Where("chatid = ?", conversationID).
		Order("created_at ASC").
		Order("messageid ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "transcript %s", conversationID)
	}
	t := make(types.Transcript, 0, len(rows))
	for _, r := range rows {
		t = append(t, fromMessage(r))
	}
	return t, nil
}

// Messages returns every message sent since the given time, oldest first.
// A zero time means all of them.
func (s *Store) Messages(ctx context.Context, since time.Time) ([]types.Message, error) {
	q := s.DB.WithContext(ctx)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	var rows []Message
	if err := q.Order("created_at ASC").Order("messageid ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	out := make([]types.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromMessage(r))
	}
	return out, nil
}

// Candidates groups the messages sent since the given time by conversation,
// newest ending first. Without force, conversations whose record is complete
// are left out.
func (s *Store) Candidates(ctx context.Context, since time.Time, limit int, force bool) ([]types.CandidateConversation, error) {
	q := s.DB.WithContext(ctx).
		Table("message AS m").
		Select("m.chatid AS chatid, MIN(m.created_at) AS start_time, MAX(m.created_at) AS end_time, COUNT(*) AS message_count").
		Where("m.created_at >= ?", since.UTC())
	if !force {
		q = q.Joins("LEFT JOIN conversation_analysis a ON a.chatid = m.chatid").
			Where("(a.chatid IS NULL OR a.analysis_status IS NULL OR a.analysis_status <> ? OR a.conversation_summary IS NULL OR a.service_interest IS NULL)",
				string(types.StatusComplete))
	}
	rows, err := q.Group("m.chatid").
		Order("end_time DESC").
		Order("chatid").
		Limit(limit).
		Rows()
	if err != nil {
		return nil, errors.Wrap(err, "select candidates")
	}
	defer rows.Close()

	var out []types.CandidateConversation
	for rows.Next() {
		var (
			c          types.CandidateConversation
			start, end flexTime
		)
		if err := rows.Scan(&c.ConversationID, &start, &end, &c.MessageCount); err != nil {
			return nil, errors.Wrap(err, "scan candidate")
		}
		c.StartTime, c.EndTime = start.Time, end.Time
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "select candidates")
}

// UpsertAnalysis inserts the record or replaces every stored field of an existing one.
func (s *Store) UpsertAnalysis(ctx context.Context, r types.AnalysisRecord) error {
	row := fromRecord(r)
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chatid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"client_name", "company_name", "conversation_summary", "service_interest",
			"total_messages", "conversation_start_date", "conversation_end_date",
			"is_completed", "completion_analysis", "analysis_status", "failed_fields",
			"last_updated",
		}),
	}).Create(&row).Error
	return errors.Wrapf(err, "upsert analysis %s", r.ConversationID)
}

func (s *Store) GetAnalysis(ctx context.Context, conversationID string) (types.AnalysisRecord, error) {
	var row ConversationAnalysis
	err := s.DB.WithContext(ctx).Where("chatid = ?", conversationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.AnalysisRecord{}, ErrNotFound
	}
	if err != nil {
		return types.AnalysisRecord{}, errors.Wrapf(err, "get analysis %s", conversationID)
	}
	return row.record(), nil
}

// Filter narrows ListAnalyses. Zero values mean no constraint.
type Filter struct {
	Since     time.Time
	Service   string
	Completed *bool
	Limit     int
	Offset    int
}

// ListAnalyses returns records by conversation end, newest first.
func (s *Store) ListAnalyses(ctx context.Context, f Filter) ([]types.AnalysisRecord, error) {
	q := s.DB.WithContext(ctx).Model(&ConversationAnalysis{})
	if !f.Since.IsZero() {
		q = q.Where("conversation_end_date >= ?", f.Since.UTC())
	}
	if f.Service != "" {
		q = q.Where("service_interest = ?", f.Service)
	}
	if f.Completed != nil {
		q = q.Where("is_completed = ?", *f.Completed)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var rows []ConversationAnalysis
	if err := q.Order("conversation_end_date DESC").Order("chatid").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list analyses")
	}
	out := make([]types.AnalysisRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// ShortCompletion is a record judged complete on a conversation that is too short.
type ShortCompletion struct {
	ConversationID string `gorm:"column:chatid" json:"conversation_id"`
	TotalMessages  int    `gorm:"column:total_messages" json:"total_messages"`
	LiveMessages   int    `gorm:"column:live_messages" json:"live_messages"`
}

// ShortCompleted finds complete records whose live message count or stored
// snapshot is below min. A conversation with no messages left counts as zero.
func (s *Store) ShortCompleted(ctx context.Context, min int) ([]ShortCompletion, error) {
	var out []ShortCompletion
	err := s.DB.WithContext(ctx).Raw(`
		SELECT a.chatid AS chatid, a.total_messages AS total_messages, COALESCE(c.n, 0) AS live_messages
		FROM conversation_analysis a
		LEFT JOIN (SELECT chatid, COUNT(*) AS n FROM message GROUP BY chatid) c ON c.chatid = a.chatid
		WHERE a.is_completed = ? AND (COALESCE(c.n, 0) < ? OR a.total_messages < ?)
		ORDER BY a.chatid`, true, min, min).
		Scan(&out).Error
	return out, errors.Wrap(err, "find short completed conversations")
}

// MarkIncomplete clears is_completed on the given records and touches
// last_updated. Records already incomplete are not written.
func (s *Store) MarkIncomplete(ctx context.Context, conversationIDs []string, now time.Time) (int64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Model(&ConversationAnalysis{}).
		Where("chatid IN ? AND is_completed = ?", conversationIDs, true).
		Updates(map[string]any{"is_completed": false, "last_updated": now.UTC()})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "mark incomplete")
	}
	return res.RowsAffected, nil
}

// Totals counts analysis records by completion.
type Totals struct {
	Completed  int64 `json:"completed"`
	Incomplete int64 `json:"incomplete"`
}

func (s *Store) CompletionTotals(ctx context.Context) (Totals, error) {
	var rows []struct {
		IsCompleted bool
		N           int64
	}
	err := s.DB.WithContext(ctx).Model(&ConversationAnalysis{}).
		Select("is_completed, COUNT(*) AS n").
		Group("is_completed").
		Scan(&rows).Error
	if err != nil {
		return Totals{}, errors.Wrap(err, "completion totals")
	}
	var t Totals
	for _, r := range rows {
		if r.IsCompleted {
			t.Completed = r.N
		} else {
			t.Incomplete = r.N
		}
	}
	return t, nil
}
