package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/config"
	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/store"
	"convo-insights-go/internal/types"
)

// DatabaseFlags are shared by every command that only needs the store.
type DatabaseFlags struct {
	Config *config.Config
}

func NewDatabaseFlags() *DatabaseFlags {
	return &DatabaseFlags{Config: config.Load()}
}

func (f *DatabaseFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Config.DatabaseURL, "database-url", f.Config.DatabaseURL, "Postgres DSN (postgres://...) or sqlite file (file:insights.db)")
}

func (f *DatabaseFlags) Validate() error {
	return f.Config.ValidateDatabase()
}

// openStore connects and makes sure the analysis table exists. The message
// table is only created for local databases seeded from an export.
func openStore(ctx context.Context, cfg *config.Config, withMessages bool) (*store.Store, error) {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx, withMessages); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newOracle(cfg *config.Config) oracle.Client {
	if cfg.MockLLM {
		return oracle.MockClient{}
	}
	return oracle.NewOpenAIClient(oracle.OpenAIConfig{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.Model,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	})
}

// since turns a look-back in days into a lower bound for the read commands;
// zero means everything. analyze passes its window to the selector instead,
// where zero days is an empty window.
func since(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

func validateDays(days int) error {
	if days < 0 {
		return errors.New("--days must be >= 0")
	}
	return nil
}

func listRecords(ctx context.Context, st *store.Store, days int) ([]types.AnalysisRecord, error) {
	return st.ListAnalyses(ctx, store.Filter{Since: since(days)})
}
