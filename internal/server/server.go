// Package server exposes analysis records and reports over a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	middlewarestd "github.com/slok/go-http-metrics/middleware/std"

	"convo-insights-go/internal/actionable"
	"convo-insights-go/internal/aggregator"
	"convo-insights-go/internal/dataset"
	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/store"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Store is the read side of *store.Store.
type Store interface {
	ListAnalyses(ctx context.Context, f store.Filter) ([]types.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, conversationID string) (types.AnalysisRecord, error)
	Transcript(ctx context.Context, conversationID string) (types.Transcript, error)
	Messages(ctx context.Context, since time.Time) ([]types.Message, error)
}

type Server struct {
	store  Store
	listen string
	router *mux.Router
	log    *logger.Logger
	now    func() time.Time
}

func New(s Store, listen string) *Server {
	srv := &Server{
		store:  s,
		listen: listen,
		router: mux.NewRouter(),
		log:    logger.New(),
		now:    time.Now,
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	reg := prometheus.NewRegistry()
	mdlw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: reg, Prefix: "insights"}),
	})
	handle := func(path string, fn http.HandlerFunc) {
		s.router.Handle(path, middlewarestd.Handler(path, mdlw, fn)).Methods(http.MethodGet)
	}

	handle("/healthz", s.health)
	handle("/api/conversations", s.jsonConversations)
	handle("/api/conversations/{id}", s.jsonConversation)
	handle("/api/report", s.jsonReport)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.listen).Info("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordView adds display fields to a stored record.
type recordView struct {
	types.AnalysisRecord
	ServiceLabel string `json:"service_label"`
	SummaryText  string `json:"summary_text"`
}

func view(r types.AnalysisRecord) recordView {
	return recordView{AnalysisRecord: r, ServiceLabel: r.ServiceInterest.Label(), SummaryText: r.SummaryText()}
}

func (s *Server) jsonConversations(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r)
	q := r.URL.Query()

	f := store.Filter{Limit: defaultPageSize}
	var err error
	if f.Since, err = s.since(q.Get("days")); err != nil {
		failureResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := q.Get("service"); v != "" {
		if !taxonomy.Service(v).Valid() {
			failureResponse(w, http.StatusBadRequest, "unknown service "+strconv.Quote(v))
			return
		}
		f.Service = v
	}
	if v := q.Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			failureResponse(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		f.Completed = &b
	}
	if f.Limit, err = intParam(q.Get("limit"), defaultPageSize); err != nil || f.Limit < 1 || f.Limit > maxPageSize {
		failureResponse(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
		return
	}
	if f.Offset, err = intParam(q.Get("offset"), 0); err != nil || f.Offset < 0 {
		failureResponse(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	records, err := s.store.ListAnalyses(r.Context(), f)
	if err != nil {
		log.WithError(err).Error("could not list analyses")
		failureResponse(w, http.StatusInternalServerError, "could not list analyses")
		return
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, view(rec))
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": out,
		"count":         len(out),
	})
}

func (s *Server) jsonConversation(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r)
	id := mux.Vars(r)["id"]

	transcript, err := s.store.Transcript(r.Context(), id)
	if err != nil {
		log.WithError(err).Error("could not load transcript")
		failureResponse(w, http.StatusInternalServerError, "could not load transcript")
		return
	}
	resp := map[string]interface{}{
		"conversation_id": id,
		"transcript":      transcript,
		"analysis":        nil,
	}
	rec, err := s.store.GetAnalysis(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if len(transcript) == 0 {
			failureResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
	case err != nil:
		log.WithError(err).Error("could not load analysis")
		failureResponse(w, http.StatusInternalServerError, "could not load analysis")
		return
	default:
		resp["analysis"] = view(rec)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) jsonReport(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r)
	since, err := s.since(r.URL.Query().Get("days"))
	if err != nil {
		failureResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.store.ListAnalyses(r.Context(), store.Filter{Since: since})
	if err != nil {
		log.WithError(err).Error("could not list analyses")
		failureResponse(w, http.StatusInternalServerError, "could not build report")
		return
	}
	msgs, err := s.store.Messages(r.Context(), since)
	if err != nil {
		log.WithError(err).Error("could not list messages")
		failureResponse(w, http.StatusInternalServerError, "could not build report")
		return
	}
	ins := aggregator.Aggregate(records)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"insight": ins,
		"volume":  dataset.Summarize(msgs),
		"actions": actionable.Generate(ins),
	})
}

// since turns a days query parameter into a lower bound; empty or 0 means
// no bound, the same as the report and export commands.
func (s *Server) since(days string) (time.Time, error) {
	if days == "" {
		return time.Time{}, nil
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 0 {
		return time.Time{}, errors.New("days must be a non-negative integer")
	}
	if n == 0 {
		return time.Time{}, nil
	}
	return s.now().UTC().Add(-time.Duration(n) * 24 * time.Hour), nil
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func respondWithJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func failureResponse(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
