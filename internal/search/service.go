// Package search provides the debounced terminology search used while a clinician is typing.
package search

import (
	"context"
	"time"

	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultDelay is how long a query must stay unchanged before it reaches the index.
	DefaultDelay = 200 * time.Millisecond
	// DefaultMaxResults is the hard ceiling on options returned per query.
	DefaultMaxResults = 50
)

// Service debounces queries into a Searcher, caps the ranked results and maps them to options.
// One Service corresponds to one input field: calls made on it supersede each other.
type Service struct {
	searcher   Searcher
	name       string
	delay      time.Duration
	maxResults int
	logger     *zap.Logger
	metrics    *metrics.Collector
	debouncer  *Debouncer[string, []models.SelectOption]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) ServiceOption {
	return func(s *Service) { s.delay = d }
}

// WithMaxResults sets the result cap. Values <= 0 keep the default.
func WithMaxResults(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithName labels the service in logs and metrics (usually the terminology kind).
func WithName(name string) ServiceOption {
	return func(s *Service) { s.name = name }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records queries and discarded calls on m.
func WithMetrics(m *metrics.Collector) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a search service over searcher.
func NewService(searcher Searcher, opts ...ServiceOption) *Service {
	s := &Service{
		searcher:   searcher,
		name:       "default",
		delay:      DefaultDelay,
		maxResults: DefaultMaxResults,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewDebouncer(s.delay, s.run, s.discarded)
	return s
}

// Search schedules query. The returned channel receives the options for query, or is closed
// without a value when a later Search replaces this one or ctx ends first.
func (s *Service) Search(ctx context.Context, query string) <-chan []models.SelectOption {
	return s.debouncer.Call(ctx, query)
}

// Stop discards any pending query.
func (s *Service) Stop() {
	s.debouncer.Stop()
}

func (s *Service) run(_ context.Context, query string) []models.SelectOption {
	matches, err := s.searcher.Search(query)
	if err != nil {
		// Treated as no matches: an unavailable index is caught when the catalog is built.
		s.logger.Warn("terminology search failed", zap.String("name", s.name), zap.String("query", query), zap.Error(err))
		matches = nil
	}
	if len(matches) > s.maxResults {
		matches = matches[:s.maxResults]
	}
	options := models.ToSelectOptions(matches)
	s.logger.Debug("terminology search",
		zap.String("name", s.name),
		zap.String("query", query),
		zap.Int("results", len(options)))
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(s.name).Inc()
		s.metrics.SearchResults.WithLabelValues(s.name).Observe(float64(len(options)))
	}
	return options
}

func (s *Service) discarded(query string) {
	s.logger.Debug("terminology search superseded", zap.String("name", s.name), zap.String("query", query))
	if s.metrics != nil {
		s.metrics.SearchSupersededTotal.WithLabelValues(s.name).Inc()
	}
}

// Await blocks until ch settles. ok is false when the call was superseded or ctx ended.
func Await(ctx context.Context, ch <-chan []models.SelectOption) (options []models.SelectOption, ok bool) {
	select {
	case options, ok = <-ch:
		return options, ok
	case <-ctx.Done():
		return nil, false
	}
}
