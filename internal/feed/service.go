// Package feed implements the community mood feed: listing recent entries
// with the viewer's like state, toggling likes while keeping each entry's
// counter equal to its number of likes, and publishing new entries.
package feed

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/metrics"
	"pkg.aura.care/moodfeed/internal/storage"
)

const (
	DefaultFeedLimit         = 50
	MaxFeedLimit             = 200
	MaxNoteLength            = 500
	DefaultCallTimeout       = 10 * time.Second
	DefaultLookupConcurrency = 8
)

type Service struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	now               func() time.Time
	newID             func() string
	callTimeout       time.Duration
	lookupConcurrency int
	noteFilter        *regexp.Regexp
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithCallTimeout bounds every operation. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.callTimeout = d }
}

func WithLookupConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookupConcurrency = n
		}
	}
}

// WithNoteFilter rejects drafts whose note matches re. A nil re disables filtering.
func WithNoteFilter(re *regexp.Regexp) Option {
	return func(s *Service) { s.noteFilter = re }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store storage.Store, l *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:             store,
		logger:            l,
		now:               time.Now,
		newID:             uuid.NewString,
		callTimeout:       DefaultCallTimeout,
		lookupConcurrency: DefaultLookupConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// track starts timing op. Call the returned func with the operation's
// named error result when it finishes.
func (s *Service) track(op string) func(*error) {
	started := time.Now()
	return func(err *error) {
		outcome := "ok"
		if *err != nil {
			outcome = outcomeOf(*err)
		}
		s.metrics.Observe(op, outcome, started)
	}
}

func outcomeOf(err error) string {
	switch {
	case IsInvalidInput(err):
		return "invalid"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrEntryNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed"
	default:
		return "error"
	}
}
