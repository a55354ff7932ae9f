package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weatherlink-logger/internal/common"
)

// MaxErrorLength caps the error text kept in a HealthSummary.
const MaxErrorLength = 250

// Service runs ingestion cycles: fetch, select, reconcile and gated insert
// per category, then record one HealthSummary.
type Service struct {
	fetcher       Fetcher
	db            Database
	health        HealthRecorder
	observer      Observer
	log           *slog.Logger
	now           func() time.Time
	healthTimeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver registers an Observer for cycle events.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithServiceLogger sets the base logger; cycle loggers derive from it.
func WithServiceLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHealthTimeout bounds the HealthSummary write.
func WithHealthTimeout(d time.Duration) Option {
	return func(s *Service) { s.healthTimeout = d }
}

// NewService creates a new Service.
func NewService(fetcher Fetcher, db Database, health HealthRecorder, opts ...Option) *Service {
	s := &Service{
		fetcher:       fetcher,
		db:            db,
		health:        health,
		log:           slog.Default(),
		now:           time.Now,
		healthTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle performs one ingestion cycle and records its HealthSummary. It
// never returns an error: failures end up in the summary and the log.
func (s *Service) RunCycle(ctx context.Context) HealthSummary {
	start := s.now()
	log := s.log.With("cycle_id", uuid.NewString())
	ctx = WithLogger(ctx, log)
	log.Info("cycle started")

	var summary HealthSummary
	if err := s.ingest(ctx, &summary); err != nil {
		msg := common.Truncate(err.Error(), MaxErrorLength)
		summary.Errors = &msg
		log.Error("cycle failed", "err", err)
	}
	summary.Timestamp = s.now().UTC()

	s.record(ctx, summary)

	elapsed := s.now().Sub(start)
	if s.observer != nil {
		s.observer.CycleFinished(summary, elapsed)
	}
	log.Info("cycle finished",
		"api_success", summary.APISuccess,
		"db_success", summary.DBSuccess,
		"skipped_inserts", summary.SkippedInserts,
		"elapsed", elapsed,
	)
	return summary
}

// ingest runs the data path and returns the first error it met.
func (s *Service) ingest(ctx context.Context, summary *HealthSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during ingestion: %v", r)
		}
	}()
	log := loggerFrom(ctx)

	doc, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch current conditions: %w", err)
	}
	summary.APISuccess = 1

	readings := make(map[Category]Reading, len(categories))
	for _, c := range categories {
		if r, ok := SelectReading(doc.Sensors, c); ok {
			readings[c] = r
		}
	}

	sess, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := sess.Rollback(); rbErr != nil {
				log.Error("rollback failed", "err", rbErr)
			}
		}
	}()

	var firstErr error
	for _, c := range categories {
		r, ok := readings[c]
		if !ok {
			log.Info("no data for category, skipping", "category", string(c))
			continue
		}
		inserted, err := s.ingestCategory(ctx, sess, r)
		if err != nil {
			log.Error("category failed", "category", string(c), "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", c, err)
			}
			continue
		}
		if inserted {
			summary.MarkInserted(c)
		} else {
			summary.SkippedInserts++
		}
	}

	committed = true
	if err := sess.Commit(); err != nil {
		summary.clearInserts()
		if firstErr == nil {
			firstErr = fmt.Errorf("commit: %w", err)
		}
		return firstErr
	}
	if firstErr == nil {
		summary.DBSuccess = 1
	}
	return firstErr
}

func (s *Service) ingestCategory(ctx context.Context, tables Tables, r Reading) (bool, error) {
	table := r.Category.Table()

	added, err := Reconcile(ctx, tables, table, r)
	if err != nil {
		return false, err
	}
	if s.observer != nil {
		for _, col := range added {
			s.observer.ColumnAdded(table, col, InferKind(r.Fields[col]))
		}
	}

	ts, err := r.Timestamp()
	if err != nil {
		return false, err
	}
	return InsertIfChanged(ctx, tables, table, ts, r)
}

// record writes the summary on the health connection; failures are logged only.
func (s *Service) record(ctx context.Context, summary HealthSummary) {
	log := loggerFrom(ctx)
	if s.health == nil {
		log.Warn("no health recorder configured; summary not persisted")
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.healthTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("failed to write to system_health table", "err", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := s.health.RecordHealth(hctx, summary); err != nil {
		log.Error("failed to write to system_health table", "err", err)
	}
}
