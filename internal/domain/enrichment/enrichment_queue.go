package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/observability"
)

var (
	ErrQueueFull   = errors.New("enrichment queue is full")
	ErrQueueClosed = errors.New("enrichment queue is closed")
)

// Enricher runs the POI pipeline for one property.
type Enricher interface {
	EnrichProperty(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (*types.EnrichmentResult, error)
}

type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	HistoryTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 45 * time.Second
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = time.Hour
	}
	return c
}

// Queue runs enrichment jobs on a fixed pool of workers. At most one job per
// property waits in the queue: a newer submission supersedes the waiting one.
type Queue struct {
	enricher Enricher
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	// ids carries property ids; the job to run is looked up in pending.
	ids     chan uuid.UUID
	mu      sync.Mutex
	pending map[uuid.UUID]*job
	history *cache.Cache
	closed  bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
	group      *errgroup.Group
}

func NewQueue(enricher Enricher, cfg Config, logger *slog.Logger) *Queue {
	cfg = cfg.withDefaults()
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Queue{
		enricher:   enricher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		ids:        make(chan uuid.UUID, cfg.QueueSize),
		pending:    make(map[uuid.UUID]*job),
		history:    cache.New(cfg.HistoryTTL, 10*time.Minute),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

// Start launches the workers. It must be called once.
func (q *Queue) Start() {
	group, ctx := errgroup.WithContext(q.rootCtx)
	for i := 0; i < q.cfg.Workers; i++ {
		worker := i
		group.Go(func() error {
			q.work(ctx, worker)
			return nil
		})
	}
	q.group = group
	q.logger.Info("enrichment workers started", slog.Int("workers", q.cfg.Workers), slog.Int("queue_size", q.cfg.QueueSize))
}

// Submit enqueues an enrichment for the property and returns immediately.
func (q *Queue) Submit(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (types.EnrichmentJob, error) {
	_, span := otel.Tracer("EnrichmentQueue").Start(ctx, "Submit")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", propertyID.String()))

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.EnrichmentJob{}, ErrQueueClosed
	}

	now := q.now()
	j := newJob(propertyID, lat, lng, now)

	if prev, ok := q.pending[propertyID]; ok && prev.supersede(j.state.ID, now) {
		// The property already holds a slot in ids; reuse it.
		observability.EnrichmentJobsTotal.WithLabelValues(string(types.JobSuperseded)).Inc()
		q.pending[propertyID] = j
		q.history.SetDefault(j.state.ID.String(), j)
		q.logger.DebugContext(ctx, "enrichment job superseded",
			slog.String("property_id", propertyID.String()),
			slog.String("old_job_id", prev.state.ID.String()),
			slog.String("job_id", j.state.ID.String()))
		return j.snapshot(), nil
	}

	select {
	case q.ids <- propertyID:
	default:
		span.SetStatus(codes.Error, "queue full")
		return types.EnrichmentJob{}, ErrQueueFull
	}
	q.pending[propertyID] = j
	q.history.SetDefault(j.state.ID.String(), j)
	observability.EnrichmentQueueDepth.Set(float64(len(q.pending)))
	span.SetAttributes(attribute.String("job.id", j.state.ID.String()))
	return j.snapshot(), nil
}

func (q *Queue) lookup(id uuid.UUID) (*job, error) {
	v, ok := q.history.Get(id.String())
	if !ok {
		return nil, fmt.Errorf("%w: enrichment job %s", types.ErrNotFound, id)
	}
	return v.(*job), nil
}

// Get returns the current state of a job.
func (q *Queue) Get(id uuid.UUID) (types.EnrichmentJob, error) {
	j, err := q.lookup(id)
	if err != nil {
		return types.EnrichmentJob{}, err
	}
	return j.snapshot(), nil
}

// Await blocks until the job reaches a terminal status or ctx is done.
func (q *Queue) Await(ctx context.Context, id uuid.UUID) (types.EnrichmentJob, error) {
	j, err := q.lookup(id)
	if err != nil {
		return types.EnrichmentJob{}, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// Cancel stops a job. Waiting jobs are dropped; running jobs have their
// context cancelled and finish as cancelled.
func (q *Queue) Cancel(id uuid.UUID) (types.EnrichmentJob, error) {
	j, err := q.lookup(id)
	if err != nil {
		return types.EnrichmentJob{}, err
	}

	q.mu.Lock()
	if cur, ok := q.pending[j.state.PropertyID]; ok && cur == j {
		delete(q.pending, j.state.PropertyID)
		observability.EnrichmentQueueDepth.Set(float64(len(q.pending)))
	}
	q.mu.Unlock()

	// A worker may already have taken the job off pending without starting it.
	if j.cancelQueued("cancelled before start", q.now()) {
		observability.EnrichmentJobsTotal.WithLabelValues(string(types.JobCancelled)).Inc()
	}

	j.requestCancel()
	return j.snapshot(), nil
}

func (q *Queue) work(ctx context.Context, worker int) {
	l := q.logger.With(slog.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case propertyID, ok := <-q.ids:
			if !ok {
				return
			}
			if j := q.take(propertyID); j != nil {
				q.run(ctx, l, j)
			}
		}
	}
}

// take removes the waiting job for the property, if any.
func (q *Queue) take(propertyID uuid.UUID) *job {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.pending[propertyID]
	delete(q.pending, propertyID)
	observability.EnrichmentQueueDepth.Set(float64(len(q.pending)))
	return j
}

func (q *Queue) run(ctx context.Context, l *slog.Logger, j *job) {
	jobCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
	defer cancel()

	started := q.now()
	if !j.start(cancel, started) {
		return
	}
	snap := j.snapshot()
	l = l.With(slog.String("job_id", snap.ID.String()), slog.String("property_id", snap.PropertyID.String()))
	l.InfoContext(jobCtx, "enrichment job started")

	result, err := q.safeEnrich(jobCtx, snap)
	observability.EnrichmentJobDuration.Observe(q.now().Sub(started).Seconds())

	status := types.JobSucceeded
	errMsg := ""
	switch {
	case err == nil:
	case j.wasCancelled():
		status, errMsg = types.JobCancelled, "cancelled while running"
	default:
		status, errMsg = types.JobFailed, err.Error()
	}

	if j.finish(status, result, errMsg, q.now()) {
		observability.EnrichmentJobsTotal.WithLabelValues(string(status)).Inc()
	}
	if status == types.JobSucceeded && result != nil {
		l.InfoContext(jobCtx, "enrichment job finished", slog.Int("pois", result.Total), slog.Bool("degraded", result.Degraded))
		return
	}
	if status == types.JobSucceeded {
		return
	}
	l.WarnContext(jobCtx, "enrichment job did not succeed", slog.String("status", string(status)), slog.String("error", errMsg))
}

// safeEnrich keeps a panicking enricher from taking down the worker.
func (q *Queue) safeEnrich(ctx context.Context, snap types.EnrichmentJob) (result *types.EnrichmentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panicked: %v", r)
		}
	}()
	return q.enricher.EnrichProperty(ctx, snap.PropertyID, snap.Lat, snap.Lng)
}

// Shutdown stops accepting jobs, drops waiting ones and waits for running
// jobs until ctx expires, after which they are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	now := q.now()
	for propertyID, j := range q.pending {
		if j.finish(types.JobCancelled, nil, "queue shut down", now) {
			observability.EnrichmentJobsTotal.WithLabelValues(string(types.JobCancelled)).Inc()
		}
		delete(q.pending, propertyID)
	}
	observability.EnrichmentQueueDepth.Set(0)
	close(q.ids)
	q.mu.Unlock()

	if q.group == nil {
		q.rootCancel()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()

	select {
	case err := <-done:
		q.rootCancel()
		return err
	case <-ctx.Done():
		q.rootCancel()
		<-done
		return ctx.Err()
	}
}
