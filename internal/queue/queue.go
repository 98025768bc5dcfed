// Package queue provides the in-process job queue that runs fulfillment and
// generation work off the request path.
//
// Jobs are executed strictly in FIFO order by a single worker goroutine, so
// at most one job is active at any moment. Each job reports coarse progress
// through a callback; progress never decreases. A handler error or panic
// marks the job failed; it is logged and recorded, never returned to the
// caller of Add. Callers poll Get for the outcome. A job cut short by Stop
// is not failed: it returns to the waiting state.
//
// Jobs live in memory. An optional Recorder receives every state change so
// the owning service can persist it next to the records the job works on.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a job lifecycle state.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the job has finished.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

var (
	ErrUnknownKind  = errors.New("queue: no handler registered for job kind")
	ErrQueueFull    = errors.New("queue: full")
	ErrDuplicateJob = errors.New("queue: duplicate job id")
	ErrStopped      = errors.New("queue: stopped")
)

// Job is what a handler receives.
type Job struct {
	ID      string
	Kind    string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error { return json.Unmarshal(j.Payload, v) }

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	State      State           `json:"state"`
	Progress   int             `json:"progress"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// ProgressFunc reports job progress in percent. Values are clamped to
// [0,100]; values lower than the current progress are ignored.
type ProgressFunc func(percent int)

// Handler executes one job.
type Handler func(ctx context.Context, job Job, progress ProgressFunc) error

// Recorder persists job state changes. Errors are logged and otherwise ignored.
type Recorder interface {
	RecordJob(ctx context.Context, s Snapshot) error
}

// Metrics observes queue activity. Implemented by the observability package.
type Metrics interface {
	JobFinished(kind string, state State, d time.Duration)
	QueueDepth(n int)
}

type entry struct {
	snap Snapshot
}

// Queue is a single-worker FIFO job queue. The zero value is not usable;
// construct with New.
type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*entry
	handlers  map[string]Handler
	ch        chan string
	pending   int // waiting + active
	idle      chan struct{}
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
	rec       Recorder
	metrics   Metrics
	log       zerolog.Logger
	now       func() time.Time
	retention time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithBuffer sets how many jobs may wait before Add returns ErrQueueFull.
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan string, n)
		}
	}
}

// WithRecorder persists every state change through r.
func WithRecorder(r Recorder) Option { return func(q *Queue) { q.rec = r } }

// WithMetrics reports job outcomes and depth to m.
func WithMetrics(m Metrics) Option { return func(q *Queue) { q.metrics = m } }

// WithLogger sets the queue logger.
func WithLogger(l zerolog.Logger) Option { return func(q *Queue) { q.log = l } }

// WithRetention sets how long finished jobs stay queryable in memory.
func WithRetention(d time.Duration) Option { return func(q *Queue) { q.retention = d } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

// New returns a queue with no handlers. Register handlers, then Start it.
func New(opts ...Option) *Queue {
	closed := make(chan struct{})
	close(closed)
	q := &Queue{
		jobs:      map[string]*entry{},
		handlers:  map[string]Handler{},
		ch:        make(chan string, 256),
		idle:      closed,
		log:       zerolog.Nop(),
		now:       time.Now,
		retention: time.Hour,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Register installs the handler for kind. It must be called before Start.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	q.handlers[kind] = h
	q.mu.Unlock()
	q.log.Debug().Str("job_kind", kind).Msg("job handler registered")
}

// Add enqueues a job with a fresh id.
func (q *Queue) Add(kind string, payload any) (string, error) {
	id := uuid.NewString()
	return id, q.AddWithID(id, kind, payload)
}

// AddWithID enqueues a job under a caller-chosen id. Callers that must store
// the id before the job can observe it generate the id first.
func (q *Queue) AddWithID(id, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: encode payload: %w", err)
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}
	if _, ok := q.handlers[kind]; !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if _, ok := q.jobs[id]; ok {
		q.mu.Unlock()
		return ErrDuplicateJob
	}
	if len(q.ch) == cap(q.ch) {
		q.mu.Unlock()
		return ErrQueueFull
	}
	e := &entry{snap: Snapshot{
		ID:        id,
		Kind:      kind,
		State:     StateWaiting,
		Payload:   raw,
		CreatedAt: q.now().UTC(),
	}}
	q.jobs[id] = e
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	snap := e.snap
	q.pruneLocked()
	q.mu.Unlock()

	// Recorded before the worker can see the job, so the stored row only
	// goes back to waiting when a shutdown interrupts the job.
	q.record(snap)

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case q.ch <- id:
	default:
		// lost a race with another producer for the last slot
		delete(q.jobs, id)
		q.finishPendingLocked()
		return ErrQueueFull
	}
	if q.metrics != nil {
		q.metrics.QueueDepth(len(q.ch))
	}
	q.log.Debug().Str("job_id", id).Str("job_kind", kind).Msg("job enqueued")
	return nil
}

// Get returns a snapshot of the job.
func (q *Queue) Get(id string) (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snap, true
}

// Depth returns the number of jobs waiting to run.
func (q *Queue) Depth() int { return len(q.ch) }

// Start launches the worker. It returns immediately; the worker exits when
// ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	q.log.Info().Int("buffer", cap(q.ch)).Msg("job queue started")
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-q.ch:
				if q.metrics != nil {
					q.metrics.QueueDepth(len(q.ch))
				}
				q.run(ctx, id)
			}
		}
	}()
}

// Stop rejects new jobs, cancels the active one and waits for the worker.
// The interrupted job and any still waiting are left in the waiting state.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	cancel, done := q.cancel, q.done
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	q.log.Info().Msg("job queue stopped")
}

// WaitIdle blocks until no job is waiting or active, or ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	e, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	h := q.handlers[e.snap.Kind]
	start := q.now().UTC()
	e.snap.State = StateActive
	e.snap.StartedAt = &start
	job := Job{ID: id, Kind: e.snap.Kind, Payload: e.snap.Payload}
	snap := e.snap
	q.mu.Unlock()
	q.record(snap)

	lg := q.log.With().Str("job_id", id).Str("job_kind", job.Kind).Logger()
	lg.Debug().Msg("job started")

	err := invoke(ctx, h, job, q.progressFunc(e))

	// an error while the worker is shutting down is an interruption, not a
	// failure: the job goes back to waiting so its owner can resume it
	interrupted := err != nil && ctx.Err() != nil

	q.mu.Lock()
	end := q.now().UTC()
	switch {
	case interrupted:
		e.snap.State = StateWaiting
		e.snap.Error = "interrupted: " + err.Error()
	case err != nil:
		e.snap.FinishedAt = &end
		e.snap.State = StateFailed
		e.snap.Error = err.Error()
	default:
		e.snap.FinishedAt = &end
		e.snap.State = StateCompleted
		e.snap.Progress = 100
	}
	snap = e.snap
	q.mu.Unlock()
	q.record(snap)

	dur := end.Sub(start)
	switch {
	case interrupted:
		lg.Warn().Err(err).Dur("duration", dur).Msg("job interrupted by shutdown")
	case err != nil:
		lg.Error().Err(err).Dur("duration", dur).Msg("job failed")
	default:
		lg.Info().Dur("duration", dur).Msg("job completed")
	}
	if q.metrics != nil && !interrupted {
		q.metrics.JobFinished(job.Kind, snap.State, dur)
	}

	q.mu.Lock()
	q.finishPendingLocked()
	q.mu.Unlock()
}

func invoke(ctx context.Context, h Handler, job Job, progress ProgressFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, job, progress)
}

func (q *Queue) progressFunc(e *entry) ProgressFunc {
	return func(p int) {
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		q.mu.Lock()
		if e.snap.State != StateActive || p <= e.snap.Progress {
			q.mu.Unlock()
			return
		}
		e.snap.Progress = p
		snap := e.snap
		q.mu.Unlock()
		q.record(snap)
	}
}

func (q *Queue) finishPendingLocked() {
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// pruneLocked drops finished jobs older than the retention window.
func (q *Queue) pruneLocked() {
	if q.retention <= 0 {
		return
	}
	cutoff := q.now().Add(-q.retention)
	for id, e := range q.jobs {
		if e.snap.State.Terminal() && e.snap.FinishedAt != nil && e.snap.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}

func (q *Queue) record(s Snapshot) {
	if q.rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.rec.RecordJob(ctx, s); err != nil {
		q.log.Warn().Err(err).Str("job_id", s.ID).Str("state", string(s.State)).Msg("job record failed")
	}
}
