package prefetch

import (
	"context"
	"sync"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
)

const (
	DefaultIdlePoll    = 50 * time.Millisecond
	DefaultIdleMaxWait = 2 * time.Second
)

// IdleGate reports whether the process has spare capacity for low priority
// work.
type IdleGate interface {
	Idle() bool
}

type Option func(*Queue)

// WithIdleGate makes low priority tasks wait until gate reports idle, for
// at most maxWait per task.
func WithIdleGate(gate IdleGate, maxWait time.Duration) Option {
	return func(q *Queue) {
		q.idle = gate
		if maxWait > 0 {
			q.idleMaxWait = maxWait
		}
	}
}

// WithSeenTTL lets a target be enqueued again once ttl has passed since it
// was first seen. Zero keeps targets seen forever.
func WithSeenTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.seenTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending  int   `json:"pending"`
	Seen     int   `json:"seen"`
	Executed int64 `json:"executed"`
	Failed   int64 `json:"failed"`
	Running  bool  `json:"running"`
}

// Queue is a deduplicating FIFO of prefetch tasks drained by one goroutine.
type Queue struct {
	exec Executor

	mu       sync.Mutex
	pending  []Task
	seen     map[string]time.Time
	seenTTL  time.Duration
	executed int64
	failed   int64
	running  bool

	wake chan struct{}

	idle        IdleGate
	idleMaxWait time.Duration
	idlePoll    time.Duration

	now     func() time.Time
	metrics *metrics.Registry
	logger  *logs.Logger
}

func NewQueue(exec Executor, reg *metrics.Registry, logger *logs.Logger, opts ...Option) *Queue {
	q := &Queue{
		exec:        exec,
		seen:        make(map[string]time.Time),
		wake:        make(chan struct{}, 1),
		idleMaxWait: DefaultIdleMaxWait,
		idlePoll:    DefaultIdlePoll,
		now:         time.Now,
		metrics:     reg,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue classifies target and queues it. It returns false when the target
// was already seen.
func (q *Queue) Enqueue(target string, p Priority) bool {
	return q.EnqueueTask(Task{Target: target, Priority: p})
}

// EnqueueTask queues t. High priority tasks go to the front.
func (q *Queue) EnqueueTask(t Task) bool {
	if t.Target == "" {
		return false
	}
	if t.Kind == "" {
		t.Kind = Classify(t.Target)
	}

	q.mu.Lock()
	now := q.now()
	if at, ok := q.seen[t.Target]; ok && (q.seenTTL <= 0 || now.Sub(at) < q.seenTTL) {
		q.mu.Unlock()
		q.metrics.Inc(metrics.PrefetchDuplicatesTotal)
		return false
	}
	q.seen[t.Target] = now
	t.EnqueuedAt = now

	if t.Priority == High {
		q.pending = append([]Task{t}, q.pending...)
	} else {
		q.pending = append(q.pending, t)
	}
	q.mu.Unlock()

	q.metrics.Inc(metrics.PrefetchEnqueuedTotal)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Task{}, false
	}
	t := q.pending[0]
	q.pending[0] = Task{}
	q.pending = q.pending[1:]
	return t, true
}

// Run drains the queue one task at a time until ctx is cancelled. Only one
// Run may be active; a second call returns immediately.
func (q *Queue) Run(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		q.logger.Warn("prefetch: queue already running")
		return
	}
	q.running = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		q.logger.Debug("prefetch queue stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		t, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if t.Priority == Low && q.idle != nil {
			if !q.waitIdle(ctx) {
				return
			}
		}
		q.execute(ctx, t)
	}
}

// waitIdle polls the gate until it reports idle or idleMaxWait passes. It
// returns false only when ctx is done.
func (q *Queue) waitIdle(ctx context.Context) bool {
	if q.idle.Idle() {
		return true
	}

	deadline := time.NewTimer(q.idleMaxWait)
	defer deadline.Stop()
	tick := time.NewTicker(q.idlePoll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return true
		case <-tick.C:
			if q.idle.Idle() {
				return true
			}
		}
	}
}

func (q *Queue) execute(ctx context.Context, t Task) {
	err := q.exec.Execute(ctx, t)

	q.mu.Lock()
	if err != nil {
		q.failed++
	} else {
		q.executed++
	}
	q.mu.Unlock()

	if err != nil {
		q.metrics.Inc(metrics.PrefetchFailuresTotal)
		q.logger.Warnf("prefetch: %s %s failed: %v", t.Kind, t.Target, err)
		return
	}
	q.metrics.Inc(metrics.PrefetchExecutedTotal)
	q.logger.Debugf("prefetch: %s %s done", t.Kind, t.Target)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Pending:  len(q.pending),
		Seen:     len(q.seen),
		Executed: q.executed,
		Failed:   q.failed,
		Running:  q.running,
	}
}
