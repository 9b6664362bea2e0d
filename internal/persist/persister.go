// Package persist runs storage writes off the request path. In-memory state stays
// authoritative; a write that keeps failing is logged and counted, never rolled back.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/towers-go/internal/metrics"
)

// ErrStopped is returned by Enqueue after Stop
var ErrStopped = errors.New("persister stopped")

// Job is one unit of persistence work
type Job func(ctx context.Context) error

// Config controls queueing and retry behaviour
type Config struct {
	QueueSize   int
	Attempts    int
	BaseBackoff time.Duration
	// JobTimeout bounds a single attempt
	JobTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		QueueSize:   1024,
		Attempts:    3,
		BaseBackoff: 50 * time.Millisecond,
		JobTimeout:  5 * time.Second,
	}
}

type item struct {
	name string
	job  Job
	done chan struct{} // non-nil for flush markers
}

// Persister executes jobs in order on a single worker goroutine
type Persister struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue chan item

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// New creates a persister; call Run to start the worker
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Persister {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Persister{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "persist")),
		metrics: m,
		queue:   make(chan item, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Run processes jobs until the queue is closed by Stop. ctx cancels in-flight retries.
func (p *Persister) Run(ctx context.Context) {
	p.logger.Info("persister started")
	defer close(p.done)
	for it := range p.queue {
		if it.done != nil {
			close(it.done)
			continue
		}
		p.execute(ctx, it)
	}
	p.logger.Info("persister stopped")
}

// Enqueue schedules a job. It blocks if the queue is full.
func (p *Persister) Enqueue(name string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	p.queue <- item{name: name, job: job}
	return nil
}

// Flush waits until every job enqueued before the call has been attempted
func (p *Persister) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return ErrStopped
	}
	p.queue <- item{done: marker}
	p.mu.RUnlock()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new jobs and waits for the queue to drain
func (p *Persister) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}

func (p *Persister) execute(ctx context.Context, it item) {
	var err error
	for attempt := 0; attempt < p.cfg.Attempts; attempt++ {
		if attempt > 0 {
			backoff := p.cfg.BaseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				p.fail(it.name, ctx.Err())
				return
			}
		}

		err = p.attempt(ctx, it.job)
		if err == nil {
			return
		}
		p.logger.Warn("persist attempt failed",
			slog.String("job", it.name),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	p.fail(it.name, err)
}

func (p *Persister) attempt(ctx context.Context, job Job) error {
	if p.cfg.JobTimeout <= 0 {
		return job(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()
	return job(ctx)
}

func (p *Persister) fail(name string, err error) {
	p.logger.Error("persist job failed",
		slog.String("job", name),
		slog.Int("attempts", p.cfg.Attempts),
		slog.Any("error", err))
	if p.metrics != nil {
		p.metrics.PersistFailures.WithLabelValues(name).Inc()
	}
}
