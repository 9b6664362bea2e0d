package table

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/towers-go/internal/model"
)

// Publisher delivers a table's events to players
type Publisher interface {
	Publish(to model.PlayerID, e model.Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(to model.PlayerID, e model.Event)

// Publish calls f
func (f PublisherFunc) Publish(to model.PlayerID, e model.Event) { f(to, e) }

type command struct {
	fn    func(*Table) error
	reply chan error
}

// Runtime owns a Table on a single goroutine. Every read and write of the table
// goes through Do, so commands and ticks are applied one at a time in arrival order.
type Runtime struct {
	table     *Table
	publisher Publisher
	tick      time.Duration
	logger    *slog.Logger

	commands  chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	// shutdown is written before done is closed
	shutdown bool
}

// NewRuntime wraps t. A zero tick disables gravity, which tests use to drive Tick by hand.
func NewRuntime(t *Table, pub Publisher, tick time.Duration) *Runtime {
	return &Runtime{
		table:     t,
		publisher: pub,
		tick:      tick,
		logger:    t.logger,
		commands:  make(chan command),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// ID returns the table id
func (r *Runtime) ID() model.TableID { return r.table.ID() }

// Run processes commands and ticks until Close is called
func (r *Runtime) Run() {
	defer close(r.stopped)

	var tickC <-chan time.Time
	if r.tick > 0 {
		ticker := time.NewTicker(r.tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	r.logger.Debug("table runtime started")
	for {
		select {
		case cmd := <-r.commands:
			cmd.reply <- r.apply(cmd.fn)
			r.flush()

		case <-tickC:
			r.table.Tick()
			r.flush()

		case <-r.done:
			if r.shutdown {
				r.table.Shutdown()
				r.flush()
			}
			r.logger.Debug("table runtime stopped", slog.Bool("shutdown", r.shutdown))
			return
		}
	}
}

// Do runs fn on the table's goroutine and returns its error
func (r *Runtime) Do(ctx context.Context, fn func(*Table) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.commands <- cmd:
	case <-r.stopped:
		return model.ErrTableNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the table down, vacating its seats, and waits for the runtime to exit
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.shutdown = true
		close(r.done)
	})
	<-r.stopped
}

// Stop exits the runtime but leaves the table's persisted state alone, so it can be
// restored on the next start
func (r *Runtime) Stop() {
	r.closeOnce.Do(func() { close(r.done) })
	<-r.stopped
}

func (r *Runtime) apply(fn func(*Table) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("table command panicked", slog.Any("panic", rec))
			err = fmt.Errorf("%w: %v", model.ErrInvariantViolation, rec)
		}
	}()
	return fn(r.table)
}

func (r *Runtime) flush() {
	for _, out := range r.table.Drain() {
		r.publisher.Publish(out.To, out.Event)
	}
}
