package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mosaic/internal/metrics"
	"mosaic/internal/notify"
	"mosaic/internal/task"
	"mosaic/internal/worker"
)

// mailbox stands in for the event loop: completions queue up until the
// test goroutine, acting as owner, drains them.
type mailbox struct {
	mu      sync.Mutex
	pending []func()
}

func (b *mailbox) Dispatch(deliver, _ func()) bool {
	b.mu.Lock()
	b.pending = append(b.pending, deliver)
	b.mu.Unlock()
	return true
}

func (b *mailbox) drain() int {
	b.mu.Lock()
	fns := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (b *mailbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// gate blocks gated jobs until opened.
type gate struct {
	ch      chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{}), entered: make(chan struct{}, 64)}
}

// waitEntered blocks until a gated job is inside its first step, past
// the point where cancellation could stop it early.
func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("gated job never started")
	}
}

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

// operation returns an operation whose job waits for the gate, then
// yields arg as its result.
func (g *gate) operation(name string, arg int) Operation {
	return Operation{
		Name: name,
		Job: worker.JobFunc(func(*worker.Token, int) error {
			select {
			case g.entered <- struct{}{}:
			default:
			}
			<-g.ch
			return nil
		}),
		Result: func() any { return arg },
	}
}

func fastWorker() worker.Options {
	return worker.Options{Steps: 3, Sleep: func(time.Duration) {}}
}

type fixture struct {
	t       *testing.T
	m       *Manager
	pool    *task.Pool
	box     *mailbox
	rec     *notify.Recorder
	metrics *metrics.Collector
	gate    *gate
}

// newFixture builds a manager over a real pool.  Operations are gated
// unless configure replaces NewOperation.
func newFixture(t *testing.T, configure func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		box:     &mailbox{},
		rec:     &notify.Recorder{},
		metrics: metrics.New(),
		gate:    newGate(),
	}
	f.pool = task.NewPool(4, 16, nil, f.metrics)
	t.Cleanup(f.pool.Close)
	t.Cleanup(f.gate.open) // runs before pool.Close

	opts := Options{
		Pool:            f.pool,
		Dispatcher:      f.box,
		Notifier:        f.rec,
		Worker:          fastWorker(),
		NewOperation:    f.gate.operation,
		CancelOnDiscard: true,
		Metrics:         f.metrics,
	}
	if configure != nil {
		configure(&opts)
	}
	f.m = NewManager(opts)
	return f
}

// eventually drains completions, runs maintenance and checks cond until
// it holds.
func (f *fixture) eventually(cond func() bool) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		f.box.drain()
		f.m.PeriodicMaintenance()
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func (f *fixture) messages() []string { return f.rec.Messages() }
