package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/logutil"
	"github.com/dm/gridmon/internal/metrics"
	"github.com/dm/gridmon/internal/tracing"
)

// State is a poller's lifecycle state. Stopped is terminal.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrAlreadyStarted = errors.New("poller already started")
	ErrStopped        = errors.New("poller stopped")
	// ErrCycleAborted wraps a membership failure; the previous
	// publication is left in place.
	ErrCycleAborted = errors.New("cycle aborted")
)

// Poller is the lifecycle and configuration contract shared by the
// cache-name and entry-count pollers. T is the published result type.
type Poller[T any] interface {
	Init() error
	Destroy()
	SetRefreshRate(d time.Duration)
	SetCredentials(user, pass string)
	SetManagementPortOffset(offset int)
	Latest() (T, bool)
	State() State
}

// Settings is the configuration a single cycle runs with, copied at cycle
// start.
type Settings struct {
	Credentials    client.Credentials
	PortOffset     int
	NodeTimeout    time.Duration
	MaxConcurrency int
}

type outcome int

const (
	outcomePublish outcome = iota
	// outcomeKeep means nothing usable was collected; the last
	// publication stays current.
	outcomeKeep
	outcomeAborted
	outcomeCancelled
)

func (o outcome) label() string {
	switch o {
	case outcomePublish:
		return "published"
	case outcomeKeep:
		return "empty"
	case outcomeAborted:
		return "aborted"
	default:
		return "cancelled"
	}
}

// cycleFunc runs one cycle. It must honour ctx cancellation.
type cycleFunc[T any] func(ctx context.Context, s Settings) (T, outcome, error)

// Manager runs a cycle function on a self-rescheduling timer: the next
// cycle starts RefreshRate after the previous one finished, so a slow
// cycle delays the next rather than overlapping it.
type Manager[T any] struct {
	name     string
	log      hclog.Logger
	cycle    cycleFunc[T]
	publish  func(T) error
	validate func() error

	mu          sync.Mutex
	state       State
	refresh     time.Duration
	creds       client.Credentials
	offset      int
	nodeTimeout time.Duration
	maxConc     int
	latest      T
	hasLatest   bool
	cancel      context.CancelFunc
	done        chan struct{}
	rateChanged chan struct{}
}

func newManager[T any](name string, log hclog.Logger, cycle cycleFunc[T], publish func(T) error) *Manager[T] {
	return &Manager[T]{
		name:        name,
		log:         logutil.OrDiscard(log).Named(name),
		cycle:       cycle,
		publish:     publish,
		refresh:     config.DefaultRefreshRate,
		creds:       client.Credentials{Username: config.DefaultUsername, Password: config.DefaultPassword},
		offset:      config.DefaultManagementPortOffset,
		maxConc:     config.DefaultMaxConcurrency,
		rateChanged: make(chan struct{}, 1),
	}
}

// Init validates the configuration and starts the periodic task. The first
// cycle runs immediately.
func (m *Manager[T]) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}
	if m.refresh <= 0 {
		return &config.Error{Field: "refreshRate", Reason: "must be positive"}
	}
	if err := config.ValidatePortOffset(m.offset); err != nil {
		return err
	}
	if m.validate != nil {
		if err := m.validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = StateRunning
	go m.run(ctx, m.done)

	m.log.Info("poller started", "refresh", m.refresh, "port_offset", m.offset)
	return nil
}

// Destroy cancels any in-flight cycle and returns once the loop has
// exited; nothing is published after it returns. Safe to call in any
// state.
func (m *Manager[T]) Destroy() {
	m.mu.Lock()
	prev := m.state
	m.state = StateStopped
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if prev != StateRunning {
		return
	}
	cancel()
	<-done
	m.log.Info("poller stopped")
}

// State returns the lifecycle state.
func (m *Manager[T]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetRefreshRate changes the delay between cycles. The in-flight cycle is
// unaffected; a pending sleep is re-armed with the new rate. Non-positive
// values are ignored once running and rejected by Init otherwise.
func (m *Manager[T]) SetRefreshRate(d time.Duration) {
	m.mu.Lock()
	if d <= 0 && m.state == StateRunning {
		m.mu.Unlock()
		m.log.Warn("ignoring non-positive refresh rate", "refresh", d)
		return
	}
	m.refresh = d
	m.mu.Unlock()

	select {
	case m.rateChanged <- struct{}{}:
	default:
	}
}

// RefreshRate returns the current refresh rate.
func (m *Manager[T]) RefreshRate() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh
}

// SetCredentials sets the management credential. Set it before Init;
// later changes apply from the next cycle.
func (m *Manager[T]) SetCredentials(user, pass string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = client.Credentials{Username: user, Password: pass}
}

// SetManagementPortOffset sets the offset subtracted from each node's
// cache-protocol port. Set it before Init; later changes apply from the
// next cycle.
func (m *Manager[T]) SetManagementPortOffset(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = offset
}

// SetNodeTimeout sets the per-node deadline; zero derives it from the
// refresh rate.
func (m *Manager[T]) SetNodeTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodeTimeout = d
}

// SetMaxConcurrency bounds the number of concurrent node queries.
func (m *Manager[T]) SetMaxConcurrency(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.maxConc = n
	}
}

// Latest returns the last published result.
func (m *Manager[T]) Latest() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest
}

func (m *Manager[T]) settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Settings{
		Credentials:    m.creds,
		PortOffset:     m.offset,
		NodeTimeout:    config.NodeTimeout(m.nodeTimeout, m.refresh),
		MaxConcurrency: m.maxConc,
	}
}

func (m *Manager[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		m.runCycle(ctx)

		finished := time.Now()
		timer := time.NewTimer(m.RefreshRate())
	sleep:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-m.rateChanged:
				timer.Stop()
				remaining := m.RefreshRate() - time.Since(finished)
				if remaining < 0 {
					remaining = 0
				}
				timer = time.NewTimer(remaining)
			case <-timer.C:
				break sleep
			}
		}
	}
}

func (m *Manager[T]) runCycle(ctx context.Context) {
	start := time.Now()
	ctx, end := tracing.StartSpan(ctx, m.name+".cycle", attribute.String("poller", m.name))
	defer end()

	result, out, err := m.cycle(ctx, m.settings())
	if ctx.Err() != nil {
		out = outcomeCancelled
	}

	switch out {
	case outcomePublish:
		if perr := m.publish(result); perr != nil {
			m.log.Error("publish failed", "error", perr)
			out = outcomeAborted
			break
		}
		m.mu.Lock()
		m.latest, m.hasLatest = result, true
		m.mu.Unlock()
	case outcomeKeep:
		m.log.Warn("no node answered, keeping last published result")
	case outcomeAborted:
		m.log.Warn("cycle aborted, keeping last published result", "error", err)
	}

	elapsed := time.Since(start)
	metrics.Cycles.WithLabelValues(m.name, out.label()).Inc()
	metrics.CycleDuration.WithLabelValues(m.name).Observe(elapsed.Seconds())
	m.log.Debug("cycle finished", "outcome", out.label(), "elapsed", elapsed)
}

// fanOut runs fn(ctx, i) for i in [0, n) with at most limit running at
// once and waits for all of them. fn reports its own failures.
func fanOut(ctx context.Context, limit, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

// nodeFailed logs and counts a node that could not be queried.
func nodeFailed(log hclog.Logger, poller, node string, err error) {
	reason := client.Reason(err)
	metrics.NodeFailures.WithLabelValues(poller, reason).Inc()
	log.Warn("node unavailable", "node", node, "reason", reason, "error", err)
}
