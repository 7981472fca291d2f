// Package platform hosts the run controller: the state machine that owns the
// worker goroutine driving an evolution iterator, and the pause/resume
// protocol external callers use to observe and steer a run.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"anagenesis/internal/evo"
)

// RunState is the lifecycle state of a controlled run.
type RunState int

const (
	// StateNotReady means the controller exists but the iterator has not
	// been attached yet.
	StateNotReady RunState = iota
	// StateReady means the run can be started or continued.
	StateReady
	// StateRunning means the worker goroutine is iterating.
	StateRunning
	// StatePaused means the worker is parked between iterations.
	StatePaused
	// StateTerminated is final; the evaluator has been cleaned up and the
	// controller cannot be restarted.
	StateTerminated
)

func (s RunState) String() string {
	switch s {
	case StateNotReady:
		return "not-ready"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	ErrTerminated  = errors.New("run is terminated")
	ErrNotRunnable = errors.New("run is not in a runnable state")
	ErrAlreadyBusy = errors.New("run is already in progress")
	ErrNotAttached = errors.New("no iterator attached")
)

// UpdateListener receives a statistics snapshot after iterations complete.
// Listeners run on the worker goroutine; panics are recovered and logged, a
// misbehaving observer cannot kill the run.
type UpdateListener func(snap evo.StatsSnapshot)

// PauseListener is signalled when the worker parks, or when a fatal
// iteration error terminates the run. The final update notification is
// always delivered before the pause signal.
type PauseListener func(snap evo.StatsSnapshot)

// ControllerConfig wires a controller to an iterator.
type ControllerConfig struct {
	// Iterator may be nil at construction; the controller then stays in
	// NotReady until Attach supplies one.
	Iterator evo.Iterator
	// Evaluator, when set, lets the controller poll the evaluator's stop
	// condition and auto-pause the run.
	Evaluator evo.GenomeListEvaluator
	// IterationLimit auto-pauses after this many total iterations. Zero
	// means unlimited.
	IterationLimit int
	// EvaluationLimit auto-pauses once the evaluator's total evaluation
	// count reaches it. Zero means unlimited; requires Evaluator.
	EvaluationLimit int
	// UpdateInterval is the number of iterations between update
	// notifications. Defaults to 1.
	UpdateInterval int
	// UpdateEvery additionally forces an update notification when this much
	// wall-clock time has passed since the last one. Zero disables the
	// time-based cadence.
	UpdateEvery time.Duration
	// Closers are shut down, in order, during Reset.
	Closers []io.Closer
	Logger  *slog.Logger
}

func (cfg *ControllerConfig) validate() error {
	if cfg.IterationLimit < 0 {
		return fmt.Errorf("iteration limit must be >= 0, got %d", cfg.IterationLimit)
	}
	if cfg.EvaluationLimit < 0 {
		return fmt.Errorf("evaluation limit must be >= 0, got %d", cfg.EvaluationLimit)
	}
	if cfg.EvaluationLimit > 0 && cfg.Evaluator == nil {
		return fmt.Errorf("evaluation limit requires an evaluator")
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}

// Controller drives an iterator on a dedicated worker goroutine. All
// iteration work happens on that one goroutine; control methods only flip
// state and signal it, so PerformIteration never races with itself.
type Controller struct {
	cfg    ControllerConfig
	logger *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state RunState

	pauseRequested atomic.Bool
	terminating    atomic.Bool

	resumeCh   chan struct{}
	workerDone chan struct{}
	workerOnce sync.Once

	iterations int
	lastErr    error

	listenerMu      sync.Mutex
	updateListeners []UpdateListener
	pauseListeners  []PauseListener

	cleanupOnce sync.Once
	cleanupErr  error
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:        cfg,
		logger:     cfg.Logger,
		state:      StateNotReady,
		resumeCh:   make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	if cfg.Iterator != nil {
		c.state = StateReady
	}
	c.cond = sync.NewCond(&c.mu)
	return c, nil
}

// Attach supplies the iterator and moves a NotReady controller to Ready.
func (c *Controller) Attach(it evo.Iterator) error {
	if it == nil {
		return ErrNotAttached
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNotReady {
		return fmt.Errorf("iterator already attached: %w", ErrNotRunnable)
	}
	c.cfg.Iterator = it
	c.state = StateReady
	return nil
}

// AddUpdateListener registers an observer for iteration updates.
func (c *Controller) AddUpdateListener(fn UpdateListener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.updateListeners = append(c.updateListeners, fn)
}

// AddPauseListener registers an observer for pause transitions.
func (c *Controller) AddPauseListener(fn PauseListener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.pauseListeners = append(c.pauseListeners, fn)
}

func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Iterations reports the total iterations completed across all
// start/pause cycles.
func (c *Controller) Iterations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iterations
}

// LastError returns the error that auto-paused the run, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) Snapshot() evo.StatsSnapshot {
	return c.cfg.Iterator.Snapshot()
}

func (c *Controller) BestGenome() evo.Genome {
	return c.cfg.Iterator.BestGenome()
}

// StartContinue starts a Ready run or resumes a Paused one. The worker
// goroutine is created on first use.
func (c *Controller) StartContinue() error {
	c.mu.Lock()
	switch c.state {
	case StateNotReady:
		c.mu.Unlock()
		return ErrNotAttached
	case StateTerminated:
		c.mu.Unlock()
		return ErrTerminated
	case StateRunning:
		c.mu.Unlock()
		c.logger.Warn("start requested while already running")
		return ErrAlreadyBusy
	case StateReady, StatePaused:
	default:
		c.mu.Unlock()
		return ErrNotRunnable
	}
	c.state = StateRunning
	c.lastErr = nil
	c.pauseRequested.Store(false)
	c.mu.Unlock()

	// The worker is parked here, so observers get a consistent snapshot of
	// the state flip before iteration work resumes.
	c.notifyUpdate()

	c.workerOnce.Do(func() { go c.worker() })

	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// RequestPause asks the worker to park after the current iteration. It is a
// logged no-op unless the run is Running.
func (c *Controller) RequestPause() {
	if state := c.State(); state != StateRunning {
		c.logger.Warn("pause requested while not running", "state", state.String())
		return
	}
	c.pauseRequested.Store(true)
}

// RequestPauseAndWait pauses and blocks until the worker has parked or the
// context ends. The returned error is only a context error; the pause itself
// cannot fail.
func (c *Controller) RequestPauseAndWait(ctx context.Context) error {
	c.RequestPause()

	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		for c.state == StateRunning {
			c.cond.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset terminates the run: the worker is stopped, the evaluator cleaned up
// exactly once, and all configured closers shut down. Reset is idempotent.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return nil
	}
	started := c.state == StateRunning || c.state == StatePaused
	c.mu.Unlock()

	c.terminating.Store(true)
	c.pauseRequested.Store(true)

	if started {
		// Wake an idle worker so it can observe termination and exit.
		select {
		case c.resumeCh <- struct{}{}:
		default:
		}
		select {
		case <-c.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.state = StateTerminated
	c.cond.Broadcast()
	c.mu.Unlock()

	return c.cleanup()
}

// cleanup shuts the evaluator and closers down exactly once; later calls
// return the first outcome.
func (c *Controller) cleanup() error {
	c.cleanupOnce.Do(func() {
		var errs []error
		if c.cfg.Evaluator != nil {
			if err := c.cfg.Evaluator.Cleanup(); err != nil {
				errs = append(errs, fmt.Errorf("evaluator cleanup: %w", err))
			}
		}
		for _, closer := range c.cfg.Closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.cleanupErr = errors.Join(errs...)
	})
	return c.cleanupErr
}

func (c *Controller) worker() {
	defer close(c.workerDone)
	for {
		<-c.resumeCh
		if c.terminating.Load() {
			return
		}
		c.runLoop()
		if c.terminating.Load() {
			return
		}
	}
}

// runLoop iterates until a pause is requested or a stop condition fires,
// then parks. The final update notification is delivered before the pause
// transition becomes observable.
func (c *Controller) runLoop() {
	ctx := context.Background()
	sinceUpdate := 0
	lastUpdate := time.Now()
	fatal := false

	for !c.pauseRequested.Load() {
		err := c.cfg.Iterator.PerformIteration(ctx)
		c.mu.Lock()
		c.iterations++
		iterations := c.iterations
		if err != nil {
			c.lastErr = err
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("iteration failed; terminating run", "iteration", iterations, "err", err)
			fatal = true
			break
		}

		sinceUpdate++
		if sinceUpdate >= c.cfg.UpdateInterval ||
			(c.cfg.UpdateEvery > 0 && time.Since(lastUpdate) >= c.cfg.UpdateEvery) {
			sinceUpdate = 0
			lastUpdate = time.Now()
			c.notifyUpdate()
		}

		if c.cfg.Evaluator != nil && c.cfg.Evaluator.StopConditionSatisfied() {
			c.logger.Info("stop condition satisfied; pausing run", "iteration", iterations)
			break
		}
		if c.cfg.EvaluationLimit > 0 && c.cfg.Evaluator.EvaluationCount() >= c.cfg.EvaluationLimit {
			c.logger.Info("evaluation limit reached; pausing run", "iteration", iterations, "evaluations", c.cfg.Evaluator.EvaluationCount())
			break
		}
		if c.cfg.IterationLimit > 0 && iterations >= c.cfg.IterationLimit {
			c.logger.Info("iteration limit reached; pausing run", "iteration", iterations)
			break
		}
	}

	if sinceUpdate > 0 {
		c.notifyUpdate()
	}

	// An iteration error is unrecoverable: the run goes straight to
	// Terminated and cannot be continued. The pause signal still fires so
	// waiters unblock.
	if fatal {
		c.terminating.Store(true)
		c.mu.Lock()
		c.state = StateTerminated
		c.cond.Broadcast()
		c.mu.Unlock()
		c.notifyPaused()
		if err := c.cleanup(); err != nil {
			c.logger.Error("cleanup after fatal iteration error", "err", err)
		}
		return
	}

	c.mu.Lock()
	c.state = StatePaused
	c.cond.Broadcast()
	c.mu.Unlock()

	c.notifyPaused()
}

func (c *Controller) notifyUpdate() {
	snap := c.cfg.Iterator.Snapshot()
	for _, fn := range c.snapshotUpdateListeners() {
		c.invoke("update", func() { fn(snap) })
	}
}

func (c *Controller) notifyPaused() {
	snap := c.cfg.Iterator.Snapshot()
	for _, fn := range c.snapshotPauseListeners() {
		c.invoke("pause", func() { fn(snap) })
	}
}

func (c *Controller) snapshotUpdateListeners() []UpdateListener {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	out := make([]UpdateListener, len(c.updateListeners))
	copy(out, c.updateListeners)
	return out
}

func (c *Controller) snapshotPauseListeners() []PauseListener {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	out := make([]PauseListener, len(c.pauseListeners))
	copy(out, c.pauseListeners)
	return out
}

func (c *Controller) invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "kind", kind, "panic", r)
		}
	}()
	fn()
}
