// Package runner drives an agent: it ticks on a schedule, records the
// transitions, publishes events and serializes every read against the
// ticking goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/forager/internal/agent"
	"github.com/cartridge/forager/internal/config"
	"github.com/cartridge/forager/internal/events"
	"github.com/cartridge/forager/internal/metrics"
	"github.com/cartridge/forager/internal/storage"
)

// ErrStopped is returned by TickOnce after the runner hit a fatal error.
var ErrStopped = errors.New("runner stopped")

// Status values reported by Runner.Status.
const (
	StatusIdle     = "idle"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Tick is a completed step together with its 1-based step number.
type Tick struct {
	Step uint64 `json:"step"`
	agent.TickResult
}

// Observer is called with every completed tick, outside the lock.
type Observer func(step uint64, res agent.TickResult)

// Runner owns the agent and the only goroutine allowed to tick it.
type Runner struct {
	cfg   *config.Config
	runID string

	mu    sync.RWMutex
	agent *agent.Agent
	rng   agent.Rand

	store     storage.Backend
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
	observers []Observer
	agentOpts []agent.Option

	// Progress, guarded by mu
	steps        uint64
	food         uint64
	cumReward    float64
	lastProgress time.Time
	status       string
	err          error
	buffer       []*storage.Transition
}

// Snapshot is a consistent view of the run, taken under the read lock.
type Snapshot struct {
	RunID            string  `json:"run_id"`
	Status           string  `json:"status"`
	Policy           string  `json:"policy"`
	Step             uint64  `json:"step"`
	State            int     `json:"state"`
	X                int     `json:"x"`
	Y                int     `json:"y"`
	FoodConsumed     uint64  `json:"food_consumed"`
	CumulativeReward float64 `json:"cumulative_reward"`
	FoodStates       []int   `json:"food_states"`
	LastError        string  `json:"last_error,omitempty"`
}

// Option customises a Runner.
type Option func(*Runner)

// WithStore replaces the default in-memory transition log.
func WithStore(s storage.Backend) Option {
	return func(r *Runner) { r.store = s }
}

// WithPublisher sets the event publisher. The default publishes nothing.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithLogger sets the logger used for lifecycle messages and metrics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRand replaces the seeded source derived from the config.
func WithRand(rng agent.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithObserver registers fn to receive every tick.
func WithObserver(fn Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, fn) }
}

// WithAgentOptions forwards options to agent.New.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(r *Runner) { r.agentOpts = append(r.agentOpts, opts...) }
}

// New creates a runner for cfg. A zero Runner.Seed seeds from the clock;
// an empty Runner.RunID gets a random one.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	runID := cfg.Runner.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	seed := cfg.Runner.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &Runner{
		cfg:       cfg,
		runID:     runID,
		rng:       rand.New(rand.NewSource(seed)),
		publisher: events.NoopPublisher{},
		logger:    zerolog.Nop(),
		status:    StatusIdle,
		buffer:    make([]*storage.Transition, 0, cfg.Runner.BatchSize),
	}
	for _, opt := range opts {
		opt(r)
	}

	a, err := agent.New(cfg, r.agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	r.agent = a
	if r.store == nil {
		r.store = storage.NewMemoryBackend(cfg.Runner.HistorySize)
	}
	r.logger = r.logger.With().Str("run_id", runID).Logger()
	r.metrics = metrics.NewCollector(r.logger)
	r.lastProgress = time.Now()

	r.logger.Info().
		Int("width", a.Width()).
		Int("height", a.Height()).
		Int("start_state", a.StartState()).
		Str("policy", a.PolicyName()).
		Int64("seed", seed).
		Msg("Runner initialized")
	return r, nil
}

// RunID identifies this run in logs, events and stored transitions.
func (r *Runner) RunID() string { return r.runID }

// Close flushes buffered transitions and closes the store.
func (r *Runner) Close() error {
	if err := r.Flush(context.Background()); err != nil {
		r.logger.Error().Err(err).Msg("Failed to flush buffer on close")
	}
	return r.store.Close()
}

// Run ticks until ctx is cancelled, Runner.MaxTicks is reached or a
// fatal error occurs. A zero TickInterval ticks as fast as possible.
// Cancellation is a clean stop and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.status = StatusRunning
	r.mu.Unlock()

	r.logger.Info().
		Int("max_ticks", r.cfg.Runner.MaxTicks).
		Dur("tick_interval", r.cfg.Runner.TickInterval).
		Msg("Runner starting main loop")
	r.publishStatus(ctx, events.StateRunning, nil)
	started := time.Now()

	// Setup flush timer for partial batches
	flushTicker := time.NewTicker(r.cfg.Runner.FlushInterval)
	defer flushTicker.Stop()

	var tickC <-chan time.Time
	if r.cfg.Runner.TickInterval > 0 {
		ticker := time.NewTicker(r.cfg.Runner.TickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if r.reachedLimit() {
			r.logger.Info().Int("max_ticks", r.cfg.Runner.MaxTicks).Msg("Reached maximum ticks, stopping")
			return r.finish(started, nil)
		}

		if tickC == nil {
			select {
			case <-ctx.Done():
				r.logger.Info().Msg("Context cancelled, stopping runner")
				return r.finish(started, nil)
			case <-flushTicker.C:
				r.flushLogged(ctx)
			default:
				if err := r.step(ctx); err != nil {
					return r.finish(started, err)
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Context cancelled, stopping runner")
			return r.finish(started, nil)
		case <-flushTicker.C:
			r.flushLogged(ctx)
		case <-tickC:
			if err := r.step(ctx); err != nil {
				return r.finish(started, err)
			}
		}
	}
}

// step ticks once and returns only fatal errors.
func (r *Runner) step(ctx context.Context) error {
	_, err := r.TickOnce(ctx)
	if err == nil {
		return nil
	}
	if fatal := r.Err(); fatal != nil {
		return fatal
	}
	r.logger.Warn().Err(err).Msg("Tick completed with error")
	return nil
}

func (r *Runner) reachedLimit() bool {
	if r.cfg.Runner.MaxTicks <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps >= uint64(r.cfg.Runner.MaxTicks)
}

func (r *Runner) finish(started time.Time, err error) error {
	// The run context may already be cancelled.
	r.flushLogged(context.Background())

	snap := r.Snapshot()
	r.metrics.RunSummary(r.runID, snap.Step, snap.FoodConsumed, snap.CumulativeReward, time.Since(started))

	r.mu.Lock()
	if err != nil {
		r.status = StatusFailed
	} else {
		r.status = StatusFinished
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error().Err(err).Uint64("step", snap.Step).Msg("Runner stopped on fatal error")
		r.publishStatus(context.Background(), events.StateFailed, err)
		return err
	}
	r.publishStatus(context.Background(), events.StateFinished, nil)
	r.logger.Info().Uint64("step", snap.Step).Msg("Runner stopped")
	return nil
}

// TickOnce performs one serialized tick. Invalid-transition and
// no-valid-action errors are fatal: they are recorded, the runner
// refuses further ticks and health reports it. A failed food relocation
// still counts as a completed step.
func (r *Runner) TickOnce(ctx context.Context) (Tick, error) {
	began := time.Now()

	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return Tick{}, fmt.Errorf("%w: %v", ErrStopped, r.err)
	}

	res, err := r.agent.Tick(r.rng)
	if err != nil && (errors.Is(err, agent.ErrNoValidAction) || errors.Is(err, agent.ErrInvalidTransition)) {
		r.err = err
		r.mu.Unlock()
		return Tick{}, err
	}

	r.steps++
	step := r.steps
	r.cumReward += res.Reward
	if res.FoodRelocated {
		r.food++
	}
	r.lastProgress = time.Now()
	r.buffer = append(r.buffer, &storage.Transition{
		RunID:         r.runID,
		Step:          step,
		StateBefore:   res.StateBefore,
		Action:        res.Action.String(),
		Reward:        res.Reward,
		StateAfter:    res.StateAfter,
		FoodRelocated: res.FoodRelocated,
		FoodState:     res.FoodState,
		QBefore:       res.QBefore,
		QAfter:        res.QAfter,
		Timestamp:     r.lastProgress,
	})

	// Flush buffer if full
	var flushErr error
	if len(r.buffer) >= r.cfg.Runner.BatchSize {
		flushErr = r.flushLocked(ctx)
	}
	r.mu.Unlock()

	if flushErr != nil {
		r.logger.Error().Err(flushErr).Msg("Failed to flush buffer")
	}

	r.metrics.TickCompleted(r.runID, step, res.Reward, res.QAfter, time.Since(began))
	if res.FoodRelocated {
		r.metrics.FoodConsumed(r.runID, step, res.StateAfter, res.FoodState)
	}
	if perr := r.publisher.PublishTick(ctx, events.TickEvent{
		RunID:         r.runID,
		Step:          step,
		StateBefore:   res.StateBefore,
		Action:        res.Action.String(),
		Reward:        res.Reward,
		StateAfter:    res.StateAfter,
		FoodRelocated: res.FoodRelocated,
		FoodState:     res.FoodState,
		QAfter:        res.QAfter,
	}); perr != nil {
		r.logger.Error().Err(perr).Uint64("step", step).Msg("Failed to publish tick")
	}
	for _, fn := range r.observers {
		fn(step, res)
	}
	return Tick{Step: step, TickResult: res}, err
}

// Flush writes buffered transitions to the store.
func (r *Runner) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

func (r *Runner) flushLogged(ctx context.Context) {
	if err := r.Flush(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Failed to flush buffer")
	}
}

// flushLocked sends accumulated transitions to the store. r.mu must be
// held for writing.
func (r *Runner) flushLocked(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	began := time.Now()
	size := len(r.buffer)
	if _, err := r.store.StoreBatch(ctx, r.buffer); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}
	r.metrics.BatchFlushed(r.runID, size, time.Since(began))

	// Clear buffer
	r.buffer = make([]*storage.Transition, 0, r.cfg.Runner.BatchSize)
	return nil
}

// Snapshot returns the current progress and agent position.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := r.agent.State()
	x, y := r.agent.Coordinates(state)
	snap := Snapshot{
		RunID:            r.runID,
		Status:           r.status,
		Policy:           r.agent.PolicyName(),
		Step:             r.steps,
		State:            state,
		X:                x,
		Y:                y,
		FoodConsumed:     r.food,
		CumulativeReward: r.cumReward,
		FoodStates:       r.agent.FoodStates(),
	}
	if r.err != nil {
		snap.LastError = r.err.Error()
	}
	return snap
}

// View runs fn with the agent under the read lock. fn must not retain
// the agent or call back into the runner.
func (r *Runner) View(fn func(a *agent.Agent)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.agent)
}

// Transitions flushes pending transitions and returns up to n of the
// newest, oldest first.
func (r *Runner) Transitions(ctx context.Context, n int) ([]*storage.Transition, error) {
	if err := r.Flush(ctx); err != nil {
		return nil, err
	}
	return r.store.Recent(ctx, r.runID, n)
}

// Stats flushes pending transitions and summarises the stored history
// of this run.
func (r *Runner) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := r.Flush(ctx); err != nil {
		return nil, err
	}
	return r.store.GetStats(ctx, r.runID)
}

// Err is the fatal error that stopped the runner, if any.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Status reports whether the loop is idle, running, finished or failed.
func (r *Runner) Status() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastProgress is the time of the last completed tick, or of creation.
func (r *Runner) LastProgress() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastProgress
}

func (r *Runner) publishStatus(ctx context.Context, state string, cause error) {
	snap := r.Snapshot()
	event := events.RunStatusEvent{
		RunID:            r.runID,
		State:            state,
		Step:             snap.Step,
		FoodConsumed:     snap.FoodConsumed,
		CumulativeReward: snap.CumulativeReward,
	}
	if cause != nil {
		event.LastError = cause.Error()
	}
	if err := r.publisher.PublishRunStatus(ctx, event); err != nil {
		r.logger.Error().Err(err).Str("state", state).Msg("Failed to publish run status")
	}
}
