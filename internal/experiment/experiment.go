// Package experiment wires the physics, sensor, actuator, controller
// and loop into one session with a strict lifecycle: an experiment is
// idle until started, running until stopped, and stopped until reset.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/san-kum/pendlab/internal/actuator"
	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/datalog"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/encoder"
	"github.com/san-kum/pendlab/internal/integrators"
	"github.com/san-kum/pendlab/internal/physics"
	"github.com/san-kum/pendlab/internal/sim"
	"github.com/san-kum/pendlab/internal/store"
)

var (
	ErrAlreadyRunning = errors.New("experiment already running")
	ErrNotRunning     = errors.New("experiment not running")
)

// Phase is the lifecycle state of an experiment.
type Phase int

const (
	Idle Phase = iota
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config assembles the component parameters for one experiment.
type Config struct {
	Physics  physics.Params  `yaml:"physics" json:"physics"`
	Actuator actuator.Params `yaml:"actuator" json:"actuator"`
	Encoder  encoder.Params  `yaml:"encoder" json:"encoder"`
	PID      control.Params  `yaml:"pid" json:"pid"`
	Sim      sim.Config      `yaml:"-" json:"-"`

	// InitState overrides the start state when non-nil; otherwise the
	// pendulum starts with a random deflection in [-Perturbation,
	// Perturbation] radians.
	InitState    dynamo.State `yaml:"-" json:"-"`
	Perturbation float64      `yaml:"perturbation" json:"perturbation"`
	Seed         int64        `yaml:"seed" json:"seed"`
	LogCapacity  int          `yaml:"log_capacity" json:"log_capacity"`

	Analysis analysis.Options `yaml:"-" json:"-"`
}

const DefaultPerturbation = 0.1

func DefaultConfig() Config {
	return Config{
		Physics:      physics.DefaultParams(),
		Actuator:     actuator.DefaultParams(),
		Encoder:      encoder.DefaultParams(),
		PID:          control.DefaultParams(),
		Sim:          sim.DefaultConfig(),
		Perturbation: DefaultPerturbation,
		LogCapacity:  datalog.DefaultCapacity,
	}
}

// Experiment owns one simulated pendulum session.
type Experiment struct {
	mu    sync.Mutex
	phase Phase
	cfg   Config

	sys  *physics.RotaryPendulum
	pid  *control.PID
	enc  *encoder.AS5600
	act  *actuator.Stepper
	log  *datalog.Ring
	loop *sim.Loop
	rng  *rand.Rand

	final *analysis.Metrics
}

// New validates the configuration and builds an idle experiment.
func New(cfg Config) (*Experiment, error) {
	sys, err := physics.New(cfg.Physics)
	if err != nil {
		return nil, err
	}
	pid, err := control.NewPID(cfg.PID)
	if err != nil {
		return nil, err
	}
	enc, err := encoder.New(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	act, err := actuator.New(cfg.Actuator)
	if err != nil {
		return nil, err
	}
	if cfg.InitState != nil && len(cfg.InitState) != physics.StateDim {
		return nil, fmt.Errorf("initial state has %d components, want %d", len(cfg.InitState), physics.StateDim)
	}
	if cfg.Perturbation < 0 {
		return nil, fmt.Errorf("%w: perturbation must be non-negative, got %g", dynamo.ErrParameterBounds, cfg.Perturbation)
	}
	if cfg.Perturbation == 0 && cfg.InitState == nil {
		cfg.Perturbation = DefaultPerturbation
	}

	log := datalog.NewRing(cfg.LogCapacity)
	if cfg.Sim.Dt <= 0 {
		cfg.Sim.Dt = sim.DefaultDt
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Experiment{
		cfg:  cfg,
		sys:  sys,
		pid:  pid,
		enc:  enc,
		act:  act,
		log:  log,
		loop: sim.NewLoop(cfg.Sim, sys, integrators.NewRK4(physics.StateDim), pid, enc, act, log),
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Start launches the loop from a fresh perturbed state. Starting a
// stopped experiment discards the previous run's log and metrics.
func (e *Experiment) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == Running {
		return ErrAlreadyRunning
	}
	if e.phase == Stopped {
		e.pid.Reset()
		e.enc.Reset()
		e.log.Clear()
		e.final = nil
	}

	x0 := e.initialState()
	if err := e.loop.Start(ctx, x0); err != nil {
		return err
	}
	e.phase = Running
	return nil
}

func (e *Experiment) initialState() dynamo.State {
	if e.cfg.InitState != nil {
		return e.cfg.InitState.Clone()
	}
	x0 := make(dynamo.State, physics.StateDim)
	x0[physics.StatePhi] = (2*e.rng.Float64() - 1) * e.cfg.Perturbation
	return x0
}

// Stop halts the loop, disables control and freezes the final metrics.
func (e *Experiment) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != Running {
		return ErrNotRunning
	}

	if err := e.loop.Stop(); err != nil {
		return err
	}
	// the loop is down, so this applies immediately
	e.loop.SetControlEnabled(false)

	// final metrics cover the whole run, not the live tail window
	all := e.log.All()
	opts := e.cfg.Analysis
	opts.Window = len(all)
	m := analysis.Analyze(all, opts)
	e.final = &m
	e.phase = Stopped
	return nil
}

// Reset returns the experiment to idle from any phase, clearing the
// log, the controller memory and the sensor state.
func (e *Experiment) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == Running {
		if err := e.loop.Stop(); err != nil {
			return err
		}
	}
	e.loop.SetControlEnabled(false)
	if err := e.loop.SetState(make(dynamo.State, physics.StateDim)); err != nil {
		return err
	}
	e.pid.Reset()
	e.enc.Reset()
	e.log.Clear()
	e.final = nil
	e.phase = Idle
	return nil
}

// EnableControl switches the controller on. The controller memory is
// cleared on the transition so a long-disabled integral term cannot
// kick the arm.
func (e *Experiment) EnableControl()  { e.loop.SetControlEnabled(true) }
func (e *Experiment) DisableControl() { e.loop.SetControlEnabled(false) }

// SetTargetAngle changes the pendulum setpoint in radians.
func (e *Experiment) SetTargetAngle(angle float64) { e.loop.SetTarget(angle) }

// SetController swaps the active control law. PID parameter updates
// keep addressing the built-in PID, not the replacement.
func (e *Experiment) SetController(c control.Controller) { e.loop.SetController(c) }

// SetPIDParameters replaces the gains and limits and clears the
// controller memory so the old integral does not act under new gains.
func (e *Experiment) SetPIDParameters(p control.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.loop.Apply(func() {
		e.pid.SetParams(p)
		e.pid.Reset()
	})
	return nil
}

// CurrentState returns the latest published snapshot, or nil before
// the first start.
func (e *Experiment) CurrentState() *dynamo.Snapshot { return e.loop.Latest() }

// Phase reports the lifecycle state.
func (e *Experiment) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Err reports why the loop halted on its own, or nil.
func (e *Experiment) Err() error { return e.loop.Err() }

// Metrics analyzes the log. After Stop it returns the frozen final
// metrics; while running it analyzes the current window.
func (e *Experiment) Metrics() analysis.Metrics {
	e.mu.Lock()
	if e.final != nil {
		m := *e.final
		e.mu.Unlock()
		return m
	}
	e.mu.Unlock()
	return analysis.Analyze(e.log.All(), e.cfg.Analysis)
}

// Log returns the snapshot ring for subscribers and persistence.
func (e *Experiment) Log() *datalog.Ring { return e.log }

// Config returns the configuration the experiment was built from.
func (e *Experiment) Config() Config { return e.cfg }

// Export writes the configuration, metrics and full log to path as a
// single JSON document. An empty path writes to stdout.
func (e *Experiment) Export(path string) error {
	meta := store.RunMetadata{
		Seed:     e.cfg.Seed,
		Dt:       e.cfg.Sim.Dt,
		Physics:  e.cfg.Physics,
		Actuator: e.cfg.Actuator,
		Encoder:  e.cfg.Encoder,
		PID:      e.cfg.PID,
		Metrics:  e.Metrics(),
	}
	log := e.log.All()
	if len(log) > 0 {
		meta.Duration = log[len(log)-1].Timestamp - log[0].Timestamp
	}
	if path == "" {
		return store.ExportJSONStdout(meta, log)
	}
	return store.ExportJSON(path, meta, log)
}

// Subscribe relays the loop's per-tick snapshots.
func (e *Experiment) Subscribe() <-chan dynamo.Snapshot { return e.loop.Subscribe() }

func (e *Experiment) Unsubscribe(ch <-chan dynamo.Snapshot) { e.loop.Unsubscribe(ch) }

// RunFor starts the experiment, lets it run for the given amount of
// simulated time and stops it. It returns the loop's own error when
// the run halts early on divergence.
func (e *Experiment) RunFor(ctx context.Context, duration float64) error {
	if err := e.Start(ctx); err != nil {
		return err
	}

	done := e.loop.Done()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-done:
			break wait
		case <-tick.C:
			if s := e.loop.Latest(); s != nil && s.Timestamp >= duration {
				break wait
			}
		}
	}

	if err := e.Stop(); err != nil {
		return err
	}
	if err := e.loop.Err(); err != nil {
		return err
	}
	return ctx.Err()
}
