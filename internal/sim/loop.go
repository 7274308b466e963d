// Package sim runs the fixed-step simulation loop. One goroutine owns
// the state vector and all component mutations; everything else sees
// published snapshots or enqueues commands for the loop to apply at a
// tick boundary.
package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/pendlab/internal/actuator"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/datalog"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/encoder"
	"github.com/san-kum/pendlab/internal/physics"
)

const (
	// DefaultDt is the nominal tick period, 240 Hz.
	DefaultDt = 1.0 / 240

	// maxDtFactor caps the measured tick period in paced mode. A stall
	// longer than this advances sim time by the cap, not the stall.
	maxDtFactor = 10

	DefaultJoinTimeout = 2 * time.Second
)

// ErrJoinTimeout is returned by Stop when the loop goroutine does not
// exit within the join timeout.
var ErrJoinTimeout = fmt.Errorf("simulation loop did not stop in time")

// Config controls loop timing. Paced mode sleeps on a wall-clock ticker
// and integrates with the measured period; unpaced mode steps
// back-to-back with the nominal dt, which is what tests and batch runs
// want.
type Config struct {
	Dt          float64
	Paced       bool
	JoinTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Dt: DefaultDt, Paced: true, JoinTimeout: DefaultJoinTimeout}
}

func (c Config) withDefaults() Config {
	if c.Dt <= 0 {
		c.Dt = DefaultDt
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	return c
}

// Loop steps the pendulum dynamics, the sensor and actuator models and
// the active controller at a fixed rate, publishing a snapshot per tick.
type Loop struct {
	cfg Config

	sys   dynamo.System
	integ dynamo.Integrator
	ctrl  control.Controller
	enc   encoder.Interface
	act   actuator.Interface
	log   *datalog.Ring

	// loop-goroutine state; other goroutines touch it only through
	// the pending queue while the loop runs
	state   dynamo.State
	u       dynamo.Control
	simTime float64
	target  float64
	enabled bool
	runErr  error

	latest atomic.Pointer[dynamo.Snapshot]

	mu      sync.Mutex
	pending []func()
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	subMu sync.Mutex
	subs  []chan dynamo.Snapshot
}

func NewLoop(cfg Config, sys dynamo.System, integ dynamo.Integrator, ctrl control.Controller, enc encoder.Interface, act actuator.Interface, log *datalog.Ring) *Loop {
	return &Loop{
		cfg:   cfg.withDefaults(),
		sys:   sys,
		integ: integ,
		ctrl:  ctrl,
		enc:   enc,
		act:   act,
		log:   log,
		state: make(dynamo.State, sys.StateDim()),
		u:     make(dynamo.Control, sys.ControlDim()),
	}
}

// Start launches the loop goroutine from the given initial state.
func (l *Loop) Start(ctx context.Context, x0 dynamo.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("loop already running")
	}
	if len(x0) != l.sys.StateDim() {
		return fmt.Errorf("initial state has %d components, want %d", len(x0), l.sys.StateDim())
	}

	copy(l.state, x0)
	l.simTime = 0
	l.runErr = nil
	l.publish(l.snapshot(0, 0, 0, l.enc.Read(l.state[physics.StateTheta])))

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true
	go l.run(ctx)
	return nil
}

// Stop cancels the loop and waits for the goroutine to exit. The state
// left behind is readable once Stop returns.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return fmt.Errorf("loop not running")
	}
	cancel, done, timeout := l.cancel, l.done, l.cfg.JoinTimeout
	l.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(timeout):
		return ErrJoinTimeout
	}

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	return nil
}

// Running reports whether the loop goroutine is active. A loop that
// halted on divergence still counts as running until Stop is called.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Done is closed when the loop goroutine exits, whether by Stop or by
// a divergence halt.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err reports why the loop halted on its own, or nil. Valid once Done
// is closed.
func (l *Loop) Err() error { return l.runErr }

// Latest returns the most recently published snapshot, or nil before
// the first tick.
func (l *Loop) Latest() *dynamo.Snapshot { return l.latest.Load() }

// Apply runs fn on the loop goroutine at the next tick boundary. When
// the loop is stopped fn runs immediately. Component mutations such as
// gain changes must go through here so they never race a tick.
func (l *Loop) Apply(fn func()) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		fn()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// SetTarget changes the controller setpoint in radians.
func (l *Loop) SetTarget(angle float64) {
	l.Apply(func() { l.target = angle })
}

// SetControlEnabled turns the controller on or off. Enabling clears
// the controller's accumulated state so stale integral and derivative
// memory cannot kick the arm.
func (l *Loop) SetControlEnabled(on bool) {
	l.Apply(func() {
		if on && !l.enabled && l.ctrl != nil {
			l.ctrl.Reset()
		}
		l.enabled = on
	})
}

// SetController swaps the active controller.
func (l *Loop) SetController(c control.Controller) {
	l.Apply(func() { l.ctrl = c })
}

// Subscribe returns a channel receiving every published snapshot. Slow
// consumers drop ticks rather than stall the loop.
func (l *Loop) Subscribe() <-chan dynamo.Snapshot {
	ch := make(chan dynamo.Snapshot, 16)
	l.subMu.Lock()
	l.subs = append(l.subs, ch)
	l.subMu.Unlock()
	return ch
}

func (l *Loop) Unsubscribe(ch <-chan dynamo.Snapshot) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for i, s := range l.subs {
		if s == ch {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			close(s)
			return
		}
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	if !l.cfg.Paced {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !l.tick(l.cfg.Dt) {
				return
			}
		}
	}

	period := time.Duration(l.cfg.Dt * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	prev := time.Now()
	maxDt := l.cfg.Dt * maxDtFactor
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(prev).Seconds()
			prev = now
			if dt > maxDt {
				dt = maxDt
			}
			if !l.tick(dt) {
				return
			}
		}
	}
}

// tick advances the simulation by dt. It returns false when the loop
// must halt.
func (l *Loop) tick(dt float64) bool {
	l.applyPending()

	var out, perr, torque float64
	if l.enabled && l.ctrl != nil {
		out, perr = l.ctrl.Compute(l.target, l.state, dt)
		// the inertial coupling accelerates the pendulum opposite the
		// arm torque, so the command negates the controller output
		torque = l.act.Apply(-out*l.act.MaxTorque(), l.state[physics.StateThetaDot])
	}
	l.u[0] = torque

	l.integ.Step(l.state, l.sys, l.state, l.u, l.simTime, dt)
	l.simTime += dt

	if !l.state.IsValid() {
		l.runErr = fmt.Errorf("%w: state non-finite at t=%.4fs", dynamo.ErrDiverged, l.simTime)
		return false
	}

	reading := l.enc.Read(l.state[physics.StateTheta])
	l.publish(l.snapshot(out, perr, torque, reading))
	return true
}

func (l *Loop) applyPending() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (l *Loop) snapshot(out, perr, torque float64, r encoder.Reading) dynamo.Snapshot {
	return dynamo.Snapshot{
		Timestamp:       l.simTime,
		ArmAngle:        l.state[physics.StateTheta],
		ArmVelocity:     l.state[physics.StateThetaDot],
		PendulumAngle:   l.state[physics.StatePhi],
		PendulumVeloc:   l.state[physics.StatePhiDot],
		MotorTorque:     torque,
		EncoderRaw:      r.Raw,
		EncoderAngle:    r.Angle,
		EncoderDegrees:  r.Degrees,
		EncoderPosition: l.enc.Position(),
		PIDOutput:       out,
		PIDError:        perr,
		TargetAngle:     l.target,
		ControlEnabled:  l.enabled,
	}
}

func (l *Loop) publish(s dynamo.Snapshot) {
	l.latest.Store(&s)
	if l.log != nil {
		l.log.Append(s)
	}

	l.subMu.Lock()
	for _, ch := range l.subs {
		select {
		case ch <- s:
		default:
		}
	}
	l.subMu.Unlock()
}

// State returns a copy of the current state vector. Call only while
// the loop is stopped; during a run use Latest instead.
func (l *Loop) State() dynamo.State { return l.state.Clone() }

// SimTime returns the accumulated simulation time in seconds. Call
// only while the loop is stopped.
func (l *Loop) SimTime() float64 { return l.simTime }

// SetState overwrites the state vector. Call only while the loop is
// stopped.
func (l *Loop) SetState(x dynamo.State) error {
	if len(x) != l.sys.StateDim() {
		return fmt.Errorf("state has %d components, want %d", len(x), l.sys.StateDim())
	}
	copy(l.state, x)
	return nil
}

// Energy reports the mechanical energy of the current state when the
// system can compute it.
func (l *Loop) Energy() (float64, bool) {
	h, ok := l.sys.(dynamo.Hamiltonian)
	if !ok {
		return 0, false
	}
	return h.Energy(l.state), true
}
