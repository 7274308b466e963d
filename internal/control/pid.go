package control

import (
	"fmt"

	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/physics"
)

// Controller computes a normalized actuator command from the target
// pendulum angle and the full plant state. Implementations own their
// memory; Reset clears it for bump-less engagement.
type Controller interface {
	// Compute returns the control output and the error it acted on.
	Compute(target float64, x dynamo.State, dt float64) (output, err float64)
	Reset()
}

// Params is the full PID parameter tuple. OutputLimit bounds the
// normalized command; IntegralLimit bounds the accumulated integral
// (anti-windup).
type Params struct {
	Kp            float64 `yaml:"kp" json:"kp"`
	Ki            float64 `yaml:"ki" json:"ki"`
	Kd            float64 `yaml:"kd" json:"kd"`
	OutputLimit   float64 `yaml:"output_limit" json:"output_limit"`
	IntegralLimit float64 `yaml:"integral_limit" json:"integral_limit"`
}

func DefaultParams() Params {
	return Params{Kp: 10.0, Ki: 0.1, Kd: 5.0, OutputLimit: 1.0, IntegralLimit: 100.0}
}

func (p Params) Validate() error {
	if p.OutputLimit <= 0 {
		return fmt.Errorf("%w: output_limit must be positive, got %g", dynamo.ErrParameterBounds, p.OutputLimit)
	}
	if p.IntegralLimit <= 0 {
		return fmt.Errorf("%w: integral_limit must be positive, got %g", dynamo.ErrParameterBounds, p.IntegralLimit)
	}
	return nil
}

// PID drives the pendulum angle toward the target by the textbook
// three-term law with a clamped integral.
//
// SetParams deliberately does not clear controller memory, so gains can
// be re-tuned live; callers wanting a bump-less change call Reset
// themselves. Not safe for concurrent use: the simulation loop owns it.
type PID struct {
	params   Params
	integral float64
	prevErr  float64
}

func NewPID(params Params) (*PID, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &PID{params: params}, nil
}

func (c *PID) Params() Params { return c.params }

func (c *PID) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	c.params = params
	return nil
}

// Update computes the clamped control output for one error sample.
// A non-positive dt yields a zero derivative term and leaves the
// integral and error memory untouched, so the very first tick or a
// clock glitch cannot divide by zero.
func (c *PID) Update(err, dt float64) float64 {
	p := c.params

	derivative := 0.0
	if dt > 0 {
		c.integral += err * dt
		c.integral = clamp(c.integral, p.IntegralLimit)
		derivative = (err - c.prevErr) / dt
		c.prevErr = err
	}

	out := p.Kp*err + p.Ki*c.integral + p.Kd*derivative
	return clamp(out, p.OutputLimit)
}

func (c *PID) Compute(target float64, x dynamo.State, dt float64) (float64, float64) {
	err := target - x[physics.StatePhi]
	return c.Update(err, dt), err
}

// Reset zeroes the integral and error memory. Must be called on every
// Disabled→Enabled transition to avoid a derivative spike from stale
// history.
func (c *PID) Reset() {
	c.integral = 0
	c.prevErr = 0
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
