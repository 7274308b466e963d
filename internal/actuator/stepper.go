package actuator

import (
	"fmt"
	"math"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// Interface is the shape a torque source must satisfy. A real stepper
// driver substitutes for the simulated one behind the same contract.
type Interface interface {
	// Apply converts a commanded torque into the torque the motor can
	// actually deliver at the given shaft velocity.
	Apply(command, velocity float64) float64
	MaxTorque() float64
}

// Params describes the stepper motor limits. Torques are in Nm, speed
// in RPM. Defaults match a 17HS4023.
type Params struct {
	StepsPerRevolution int     `yaml:"steps_per_revolution" json:"steps_per_revolution"`
	MaxTorque          float64 `yaml:"max_torque" json:"max_torque"`
	HoldingTorque      float64 `yaml:"holding_torque" json:"holding_torque"`
	MaxSpeedRPM        float64 `yaml:"max_speed_rpm" json:"max_speed_rpm"`
}

func DefaultParams() Params {
	return Params{
		StepsPerRevolution: 200,
		MaxTorque:          0.4,
		HoldingTorque:      0.3,
		MaxSpeedRPM:        300,
	}
}

func (p Params) Validate() error {
	if p.StepsPerRevolution <= 0 {
		return fmt.Errorf("%w: steps_per_revolution must be positive, got %d", dynamo.ErrParameterBounds, p.StepsPerRevolution)
	}
	if p.MaxTorque <= 0 || p.HoldingTorque <= 0 {
		return fmt.Errorf("%w: torque limits must be positive", dynamo.ErrParameterBounds)
	}
	if p.HoldingTorque > p.MaxTorque {
		return fmt.Errorf("%w: holding torque %g exceeds max torque %g", dynamo.ErrParameterBounds, p.HoldingTorque, p.MaxTorque)
	}
	if p.MaxSpeedRPM <= 0 {
		return fmt.Errorf("%w: max_speed_rpm must be positive, got %g", dynamo.ErrParameterBounds, p.MaxSpeedRPM)
	}
	return nil
}

// MaxAngularVelocity returns the speed limit in rad/s.
func (p Params) MaxAngularVelocity() float64 {
	return p.MaxSpeedRPM * dynamo.TwoPi / 60
}

// StepAngle returns the full-step angle in radians.
func (p Params) StepAngle() float64 {
	return dynamo.TwoPi / float64(p.StepsPerRevolution)
}

// Stepper models the torque envelope of a stepper motor: available
// torque is the holding torque at standstill, derated linearly to zero
// at the maximum angular velocity. Commands are clamped into the
// envelope, never scaled.
type Stepper struct {
	params Params
	maxVel float64
}

func New(params Params) (*Stepper, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Stepper{params: params, maxVel: params.MaxAngularVelocity()}, nil
}

func (s *Stepper) Params() Params     { return s.params }
func (s *Stepper) MaxTorque() float64 { return s.params.HoldingTorque }

func (s *Stepper) Apply(command, velocity float64) float64 {
	avail := s.params.HoldingTorque * (1 - math.Abs(velocity)/s.maxVel)
	if avail <= 0 {
		return 0
	}
	if command > avail {
		return avail
	}
	if command < -avail {
		return -avail
	}
	return command
}
