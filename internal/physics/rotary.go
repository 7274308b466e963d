package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// State vector layout for the rotary pendulum.
const (
	StateTheta    = iota // arm angle (rad)
	StateThetaDot        // arm angular velocity (rad/s)
	StatePhi             // pendulum angle from vertical (rad)
	StatePhiDot          // pendulum angular velocity (rad/s)

	StateDim = 4
)

// detEps floors the mass-matrix determinant so numerical noise near the
// phi = ±π/2 region cannot produce a divide-by-zero.
const detEps = 1e-10

// Params holds the physical parameters of the arm + pendulum system.
// They are fixed for the lifetime of an experiment.
type Params struct {
	ArmMass         float64 `yaml:"arm_mass" json:"arm_mass"`
	ArmLength       float64 `yaml:"arm_length" json:"arm_length"`
	PendulumMass    float64 `yaml:"pendulum_mass" json:"pendulum_mass"`
	PendulumLength  float64 `yaml:"pendulum_length" json:"pendulum_length"`
	Gravity         float64 `yaml:"gravity" json:"gravity"`
	ArmDamping      float64 `yaml:"arm_damping" json:"arm_damping"`
	PendulumDamping float64 `yaml:"pendulum_damping" json:"pendulum_damping"`
}

// DefaultParams returns the benchtop rig dimensions: a 15 cm arm and a
// 30 cm pendulum rod.
func DefaultParams() Params {
	return Params{
		ArmMass:         0.05,
		ArmLength:       0.15,
		PendulumMass:    0.02,
		PendulumLength:  0.30,
		Gravity:         9.81,
		ArmDamping:      0.01,
		PendulumDamping: 0.001,
	}
}

func (p Params) Validate() error {
	check := func(name string, v float64) error {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", dynamo.ErrParameterBounds, name, v)
		}
		return nil
	}
	if err := check("arm_mass", p.ArmMass); err != nil {
		return err
	}
	if err := check("arm_length", p.ArmLength); err != nil {
		return err
	}
	if err := check("pendulum_mass", p.PendulumMass); err != nil {
		return err
	}
	if err := check("pendulum_length", p.PendulumLength); err != nil {
		return err
	}
	if err := check("gravity", p.Gravity); err != nil {
		return err
	}
	if p.ArmDamping < 0 || p.PendulumDamping < 0 {
		return fmt.Errorf("%w: damping must be non-negative", dynamo.ErrParameterBounds)
	}
	return nil
}

// RotaryPendulum evaluates the coupled equations of motion of a rotary
// arm driven by a motor with a free pendulum hung from its tip.
//
// Generalized coordinates are q = [theta, phi]. The inertia constants
// are derived from the rod dimensions: I1 is the arm inertia about its
// drive axis (m·L²/3, rotation about the rod end) and I2 the pendulum
// inertia about its own center of mass (m·L²/12); M22 = I2 + m2·l2²
// transports I2 to the hinge, with l2 the half-length distance to the
// center of mass.
//
// Derive is a pure function of (state, torque); it owns no mutable
// state and is safe to share across goroutines.
type RotaryPendulum struct {
	params Params

	// derived constants, computed once at construction
	i1   float64 // arm inertia about the drive axis
	i2   float64 // pendulum inertia about its center of mass
	l2   float64 // pivot-to-center-of-mass distance
	m2   float64
	m22  float64 // I2 + m2*l2^2, the constant M22 entry
	m2l1 float64 // m2 * l1^2
	grav float64 // m2 * g * l2
}

func New(params Params) (*RotaryPendulum, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	l2 := params.PendulumLength / 2
	i2 := params.PendulumMass * params.PendulumLength * params.PendulumLength / 12
	r := &RotaryPendulum{
		params: params,
		i1:     params.ArmMass * params.ArmLength * params.ArmLength / 3,
		i2:     i2,
		l2:     l2,
		m2:     params.PendulumMass,
		m22:    i2 + params.PendulumMass*l2*l2,
		m2l1:   params.PendulumMass * params.ArmLength * params.ArmLength,
		grav:   params.PendulumMass * params.Gravity * l2,
	}
	return r, nil
}

func (r *RotaryPendulum) Params() Params { return r.params }

func (r *RotaryPendulum) StateDim() int   { return StateDim }
func (r *RotaryPendulum) ControlDim() int { return 1 }

// Derive writes the state derivative for the given state and applied arm
// torque into dst.
func (r *RotaryPendulum) Derive(dst dynamo.State, x dynamo.State, u dynamo.Control, t float64) {
	thetaDot := x[StateThetaDot]
	phi := x[StatePhi]
	phiDot := x[StatePhiDot]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}

	sin, cos := math.Sincos(phi)

	m11 := r.i1 + r.m2l1 + r.i2*sin*sin
	m12 := r.m22 * cos
	m22 := r.m22

	c1 := r.i2*sin*cos*thetaDot*thetaDot - r.m22*sin*phiDot*phiDot
	c2 := -r.i2 * sin * cos * thetaDot * thetaDot
	g2 := r.grav * sin

	tau1 := torque - r.params.ArmDamping*thetaDot
	tau2 := -r.params.PendulumDamping * phiDot

	det := m11*m22 - m12*m12
	if math.Abs(det) < detEps {
		det = detEps
	}

	rhs1 := tau1 - c1
	rhs2 := tau2 - c2 - g2

	dst[StateTheta] = thetaDot
	dst[StateThetaDot] = (m22*rhs1 - m12*rhs2) / det
	dst[StatePhi] = phiDot
	dst[StatePhiDot] = (m11*rhs2 - m12*rhs1) / det
}

// Energy returns the total mechanical energy, kinetic (the quadratic
// form of the mass matrix) plus potential relative to phi = 0.
func (r *RotaryPendulum) Energy(x dynamo.State) float64 {
	thetaDot := x[StateThetaDot]
	phi := x[StatePhi]
	phiDot := x[StatePhiDot]

	sin, cos := math.Sincos(phi)
	m11 := r.i1 + r.m2l1 + r.i2*sin*sin
	m12 := r.m22 * cos

	ke := 0.5 * (m11*thetaDot*thetaDot + 2*m12*thetaDot*phiDot + r.m22*phiDot*phiDot)
	pe := r.grav * (1 - cos)
	return ke + pe
}
