package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// simple harmonic oscillator: x'' = -x
type simpleDynamics struct{}

func (s *simpleDynamics) Derive(dst dynamo.State, x dynamo.State, u dynamo.Control, t float64) {
	dst[0] = x[1]
	dst[1] = -x[0]
}

func (s *simpleDynamics) StateDim() int   { return 2 }
func (s *simpleDynamics) ControlDim() int { return 0 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4(2)

	x := dynamo.State{1.0, 0.0}
	next := make(dynamo.State, 2)
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		integ.Step(next, dyn, x, nil, float64(i)*dt, dt)
		copy(x, next)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-6 {
		t.Errorf("position error too large: got %.8f, expected %.8f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-6 {
		t.Errorf("velocity error too large: got %.8f, expected %.8f", x[1], expectedV)
	}
}

func TestRK4BeatsEuler(t *testing.T) {
	dyn := &simpleDynamics{}
	rk4 := NewRK4(2)
	euler := NewEuler(2)

	xr := dynamo.State{1.0, 0.0}
	xe := dynamo.State{1.0, 0.0}
	next := make(dynamo.State, 2)
	dt := 0.05
	steps := 200

	for i := 0; i < steps; i++ {
		rk4.Step(next, dyn, xr, nil, float64(i)*dt, dt)
		copy(xr, next)
		euler.Step(next, dyn, xe, nil, float64(i)*dt, dt)
		copy(xe, next)
	}

	exact := math.Cos(float64(steps) * dt)
	if math.Abs(xr[0]-exact) >= math.Abs(xe[0]-exact) {
		t.Errorf("rk4 error %.6f should beat euler error %.6f",
			math.Abs(xr[0]-exact), math.Abs(xe[0]-exact))
	}
}

func TestRK4Deterministic(t *testing.T) {
	dyn := &simpleDynamics{}

	run := func() dynamo.State {
		integ := NewRK4(2)
		x := dynamo.State{0.3, -0.2}
		next := make(dynamo.State, 2)
		for i := 0; i < 500; i++ {
			integ.Step(next, dyn, x, nil, float64(i)*0.01, 0.01)
			copy(x, next)
		}
		return x
	}

	a, b := run(), run()
	if a[0] != b[0] || a[1] != b[1] {
		t.Errorf("integration not deterministic: %v vs %v", a, b)
	}
}

func BenchmarkRK4(b *testing.B) {
	dyn := &simpleDynamics{}
	integ := NewRK4(2)
	x := dynamo.State{1.0, 0.0}
	next := make(dynamo.State, 2)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integ.Step(next, dyn, x, nil, 0, 0.01)
		copy(x, next)
	}
}
