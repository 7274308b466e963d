package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

type Control []float64

type System interface {
	Derive(dst State, x State, u Control, t float64)
	StateDim() int
	ControlDim() int
}

// Hamiltonian is implemented by systems that can report their total
// mechanical energy for a given state.
type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dst State, dyn System, x State, u Control, t, dt float64)
}
