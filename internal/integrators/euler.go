package integrators

import "github.com/san-kum/pendlab/internal/dynamo"

// Euler is the explicit first-order integrator. Kept as a cheap baseline
// for comparing integration error against RK4; the engine itself always
// runs RK4.
type Euler struct {
	dx dynamo.State
}

func NewEuler(dim int) *Euler {
	return &Euler{dx: make(dynamo.State, dim)}
}

func (e *Euler) Step(dst dynamo.State, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) {
	dyn.Derive(e.dx, x, u, t)
	for i := range x {
		dst[i] = x[i] + dt*e.dx[i]
	}
}
