package integrators

import "github.com/san-kum/pendlab/internal/dynamo"

// RK4 is the classical 4th-order Runge-Kutta integrator. The applied
// control is held constant over the step (zero-order hold), matching how
// a digital controller drives the plant. Scratch vectors are allocated
// once at construction so Step does not allocate.
//
// An RK4 instance is not safe for concurrent use; the simulation loop is
// its only caller.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4(dim int) *RK4 {
	return &RK4{
		k1:      make(dynamo.State, dim),
		k2:      make(dynamo.State, dim),
		k3:      make(dynamo.State, dim),
		k4:      make(dynamo.State, dim),
		scratch: make(dynamo.State, dim),
	}
}

func (r *RK4) Step(dst dynamo.State, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) {
	n := len(x)

	dyn.Derive(r.k1, x, u, t)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	dyn.Derive(r.k2, r.scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	dyn.Derive(r.k3, r.scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	dyn.Derive(r.k4, r.scratch, u, t+dt)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		dst[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
}
