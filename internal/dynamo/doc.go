// Package dynamo provides the core primitives shared by the pendulum
// engine:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE right-hand sides (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [Snapshot]: the immutable per-tick record published by the loop
//
// Systems and integrators write derivatives and results into
// caller-supplied destination vectors so the 240 Hz tick path does not
// allocate.
package dynamo
