// Package physics implements the equations of motion of the rotary
// inverted pendulum rig.
package physics
