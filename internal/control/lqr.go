package control

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/physics"
)

// LQR is a full-state-feedback controller, u = -K (x - x_ref). The gain
// row is computed offline (the rig geometry is fixed), like any embedded
// deployment would ship it.
type LQR struct {
	k           *mat.VecDense
	ref         *mat.VecDense
	diff        *mat.VecDense
	outputLimit float64
}

func NewLQR(gains []float64, outputLimit float64) *LQR {
	return &LQR{
		k:           mat.NewVecDense(len(gains), gains),
		ref:         mat.NewVecDense(len(gains), nil),
		diff:        mat.NewVecDense(len(gains), nil),
		outputLimit: outputLimit,
	}
}

// NewBalanceLQR returns gains tuned offline for the default rig
// (DefaultParams geometry, 240 Hz loop).
func NewBalanceLQR() *LQR {
	return NewLQR([]float64{-0.12, -0.035, -9.8, -0.52}, 1.0)
}

func (l *LQR) Compute(target float64, x dynamo.State, dt float64) (float64, float64) {
	err := target - x[physics.StatePhi]

	l.ref.Zero()
	l.ref.SetVec(physics.StatePhi, target)
	for i := 0; i < l.diff.Len() && i < len(x); i++ {
		l.diff.SetVec(i, x[i]-l.ref.AtVec(i))
	}
	u := -mat.Dot(l.k, l.diff)
	return clamp(u, l.outputLimit), err
}

// Reset is a no-op; state feedback carries no memory.
func (l *LQR) Reset() {}
