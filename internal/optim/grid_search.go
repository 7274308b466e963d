// Package optim searches controller gain space for low tracking error.
package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/experiment"
)

// GridSearch evaluates every combination of the given gain candidates
// and keeps the one with the lowest RMS error. Empty axes fall back to
// the base config's gain.
type GridSearch struct {
	Kp []float64
	Ki []float64
	Kd []float64

	// Duration is the simulated seconds per evaluation.
	Duration float64
}

// Result pairs a gain set with the metrics it scored.
type Result struct {
	Params  control.Params
	Metrics analysis.Metrics
}

// Search runs one experiment per grid point on a copy of the base
// configuration and returns the best result. Diverged runs score
// +Inf and never win.
func (g *GridSearch) Search(ctx context.Context, base experiment.Config) (Result, error) {
	if g.Duration <= 0 {
		return Result{}, fmt.Errorf("duration must be positive, got %g", g.Duration)
	}

	kps := axis(g.Kp, base.PID.Kp)
	kis := axis(g.Ki, base.PID.Ki)
	kds := axis(g.Kd, base.PID.Kd)

	best := Result{}
	bestScore := math.Inf(1)
	evaluated := 0

	for _, kp := range kps {
		for _, ki := range kis {
			for _, kd := range kds {
				if err := ctx.Err(); err != nil {
					return best, err
				}

				params := base.PID
				params.Kp, params.Ki, params.Kd = kp, ki, kd

				metrics, err := g.evaluate(ctx, base, params)
				if err != nil {
					continue
				}
				evaluated++
				if metrics.RMSError < bestScore {
					bestScore = metrics.RMSError
					best = Result{Params: params, Metrics: metrics}
				}
			}
		}
	}

	if evaluated == 0 {
		return best, fmt.Errorf("no grid point completed a run")
	}
	return best, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base experiment.Config, params control.Params) (analysis.Metrics, error) {
	cfg := base
	cfg.PID = params
	cfg.Sim.Paced = false

	exp, err := experiment.New(cfg)
	if err != nil {
		return analysis.Metrics{}, err
	}
	exp.EnableControl()
	if err := exp.RunFor(ctx, g.Duration); err != nil {
		return analysis.Metrics{}, err
	}
	return exp.Metrics(), nil
}

func axis(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}
	return values
}
