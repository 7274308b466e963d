package optim

import (
	"context"
	"testing"

	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/experiment"
	"github.com/san-kum/pendlab/internal/sim"
)

func baseConfig() experiment.Config {
	cfg := experiment.DefaultConfig()
	cfg.Sim = sim.Config{Paced: false}
	cfg.Seed = 42
	cfg.InitState = dynamo.State{0, 0, 0.1, 0}
	return cfg
}

func TestGridSearchFindsAGridPoint(t *testing.T) {
	g := &GridSearch{
		Kp:       []float64{4, 10},
		Kd:       []float64{2, 5},
		Duration: 2,
	}
	res, err := g.Search(context.Background(), baseConfig())
	if err != nil {
		t.Fatal(err)
	}

	inGrid := func(v float64, axis []float64) bool {
		for _, a := range axis {
			if a == v {
				return true
			}
		}
		return false
	}
	if !inGrid(res.Params.Kp, g.Kp) {
		t.Errorf("best Kp %g not on the grid", res.Params.Kp)
	}
	if !inGrid(res.Params.Kd, g.Kd) {
		t.Errorf("best Kd %g not on the grid", res.Params.Kd)
	}
	if res.Params.Ki != baseConfig().PID.Ki {
		t.Errorf("Ki = %g, want base value %g", res.Params.Ki, baseConfig().PID.Ki)
	}
	if res.Metrics.RMSError >= 1 {
		t.Errorf("best RMSError = %g, expected a stabilizing gain set", res.Metrics.RMSError)
	}
}

func TestGridSearchRejectsZeroDuration(t *testing.T) {
	g := &GridSearch{Kp: []float64{1}}
	if _, err := g.Search(context.Background(), baseConfig()); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestGridSearchHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &GridSearch{Kp: []float64{1, 2, 3}, Duration: 1}
	if _, err := g.Search(ctx, baseConfig()); err == nil {
		t.Error("expected context error")
	}
}
