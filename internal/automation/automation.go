// Package automation runs scripted experiment sequences and
// Monte Carlo robustness trials.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/config"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/experiment"
)

// Scenario is a scripted sequence of experiments loaded from YAML.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step overrides parts of the base configuration for one run. Nil
// fields keep the base value.
type Step struct {
	Name          string          `yaml:"name"`
	Duration      float64         `yaml:"duration"`
	PID           *control.Params `yaml:"pid"`
	TargetAngle   *float64        `yaml:"target_angle"`
	Control       *bool           `yaml:"control"`
	PendulumAngle *float64        `yaml:"pendulum_angle"`
}

// StepResult records the outcome of one scenario step.
type StepResult struct {
	Name    string
	Metrics analysis.Metrics
	Err     error
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// RunScenario executes the steps in order against copies of the base
// configuration. A diverged step is recorded and the sequence
// continues; other errors abort.
func RunScenario(ctx context.Context, base *config.Config, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg := *base
		if step.PID != nil {
			cfg.PID = *step.PID
		}
		if step.TargetAngle != nil {
			cfg.TargetAngle = *step.TargetAngle
		}
		if step.Control != nil {
			cfg.Control = *step.Control
		}
		if step.PendulumAngle != nil {
			cfg.InitState = config.InitStateConfig{PendulumAngle: *step.PendulumAngle}
		}
		duration := step.Duration
		if duration <= 0 {
			duration = cfg.Duration
		}

		ec := cfg.Experiment()
		ec.Sim.Paced = false
		exp, err := experiment.New(ec)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		exp.SetTargetAngle(cfg.TargetAngle)
		if cfg.Control {
			exp.EnableControl()
		}

		runErr := exp.RunFor(ctx, duration)
		if runErr != nil && !errors.Is(runErr, dynamo.ErrDiverged) {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, runErr)
		}
		results = append(results, StepResult{
			Name:    step.Name,
			Metrics: exp.Metrics(),
			Err:     runErr,
		})
	}
	return results, nil
}

// MonteCarloConfig drives repeated trials from random initial
// deflections.
type MonteCarloConfig struct {
	Trials       int
	Perturbation float64
	Duration     float64
	Seed         int64
	// StableBound is the final deflection in radians below which a
	// trial counts as stable.
	StableBound float64
}

type MonteCarloResult struct {
	Trial        int
	InitialAngle float64
	FinalAngle   float64
	Stable       bool
}

// RunMonteCarlo runs repeated trials of the base configuration with
// randomized starts and reports which of them end settled.
func RunMonteCarlo(ctx context.Context, base *config.Config, mc MonteCarloConfig) ([]MonteCarloResult, error) {
	if mc.Trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", mc.Trials)
	}
	if mc.Perturbation <= 0 {
		mc.Perturbation = config.DefaultPerturbation
	}
	if mc.Duration <= 0 {
		mc.Duration = base.Duration
	}
	if mc.StableBound <= 0 {
		mc.StableBound = 0.5
	}
	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, 0, mc.Trials)
	for trial := 0; trial < mc.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		phi0 := (2*rng.Float64() - 1) * mc.Perturbation
		cfg := *base
		cfg.InitState = config.InitStateConfig{PendulumAngle: phi0}

		ec := cfg.Experiment()
		ec.Sim.Paced = false
		exp, err := experiment.New(ec)
		if err != nil {
			return results, err
		}
		exp.SetTargetAngle(cfg.TargetAngle)
		if cfg.Control {
			exp.EnableControl()
		}

		runErr := exp.RunFor(ctx, mc.Duration)
		if runErr != nil && !errors.Is(runErr, dynamo.ErrDiverged) {
			return results, runErr
		}

		res := MonteCarloResult{Trial: trial, InitialAngle: phi0}
		if s := exp.CurrentState(); s != nil {
			res.FinalAngle = s.PendulumAngle
		}
		res.Stable = runErr == nil &&
			res.FinalAngle < mc.StableBound && res.FinalAngle > -mc.StableBound
		results = append(results, res)
	}
	return results, nil
}

// StableCount tallies stable and unstable trials.
func StableCount(results []MonteCarloResult) (stable, unstable int) {
	for _, r := range results {
		if r.Stable {
			stable++
		} else {
			unstable++
		}
	}
	return
}
