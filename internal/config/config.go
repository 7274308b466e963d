package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pendlab/internal/actuator"
	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/encoder"
	"github.com/san-kum/pendlab/internal/experiment"
	"github.com/san-kum/pendlab/internal/physics"
	"github.com/san-kum/pendlab/internal/sim"
)

const (
	DefaultDuration     = 30.0
	DefaultPerturbation = 0.1
)

// Config is the on-disk experiment description.
type Config struct {
	Physics  physics.Params  `yaml:"physics"`
	Actuator actuator.Params `yaml:"actuator"`
	Encoder  encoder.Params  `yaml:"encoder"`
	PID      control.Params  `yaml:"pid"`

	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	Paced    bool    `yaml:"paced"`
	Seed     int64   `yaml:"seed"`

	Control     bool            `yaml:"control"`
	TargetAngle float64         `yaml:"target_angle"`
	InitState   InitStateConfig `yaml:"init_state"`
	LogCapacity int             `yaml:"log_capacity"`
}

// InitStateConfig selects the start state. With Random set the
// pendulum starts at a seeded random deflection and the explicit
// angles are ignored.
type InitStateConfig struct {
	Random           bool    `yaml:"random"`
	Perturbation     float64 `yaml:"perturbation"`
	ArmAngle         float64 `yaml:"arm_angle"`
	ArmVelocity      float64 `yaml:"arm_velocity"`
	PendulumAngle    float64 `yaml:"pendulum_angle"`
	PendulumVelocity float64 `yaml:"pendulum_velocity"`
}

func DefaultConfig() *Config {
	return &Config{
		Physics:  physics.DefaultParams(),
		Actuator: actuator.DefaultParams(),
		Encoder:  encoder.DefaultParams(),
		PID:      control.DefaultParams(),
		Dt:       sim.DefaultDt,
		Duration: DefaultDuration,
		Control:  true,
		InitState: InitStateConfig{
			Random:       true,
			Perturbation: DefaultPerturbation,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Physics.Validate(); err != nil {
		return err
	}
	if err := c.Actuator.Validate(); err != nil {
		return err
	}
	if err := c.Encoder.Validate(); err != nil {
		return err
	}
	if err := c.PID.Validate(); err != nil {
		return err
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	return nil
}

// Experiment converts the file form into an experiment configuration.
func (c *Config) Experiment() experiment.Config {
	ec := experiment.Config{
		Physics:      c.Physics,
		Actuator:     c.Actuator,
		Encoder:      c.Encoder,
		PID:          c.PID,
		Sim:          sim.Config{Dt: c.Dt, Paced: c.Paced},
		Perturbation: c.InitState.Perturbation,
		Seed:         c.Seed,
		LogCapacity:  c.LogCapacity,
		Analysis:     analysis.Options{},
	}
	if !c.InitState.Random {
		ec.InitState = dynamo.State{
			c.InitState.ArmAngle,
			c.InitState.ArmVelocity,
			c.InitState.PendulumAngle,
			c.InitState.PendulumVelocity,
		}
	}
	return ec
}
