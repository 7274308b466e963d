package config

import "sort"

func preset(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	mutate(cfg)
	return cfg
}

var Presets = map[string]*Config{
	"balance": preset(func(c *Config) {
		c.Control = true
		c.InitState = InitStateConfig{PendulumAngle: 0.1}
	}),
	"free-decay": preset(func(c *Config) {
		c.Control = false
		c.Duration = 20
		c.InitState = InitStateConfig{PendulumAngle: 0.5}
	}),
	"noisy-encoder": preset(func(c *Config) {
		c.Encoder.NoiseLevel = 0.01
		c.InitState = InitStateConfig{PendulumAngle: 0.1}
	}),
	"aggressive": preset(func(c *Config) {
		c.PID.Kp = 25
		c.PID.Kd = 8
		c.InitState = InitStateConfig{PendulumAngle: 0.1}
	}),
	"soft": preset(func(c *Config) {
		c.PID.Kp = 4
		c.PID.Ki = 0.05
		c.PID.Kd = 2
		c.InitState = InitStateConfig{PendulumAngle: 0.1}
	}),
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
