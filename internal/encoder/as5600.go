package encoder

import (
	"fmt"
	"math/rand"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// Reading is one encoder sample.
type Reading struct {
	Raw     int     // quantized code in [0, resolution)
	Angle   float64 // reconstructed angle in [0, 2π)
	Degrees float64
}

// Interface is the shape an angle sensor must satisfy. A real AS5600
// behind an I2C bus substitutes for the simulated one.
type Interface interface {
	Read(trueAngle float64) Reading
	// Position returns the accumulated multi-turn angle in radians.
	Position() float64
	Reset()
}

// Params configures the simulated magnetic encoder. Resolution defaults
// to the AS5600's 12 bits; NoiseLevel is the Gaussian noise standard
// deviation as a fraction of a full revolution.
type Params struct {
	Resolution int     `yaml:"resolution" json:"resolution"`
	NoiseLevel float64 `yaml:"noise_level" json:"noise_level"`
	Seed       int64   `yaml:"seed" json:"seed"`
}

func DefaultParams() Params {
	return Params{Resolution: 4096, NoiseLevel: 0.001}
}

func (p Params) Validate() error {
	if p.Resolution <= 1 {
		return fmt.Errorf("%w: encoder resolution must exceed 1, got %d", dynamo.ErrParameterBounds, p.Resolution)
	}
	if p.NoiseLevel < 0 {
		return fmt.Errorf("%w: noise level must be non-negative, got %g", dynamo.ErrParameterBounds, p.NoiseLevel)
	}
	return nil
}

// AS5600 quantizes a true angle into a finite-resolution code with
// bounded Gaussian noise and tracks the accumulated multi-turn position
// by watching for wrap-around between consecutive reads.
//
// Only the simulation loop calls Read; the type is not safe for
// concurrent use.
type AS5600 struct {
	params Params
	rng    *rand.Rand

	prevRaw     int
	revolutions int
	haveRead    bool
}

func New(params Params) (*AS5600, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &AS5600{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}, nil
}

func (e *AS5600) Params() Params { return e.params }

func (e *AS5600) Read(trueAngle float64) Reading {
	res := e.params.Resolution
	normalized := dynamo.WrapTwoPi(trueAngle)

	raw := int(normalized / dynamo.TwoPi * float64(res))
	if raw >= res {
		raw = res - 1
	}

	if e.params.NoiseLevel > 0 {
		noise := int(e.rng.NormFloat64() * e.params.NoiseLevel * float64(res))
		raw += noise
		if raw < 0 {
			raw = 0
		} else if raw >= res {
			raw = res - 1
		}
	}

	// Wrap-around detection: a jump of more than half a revolution
	// between consecutive reads means the shaft crossed zero.
	if e.haveRead {
		delta := raw - e.prevRaw
		if delta > res/2 {
			e.revolutions--
		} else if delta < -res/2 {
			e.revolutions++
		}
	}
	e.prevRaw = raw
	e.haveRead = true

	angle := float64(raw) / float64(res) * dynamo.TwoPi
	return Reading{Raw: raw, Angle: angle, Degrees: dynamo.Degrees(angle)}
}

func (e *AS5600) Position() float64 {
	if !e.haveRead {
		return 0
	}
	return (float64(e.revolutions) + float64(e.prevRaw)/float64(e.params.Resolution)) * dynamo.TwoPi
}

// Reset clears the multi-turn tracking and reseeds the noise source so a
// reset experiment replays identically.
func (e *AS5600) Reset() {
	e.prevRaw = 0
	e.revolutions = 0
	e.haveRead = false
	e.rng = rand.New(rand.NewSource(e.params.Seed))
}
