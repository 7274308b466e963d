package encoder

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/pendlab/internal/dynamo"
)

func noiseless() *AS5600 {
	p := DefaultParams()
	p.NoiseLevel = 0
	e, err := New(p)
	if err != nil {
		panic(err)
	}
	return e
}

func TestReadQuantization(t *testing.T) {
	e := noiseless()

	tests := []struct {
		angle   float64
		wantRaw int
	}{
		{0, 0},
		{math.Pi, 2048},
		{math.Pi / 2, 1024},
		{2 * math.Pi, 0},     // wraps
		{-math.Pi / 2, 3072}, // negative angles normalize
	}

	for _, tt := range tests {
		r := e.Read(tt.angle)
		if r.Raw != tt.wantRaw {
			t.Errorf("Read(%g): raw = %d, want %d", tt.angle, r.Raw, tt.wantRaw)
		}
		if r.Raw < 0 || r.Raw >= 4096 {
			t.Errorf("Read(%g): raw %d out of range", tt.angle, r.Raw)
		}
	}
}

func TestReadReconstruction(t *testing.T) {
	e := noiseless()

	// quantization error is bounded by one code width
	step := dynamo.TwoPi / 4096
	for _, angle := range []float64{0.1, 1.0, 3.0, 5.5} {
		r := e.Read(angle)
		if math.Abs(r.Angle-angle) > step {
			t.Errorf("Read(%g): reconstructed %g, error exceeds one code width", angle, r.Angle)
		}
		if math.Abs(r.Degrees-dynamo.Degrees(r.Angle)) > 1e-9 {
			t.Errorf("Read(%g): degrees %g inconsistent with angle %g", angle, r.Degrees, r.Angle)
		}
	}
}

func TestNoiseBounded(t *testing.T) {
	p := DefaultParams()
	p.Seed = 42
	e, _ := New(p)

	// noise std is ~4 codes; readings must stay within a few sigma and
	// always inside the code range
	for i := 0; i < 10000; i++ {
		r := e.Read(math.Pi)
		if r.Raw < 0 || r.Raw >= p.Resolution {
			t.Fatalf("raw %d out of range at read %d", r.Raw, i)
		}
		if d := r.Raw - 2048; d > 40 || d < -40 {
			t.Fatalf("noise excursion %d codes at read %d", d, i)
		}
	}
}

func TestMultiTurnTracking(t *testing.T) {
	e := noiseless()

	// sweep three forward revolutions in small increments
	steps := 3 * 64
	for i := 0; i <= steps; i++ {
		angle := float64(i) / 64 * dynamo.TwoPi
		e.Read(angle)
	}
	if got := e.Position(); math.Abs(got-3*dynamo.TwoPi) > 0.01 {
		t.Errorf("after 3 revolutions, position = %g, want %g", got, 3*dynamo.TwoPi)
	}

	// and back down past zero
	for i := steps; i >= -64; i-- {
		angle := float64(i) / 64 * dynamo.TwoPi
		e.Read(angle)
	}
	if got := e.Position(); math.Abs(got-(-dynamo.TwoPi)) > 0.01 {
		t.Errorf("after unwinding to -1 revolution, position = %g, want %g", got, -dynamo.TwoPi)
	}
}

func TestReset(t *testing.T) {
	p := DefaultParams()
	p.Seed = 7
	e, _ := New(p)

	first := make([]int, 20)
	for i := range first {
		first[i] = e.Read(1.0).Raw
	}
	if e.Position() == 0 {
		// position should track the last read, not stay zero
		t.Error("expected non-zero position after reads")
	}

	e.Reset()
	if e.Position() != 0 {
		t.Errorf("position after reset = %g, want 0", e.Position())
	}
	for i := range first {
		if got := e.Read(1.0).Raw; got != first[i] {
			t.Fatalf("read %d after reset = %d, want %d (reseeded noise should replay)", i, got, first[i])
		}
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.Resolution = 1
	if _, err := New(p); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for resolution 1, got %v", err)
	}

	p = DefaultParams()
	p.NoiseLevel = -0.1
	if _, err := New(p); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for negative noise, got %v", err)
	}
}
