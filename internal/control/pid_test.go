package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/pendlab/internal/dynamo"
)

func mustPID(t *testing.T, p Params) *PID {
	t.Helper()
	c, err := NewPID(p)
	if err != nil {
		t.Fatalf("NewPID: %v", err)
	}
	return c
}

func TestUpdateSign(t *testing.T) {
	c := mustPID(t, DefaultParams())

	if out := c.Update(-0.5, 1.0/240); out >= 0 {
		t.Errorf("negative error should yield negative output, got %g", out)
	}
	c.Reset()
	if out := c.Update(0.5, 1.0/240); out <= 0 {
		t.Errorf("positive error should yield positive output, got %g", out)
	}
}

func TestUpdateZeroDt(t *testing.T) {
	c := mustPID(t, DefaultParams())

	// seed some memory
	c.Update(0.2, 0.01)
	integralBefore := c.integral
	prevBefore := c.prevErr

	for _, dt := range []float64{0, -0.01} {
		out := c.Update(1.0, dt)
		if math.IsNaN(out) || math.IsInf(out, 0) {
			t.Fatalf("Update with dt=%g produced %g", dt, out)
		}
		if c.integral != integralBefore || c.prevErr != prevBefore {
			t.Errorf("dt=%g must not mutate controller memory", dt)
		}
	}
}

// first-order plant x' = -x + u; a tuned PID must drive the error below
// tolerance within a bounded number of ticks.
func TestConvergenceOnFirstOrderPlant(t *testing.T) {
	c := mustPID(t, Params{Kp: 2.0, Ki: 1.0, Kd: 0.05, OutputLimit: 10, IntegralLimit: 10})

	x := 0.0
	dt := 0.01
	target := 1.0
	for i := 0; i < 2000; i++ {
		u := c.Update(target-x, dt)
		x += dt * (-x + u)
	}

	if err := math.Abs(target - x); err > 0.01 {
		t.Errorf("error after 2000 ticks = %g, want < 0.01", err)
	}
}

// Increasing kp from a stable baseline strictly decreases rise time.
func TestRiseTimeDecreasesWithKp(t *testing.T) {
	rise := func(kp float64) int {
		c := mustPID(t, Params{Kp: kp, Ki: 1.0, Kd: 0.05, OutputLimit: 100, IntegralLimit: 10})
		x := 0.0
		for i := 0; i < 5000; i++ {
			u := c.Update(1.0-x, 0.01)
			x += 0.01 * (-x + u)
			if x >= 0.9 {
				return i
			}
		}
		return 5000
	}

	r2, r5, r10 := rise(2), rise(5), rise(10)
	if !(r2 > r5 && r5 > r10) {
		t.Errorf("rise times not strictly decreasing with kp: kp=2:%d kp=5:%d kp=10:%d", r2, r5, r10)
	}
}

func TestAntiWindup(t *testing.T) {
	p := Params{Kp: 1.0, Ki: 1.0, Kd: 0, OutputLimit: 0.5, IntegralLimit: 2.0}
	c := mustPID(t, p)

	// saturate hard for a long time
	for i := 0; i < 10000; i++ {
		out := c.Update(10.0, 0.01)
		if out != p.OutputLimit {
			t.Fatalf("expected saturated output %g, got %g", p.OutputLimit, out)
		}
		if c.integral > p.IntegralLimit {
			t.Fatalf("integral %g exceeded limit %g at tick %d", c.integral, p.IntegralLimit, i)
		}
	}
	if c.integral != p.IntegralLimit {
		t.Errorf("integral should sit at the clamp after sustained saturation, got %g", c.integral)
	}

	// after desaturation the integral unwinds instead of ratcheting
	for i := 0; i < 10000; i++ {
		c.Update(-10.0, 0.01)
	}
	if c.integral != -p.IntegralLimit {
		t.Errorf("integral should unwind to the opposite clamp, got %g", c.integral)
	}
}

func TestResetClearsMemory(t *testing.T) {
	c := mustPID(t, DefaultParams())
	c.Update(1.0, 0.01)
	c.Update(2.0, 0.01)

	c.Reset()
	if c.integral != 0 || c.prevErr != 0 {
		t.Errorf("reset left memory: integral=%g prevErr=%g", c.integral, c.prevErr)
	}
}

func TestSetParamsKeepsMemory(t *testing.T) {
	c := mustPID(t, DefaultParams())
	c.Update(1.0, 0.01)
	integral := c.integral

	p := DefaultParams()
	p.Kp = 20
	if err := c.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if c.integral != integral {
		t.Error("SetParams must not implicitly reset controller memory")
	}
	if c.Params().Kp != 20 {
		t.Errorf("Kp = %g after SetParams, want 20", c.Params().Kp)
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.IntegralLimit = 0
	if _, err := NewPID(p); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for integral_limit 0, got %v", err)
	}
	p = DefaultParams()
	p.OutputLimit = -1
	if _, err := NewPID(p); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for negative output_limit, got %v", err)
	}
}

func TestComputeUsesCrossAxisError(t *testing.T) {
	c := mustPID(t, DefaultParams())

	// pendulum deflected, arm spinning: the error must come from the
	// pendulum angle, not the arm
	x := dynamo.State{1.5, 3.0, 0.2, 0}
	_, err := c.Compute(0, x, 1.0/240)
	if math.Abs(err-(-0.2)) > 1e-12 {
		t.Errorf("Compute error = %g, want -0.2 (target - phi)", err)
	}
}
