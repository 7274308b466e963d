package analysis

import (
	"math"
	"testing"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// trace builds a log with the given pendulum angles at 240 Hz and a
// zero target.
func trace(angles []float64) []dynamo.Snapshot {
	log := make([]dynamo.Snapshot, len(angles))
	for i, a := range angles {
		log[i] = dynamo.Snapshot{
			Timestamp:     float64(i) / 240,
			PendulumAngle: a,
		}
	}
	return log
}

func TestAnalyzeEmptyLog(t *testing.T) {
	m := Analyze(nil, Options{})
	if m.Samples != 0 {
		t.Errorf("Samples = %d, want 0", m.Samples)
	}
	if m.StabilityRating != "unknown" {
		t.Errorf("StabilityRating = %q, want unknown", m.StabilityRating)
	}
	if m.SettlingTime != nil {
		t.Error("empty log should have no settling time")
	}
}

func TestAnalyzeConstantError(t *testing.T) {
	angles := make([]float64, 480)
	for i := range angles {
		angles[i] = 0.04
	}
	m := Analyze(trace(angles), Options{})

	if math.Abs(m.RMSError-0.04) > 1e-12 {
		t.Errorf("RMSError = %g, want 0.04", m.RMSError)
	}
	if math.Abs(m.MaxDeviation-0.04) > 1e-12 {
		t.Errorf("MaxDeviation = %g, want 0.04", m.MaxDeviation)
	}
	if m.UptimePercent != 100 {
		t.Errorf("UptimePercent = %g, want 100", m.UptimePercent)
	}
	if m.StabilityRating != "good" {
		t.Errorf("StabilityRating = %q, want good", m.StabilityRating)
	}
	if m.Samples != 480 {
		t.Errorf("Samples = %d, want 480", m.Samples)
	}
}

func TestAnalyzeRatingBuckets(t *testing.T) {
	cases := []struct {
		angle float64
		want  string
	}{
		{0.01, "excellent"},
		{0.03, "good"},
		{0.07, "fair"},
		{0.5, "poor"},
	}
	for _, tc := range cases {
		angles := make([]float64, 240)
		for i := range angles {
			angles[i] = tc.angle
		}
		m := Analyze(trace(angles), Options{})
		if m.StabilityRating != tc.want {
			t.Errorf("angle %g: rating %q, want %q", tc.angle, m.StabilityRating, tc.want)
		}
	}
}

func TestAnalyzeWindowTrimsHead(t *testing.T) {
	// an old excursion outside the window must not count
	angles := make([]float64, 600)
	for i := 0; i < 120; i++ {
		angles[i] = 1.0
	}
	m := Analyze(trace(angles), Options{Window: 480})
	if m.Samples != 480 {
		t.Fatalf("Samples = %d, want 480", m.Samples)
	}
	if m.MaxDeviation != 0 {
		t.Errorf("MaxDeviation = %g, excursion outside window leaked in", m.MaxDeviation)
	}
}

func TestAnalyzeSettlingTime(t *testing.T) {
	// one second of oscillation, then three settled seconds
	angles := make([]float64, 4*240)
	for i := 0; i < 240; i++ {
		angles[i] = 0.3
	}
	m := Analyze(trace(angles), Options{Window: len(angles)})
	if m.SettlingTime == nil {
		t.Fatal("expected a settling time")
	}
	got := *m.SettlingTime
	if math.Abs(got-1.0) > 0.01 {
		t.Errorf("SettlingTime = %g, want ~1.0", got)
	}
}

func TestAnalyzeSettlingTimeFromRunStart(t *testing.T) {
	// the window trims away the oscillation, but the settling time is
	// still elapsed time since the run began
	angles := make([]float64, 5*240)
	for i := 0; i < 240; i++ {
		angles[i] = 0.3
	}
	m := Analyze(trace(angles), Options{Window: 2 * 240})
	if m.SettlingTime == nil {
		t.Fatal("expected a settling time")
	}
	if got := *m.SettlingTime; math.Abs(got-3.0) > 0.01 {
		t.Errorf("SettlingTime = %g, want ~3.0 from run start", got)
	}
}

func TestAnalyzeNeverSettles(t *testing.T) {
	angles := make([]float64, 480)
	for i := range angles {
		if i%2 == 0 {
			angles[i] = 0.2
		} else {
			angles[i] = -0.2
		}
	}
	m := Analyze(trace(angles), Options{})
	if m.SettlingTime != nil {
		t.Errorf("SettlingTime = %g, want nil", *m.SettlingTime)
	}
	if m.UptimePercent != 0 {
		t.Errorf("UptimePercent = %g, want 0", m.UptimePercent)
	}
}

func TestAnalyzeControlEffort(t *testing.T) {
	log := trace(make([]float64, 240))
	for i := range log {
		if i%2 == 0 {
			log[i].MotorTorque = 0.2
		} else {
			log[i].MotorTorque = -0.2
		}
	}
	m := Analyze(log, Options{})
	if math.Abs(m.ControlEffort-0.2) > 1e-12 {
		t.Errorf("ControlEffort = %g, want 0.2", m.ControlEffort)
	}
}
