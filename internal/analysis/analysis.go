// Package analysis computes performance metrics over a window of
// logged snapshots. All functions are pure; they never touch the live
// simulation.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// Options selects the analysis window and tolerances. Zero values fall
// back to the defaults below.
type Options struct {
	// Window is the number of most recent samples to analyze. At
	// 240 Hz the default covers the last ten seconds.
	Window int
	// UprightTolerance is the half-width in radians of the band
	// counted as upright for the uptime metric.
	UprightTolerance float64
	// SettlingTolerance is the half-width in radians of the band the
	// error must stay inside to count as settled.
	SettlingTolerance float64
	// SettlingDwell is the minimum time in seconds the error must
	// remain inside the settling band.
	SettlingDwell float64
}

const (
	DefaultWindow            = 2400
	DefaultUprightTolerance  = 10 * math.Pi / 180
	DefaultSettlingTolerance = 0.05
	DefaultSettlingDwell     = 1.0
)

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.UprightTolerance <= 0 {
		o.UprightTolerance = DefaultUprightTolerance
	}
	if o.SettlingTolerance <= 0 {
		o.SettlingTolerance = DefaultSettlingTolerance
	}
	if o.SettlingDwell <= 0 {
		o.SettlingDwell = DefaultSettlingDwell
	}
	return o
}

// Metrics summarizes control performance over the analyzed window.
type Metrics struct {
	RMSError        float64  `json:"rms_error"`
	MaxDeviation    float64  `json:"max_deviation"`
	ControlEffort   float64  `json:"control_effort"`
	UptimePercent   float64  `json:"uptime_percent"`
	SettlingTime    *float64 `json:"settling_time,omitempty"`
	StabilityRating string   `json:"stability_rating"`
	Samples         int      `json:"samples"`
}

// Analyze computes metrics over the tail window of the log. An empty
// log yields zero metrics with an "unknown" rating.
func Analyze(log []dynamo.Snapshot, opts Options) Metrics {
	opts = opts.withDefaults()
	if len(log) > opts.Window {
		log = log[len(log)-opts.Window:]
	}
	if len(log) == 0 {
		return Metrics{StabilityRating: "unknown"}
	}

	n := len(log)
	errs := make([]float64, n)
	sq := make([]float64, n)
	torques := make([]float64, n)
	upright := 0
	for i, s := range log {
		e := s.PendulumAngle - s.TargetAngle
		errs[i] = e
		sq[i] = e * e
		torques[i] = math.Abs(s.MotorTorque)
		if math.Abs(e) < opts.UprightTolerance {
			upright++
		}
	}

	rms := math.Sqrt(stat.Mean(sq, nil))
	maxDev := math.Max(math.Abs(floats.Max(errs)), math.Abs(floats.Min(errs)))

	m := Metrics{
		RMSError:        rms,
		MaxDeviation:    maxDev,
		ControlEffort:   stat.Mean(torques, nil),
		UptimePercent:   100 * float64(upright) / float64(n),
		SettlingTime:    settlingTime(log, errs, opts),
		StabilityRating: rating(rms),
		Samples:         n,
	}
	return m
}

// settlingTime finds the start of the final stretch of samples whose
// error stays inside the settling band, provided it lasts at least the
// dwell time. Snapshot timestamps count from the start of the run, so
// the result is elapsed simulation time since the experiment started.
func settlingTime(log []dynamo.Snapshot, errs []float64, opts Options) *float64 {
	last := -1
	for i, e := range errs {
		if math.Abs(e) > opts.SettlingTolerance {
			last = i
		}
	}
	start := last + 1
	if start >= len(log) {
		return nil
	}
	end := log[len(log)-1].Timestamp
	if end-log[start].Timestamp < opts.SettlingDwell {
		return nil
	}
	ts := log[start].Timestamp
	return &ts
}

func rating(rms float64) string {
	switch {
	case rms < 0.02:
		return "excellent"
	case rms < 0.05:
		return "good"
	case rms < 0.1:
		return "fair"
	default:
		return "poor"
	}
}
