package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/pendlab/internal/actuator"
	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/encoder"
	"github.com/san-kum/pendlab/internal/physics"
)

func testMeta() RunMetadata {
	return RunMetadata{
		Seed:     42,
		Dt:       1.0 / 240,
		Physics:  physics.DefaultParams(),
		Actuator: actuator.DefaultParams(),
		Encoder:  encoder.DefaultParams(),
		PID:      control.DefaultParams(),
		Metrics:  analysis.Metrics{RMSError: 0.01, StabilityRating: "excellent", Samples: 3},
	}
}

func testLog() []dynamo.Snapshot {
	log := make([]dynamo.Snapshot, 3)
	for i := range log {
		log[i] = dynamo.Snapshot{
			Timestamp:      float64(i) / 240,
			PendulumAngle:  0.1 - float64(i)*0.01,
			MotorTorque:    0.05,
			EncoderRaw:     1024 + i,
			ControlEnabled: true,
		}
	}
	return log
}

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := s.Save(testMeta(), testLog())
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("empty run ID")
	}

	meta, err := s.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Seed != 42 {
		t.Errorf("Seed = %d, want 42", meta.Seed)
	}
	if meta.PID.Kp != control.DefaultParams().Kp {
		t.Errorf("Kp = %g, want %g", meta.PID.Kp, control.DefaultParams().Kp)
	}
	if meta.Metrics.StabilityRating != "excellent" {
		t.Errorf("rating = %q", meta.Metrics.StabilityRating)
	}
}

func TestLoadLogRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	orig := testLog()
	runID, err := s.Save(testMeta(), orig)
	if err != nil {
		t.Fatal(err)
	}

	log, err := s.LoadLog(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != len(orig) {
		t.Fatalf("loaded %d snapshots, want %d", len(log), len(orig))
	}
	for i := range log {
		// CSV keeps six decimal places
		if math.Abs(log[i].PendulumAngle-orig[i].PendulumAngle) > 1e-6 {
			t.Errorf("row %d: PendulumAngle = %g, want %g", i, log[i].PendulumAngle, orig[i].PendulumAngle)
		}
		if log[i].EncoderRaw != orig[i].EncoderRaw {
			t.Errorf("row %d: EncoderRaw = %d, want %d", i, log[i].EncoderRaw, orig[i].EncoderRaw)
		}
		if log[i].ControlEnabled != orig[i].ControlEnabled {
			t.Errorf("row %d: ControlEnabled mismatch", i)
		}
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("empty store lists %d runs", len(runs))
	}

	meta := testMeta()
	meta.ID = "run_a"
	if _, err := s.Save(meta, testLog()); err != nil {
		t.Fatal(err)
	}
	meta.ID = "run_b"
	if _, err := s.Save(meta, nil); err != nil {
		t.Fatal(err)
	}

	runs, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("listed %d runs, want 2", len(runs))
	}
}

func TestListMissingBaseDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("listed %d runs from a missing dir", len(runs))
	}
}

func TestLoadMissingRun(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("nope"); err == nil {
		t.Error("expected error loading a missing run")
	}
}

func TestExportImportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	meta := testMeta()
	meta.ID = "run_x"
	orig := testLog()

	if err := ExportJSON(path, meta, orig); err != nil {
		t.Fatal(err)
	}
	data, err := ImportJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if data.Meta.ID != "run_x" {
		t.Errorf("ID = %q, want run_x", data.Meta.ID)
	}
	if data.Steps != len(orig) {
		t.Errorf("Steps = %d, want %d", data.Steps, len(orig))
	}
	for i := range orig {
		if data.Data[i] != orig[i] {
			t.Errorf("row %d differs after round trip", i)
		}
	}
}
