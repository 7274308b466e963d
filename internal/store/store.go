// Package store persists experiment runs. Each run gets a directory
// under the base dir holding metadata.json and log.csv.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/pendlab/internal/actuator"
	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/encoder"
	"github.com/san-kum/pendlab/internal/physics"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one persisted run.
type RunMetadata struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Seed      int64            `json:"seed"`
	Dt        float64          `json:"dt"`
	Duration  float64          `json:"duration"`
	Physics   physics.Params   `json:"physics"`
	Actuator  actuator.Params  `json:"actuator"`
	Encoder   encoder.Params   `json:"encoder"`
	PID       control.Params   `json:"pid"`
	Metrics   analysis.Metrics `json:"metrics"`
}

var csvHeader = []string{
	"time", "arm_angle", "arm_velocity", "pendulum_angle", "pendulum_velocity",
	"motor_torque", "encoder_raw", "encoder_position", "pid_output", "pid_error",
	"target_angle", "control_enabled",
}

// Save writes the metadata and log under a fresh run directory and
// returns the run ID.
func (s *Store) Save(meta RunMetadata, log []dynamo.Snapshot) (string, error) {
	runID := meta.ID
	if runID == "" {
		runID = fmt.Sprintf("run_%d", time.Now().Unix())
		meta.ID = runID
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if len(log) > 0 {
		meta.Duration = log[len(log)-1].Timestamp - log[0].Timestamp
	}

	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "log.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, snap := range log {
		if err := w.Write(snapshotRow(snap)); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func snapshotRow(s dynamo.Snapshot) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	enabled := "0"
	if s.ControlEnabled {
		enabled = "1"
	}
	return []string{
		f(s.Timestamp), f(s.ArmAngle), f(s.ArmVelocity), f(s.PendulumAngle),
		f(s.PendulumVeloc), f(s.MotorTorque), strconv.Itoa(s.EncoderRaw),
		f(s.EncoderPosition), f(s.PIDOutput), f(s.PIDError), f(s.TargetAngle),
		enabled,
	}
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadLog reads a run's snapshot trace back from its CSV.
func (s *Store) LoadLog(runID string) ([]dynamo.Snapshot, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "log.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []dynamo.Snapshot{}, nil
	}

	log := make([]dynamo.Snapshot, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			continue
		}
		snap, err := parseRow(rec)
		if err != nil {
			continue
		}
		log = append(log, snap)
	}
	return log, nil
}

func parseRow(rec []string) (dynamo.Snapshot, error) {
	var snap dynamo.Snapshot
	fields := []*float64{
		&snap.Timestamp, &snap.ArmAngle, &snap.ArmVelocity, &snap.PendulumAngle,
		&snap.PendulumVeloc, &snap.MotorTorque, nil, &snap.EncoderPosition,
		&snap.PIDOutput, &snap.PIDError, &snap.TargetAngle, nil,
	}
	for i, dst := range fields {
		switch i {
		case 6:
			raw, err := strconv.Atoi(rec[i])
			if err != nil {
				return snap, err
			}
			snap.EncoderRaw = raw
		case 11:
			snap.ControlEnabled = rec[i] == "1"
		default:
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return snap, err
			}
			*dst = v
		}
	}
	return snap, nil
}
