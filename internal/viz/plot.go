package viz

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// SaveAnglePlot writes a PNG of the pendulum angle, arm angle and
// target over time.
func SaveAnglePlot(path string, log []dynamo.Snapshot) error {
	if len(log) == 0 {
		return fmt.Errorf("empty log, nothing to plot")
	}

	p := plot.New()
	p.Title.Text = "Pendulum trace"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "angle (rad)"

	series := []struct {
		name string
		pick func(dynamo.Snapshot) float64
	}{
		{"pendulum", func(s dynamo.Snapshot) float64 { return s.PendulumAngle }},
		{"arm", func(s dynamo.Snapshot) float64 { return s.ArmAngle }},
		{"target", func(s dynamo.Snapshot) float64 { return s.TargetAngle }},
	}

	for i, ser := range series {
		xys := make(plotter.XYs, len(log))
		for j, s := range log {
			xys[j].X = s.Timestamp
			xys[j].Y = ser.pick(s)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(ser.name, line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// SaveTorquePlot writes a PNG of the applied motor torque over time.
func SaveTorquePlot(path string, log []dynamo.Snapshot) error {
	if len(log) == 0 {
		return fmt.Errorf("empty log, nothing to plot")
	}

	p := plot.New()
	p.Title.Text = "Motor torque"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "torque (Nm)"

	xys := make(plotter.XYs, len(log))
	for i, s := range log {
		xys[i].X = s.Timestamp
		xys[i].Y = s.MotorTorque
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(0)
	p.Add(line)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
