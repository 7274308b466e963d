// Package viz renders the live terminal monitor and static trace
// plots for pendulum experiments.
package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/experiment"
)

const (
	canvasCols      = 36
	canvasRows      = 14
	historyCapacity = 600
	frameRate       = 30
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// gains the arrow keys can tune
var tunable = []string{"kp", "ki", "kd"}

// Model is the bubbletea model for the live monitor. It owns no
// simulation state; everything it shows comes from snapshots and
// everything it changes goes through the experiment API.
type Model struct {
	exp    *experiment.Experiment
	sub    <-chan dynamo.Snapshot
	latest dynamo.Snapshot

	pid      control.Params
	selected int

	canvas   *Canvas
	phiHist  []float64
	showHelp bool
	err      error
}

func NewModel(exp *experiment.Experiment) Model {
	return Model{
		exp:     exp,
		sub:     exp.Subscribe(),
		pid:     exp.Config().PID,
		canvas:  NewCanvas(canvasCols, canvasRows),
		phiHist: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			if m.latest.ControlEnabled {
				m.exp.DisableControl()
			} else {
				m.exp.EnableControl()
			}
		case "r":
			m.err = m.exp.Reset()
			if m.err == nil {
				m.err = m.exp.Start(context.Background())
			}
			m.phiHist = m.phiHist[:0]
		case "tab":
			m.selected = (m.selected + 1) % len(tunable)
		case "up", "k":
			m.adjustGain(1.05)
		case "down", "j":
			m.adjustGain(0.95)
		case "left":
			m.exp.SetTargetAngle(m.latest.TargetAngle - 0.05)
		case "right":
			m.exp.SetTargetAngle(m.latest.TargetAngle + 0.05)
		case "?":
			m.showHelp = !m.showHelp
		}
	case tickMsg:
		m.drain()
		return m, tick()
	}
	return m, nil
}

// drain consumes every snapshot queued since the last frame and keeps
// the newest.
func (m *Model) drain() {
	for {
		select {
		case s, ok := <-m.sub:
			if !ok {
				return
			}
			m.latest = s
			m.phiHist = append(m.phiHist, s.PendulumAngle)
			if len(m.phiHist) > historyCapacity {
				m.phiHist = m.phiHist[1:]
			}
		default:
			return
		}
	}
}

func (m *Model) adjustGain(factor float64) {
	p := &m.pid
	switch tunable[m.selected] {
	case "kp":
		p.Kp *= factor
	case "ki":
		p.Ki *= factor
	case "kd":
		p.Kd *= factor
	}
	m.err = m.exp.SetPIDParameters(m.pid)
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render("ROTARY PENDULUM") + "\n")
	s.WriteString(fmt.Sprintf("%s\n\n", m.exp.Phase()))

	if len(m.phiHist) > 1 {
		chart := asciigraph.Plot(m.phiHist,
			asciigraph.Height(4), asciigraph.Width(30),
			asciigraph.Caption("Pendulum angle"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs", m.latest.Timestamp)) + "\n")
	s.WriteString(labelStyle.Render("Pendulum") + valueStyle.Render(fmt.Sprintf("%+.4f rad", m.latest.PendulumAngle)) + "\n")
	s.WriteString(labelStyle.Render("Arm") + valueStyle.Render(fmt.Sprintf("%+.4f rad", m.latest.ArmAngle)) + "\n")
	s.WriteString(labelStyle.Render("Encoder") + valueStyle.Render(fmt.Sprintf("%4d  %+.1f°", m.latest.EncoderRaw, m.latest.EncoderDegrees)) + "\n")
	s.WriteString(labelStyle.Render("Torque") + valueStyle.Render(fmt.Sprintf("%+.4f Nm", m.latest.MotorTorque)) + "\n")
	s.WriteString(labelStyle.Render("Target") + valueStyle.Render(fmt.Sprintf("%+.3f rad", m.latest.TargetAngle)) + "\n")

	if m.latest.ControlEnabled {
		s.WriteString(labelStyle.Render("Control") + enabledStyle.Render("ON") + "\n")
	} else {
		s.WriteString(labelStyle.Render("Control") + disabledStyle.Render("OFF") + "\n")
	}

	metrics := m.exp.Metrics()
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("RMS error") + valueStyle.Render(fmt.Sprintf("%.4f rad", metrics.RMSError)) + "\n")
	s.WriteString(labelStyle.Render("Uptime") + valueStyle.Render(fmt.Sprintf("%.1f%%", metrics.UptimePercent)) + "\n")
	s.WriteString(labelStyle.Render("Rating") + valueStyle.Render(metrics.StabilityRating) + "\n")

	s.WriteString("\nGAINS\n")
	gains := []float64{m.pid.Kp, m.pid.Ki, m.pid.Kd}
	for i, name := range tunable {
		line := fmt.Sprintf("%-4s %8.3f", name, gains[i])
		if i == m.selected {
			s.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n" + disabledStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("C:Control R:Restart Q:Quit\nTab:Gain ↑↓:Tune ←→:Target ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

// draw paints a side view of the pendulum and a top view of the arm.
func (m Model) draw() {
	m.canvas.Clear()
	pw, ph := m.canvas.PixelSize()

	// side view: pendulum hanging from a fixed pivot, phi measured
	// from straight down
	px, py := pw/4, ph/4
	length := float64(ph) / 2.5
	phi := m.latest.PendulumAngle
	bx := px + int(length*math.Sin(phi))
	by := py + int(length*math.Cos(phi))
	m.canvas.Circle(px, py, 1)
	m.canvas.Line(px, py, bx, by)
	m.canvas.Circle(bx, by, 2)

	// top view: the arm seen from above
	cx, cy := 3*pw/4, ph/2
	radius := float64(ph) / 3
	theta := m.latest.ArmAngle
	ax := cx + int(radius*math.Cos(theta))
	ay := cy - int(radius*math.Sin(theta))
	m.canvas.Circle(cx, cy, int(radius))
	m.canvas.Line(cx, cy, ax, ay)
	m.canvas.Circle(ax, ay, 1)
}

const helpText = `
  C          - Toggle the balance controller
  R          - Reset and restart the experiment
  Tab        - Select kp, ki or kd
  Up/Down    - Tune the selected gain by 5%
  Left/Right - Move the target angle by 0.05 rad
  Q          - Quit`

// Run blocks on the live monitor until the user quits.
func Run(exp *experiment.Experiment) error {
	model := NewModel(exp)
	defer exp.Unsubscribe(model.sub)
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
