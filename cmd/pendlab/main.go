package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/pendlab/internal/automation"
	"github.com/san-kum/pendlab/internal/config"
	"github.com/san-kum/pendlab/internal/control"
	"github.com/san-kum/pendlab/internal/dynamo"
	"github.com/san-kum/pendlab/internal/experiment"
	"github.com/san-kum/pendlab/internal/optim"
	"github.com/san-kum/pendlab/internal/store"
	"github.com/san-kum/pendlab/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	controller string

	dt        float64
	duration  float64
	phi       float64
	phiDot    float64
	seed      int64
	kp        float64
	ki        float64
	kd        float64
	target    float64
	noControl bool

	pngPrefix string
	outFile   string

	kpGrid       []float64
	kiGrid       []float64
	kdGrid       []float64
	tuneDuration float64
	trials       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pendlab",
		Short: "rotary inverted pendulum simulation lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pendlab", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an experiment to completion and save it",
		RunE:  runExperiment,
	}
	addExperimentFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run an experiment with the live terminal monitor",
		RunE:  runLive,
	}
	addExperimentFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPrefix, "png", "", "write PNG plots with this path prefix")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure simulation throughput",
		RunE:  benchLoop,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search pid gains for the lowest rms error",
		RunE:  tuneGains,
	}
	addExperimentFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&kpGrid, "kp-grid", []float64{4, 10, 25}, "kp candidates")
	tuneCmd.Flags().Float64SliceVar(&kiGrid, "ki-grid", []float64{0.05, 0.1}, "ki candidates")
	tuneCmd.Flags().Float64SliceVar(&kdGrid, "kd-grid", []float64{2, 5, 8}, "kd candidates")
	tuneCmd.Flags().Float64Var(&tuneDuration, "eval-time", 10, "simulated seconds per grid point")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted experiment sequence",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	addExperimentFlags(scenarioCmd)

	robustnessCmd := &cobra.Command{
		Use:   "robustness",
		Short: "monte carlo trials from random deflections",
		RunE:  runRobustness,
	}
	addExperimentFlags(robustnessCmd)
	robustnessCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, presetsCmd, benchCmd,
		tuneCmd, scenarioCmd, robustnessCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset configuration name")
	cmd.Flags().Float64Var(&dt, "dt", def.Dt, "timestep in seconds")
	cmd.Flags().Float64Var(&duration, "time", def.Duration, "duration in seconds")
	cmd.Flags().Float64Var(&phi, "phi", 0.1, "initial pendulum angle")
	cmd.Flags().Float64Var(&phiDot, "phi-dot", 0, "initial pendulum velocity")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().Float64Var(&kp, "kp", def.PID.Kp, "pid proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", def.PID.Ki, "pid integral gain")
	cmd.Flags().Float64Var(&kd, "kd", def.PID.Kd, "pid derivative gain")
	cmd.Flags().Float64Var(&target, "target", 0, "pendulum target angle")
	cmd.Flags().BoolVar(&noControl, "no-control", false, "run without the controller")
	cmd.Flags().StringVar(&controller, "controller", "pid", "control law (pid, lqr)")
}

// buildConfig layers preset, config file and flags, flags winning.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("phi") || flags.Changed("phi-dot") {
		cfg.InitState = config.InitStateConfig{PendulumAngle: phi, PendulumVelocity: phiDot}
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("kp") {
		cfg.PID.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.PID.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.PID.Kd = kd
	}
	if flags.Changed("target") {
		cfg.TargetAngle = target
	}
	if flags.Changed("no-control") {
		cfg.Control = !noControl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newExperiment(cfg *config.Config, paced bool) (*experiment.Experiment, error) {
	ec := cfg.Experiment()
	ec.Sim.Paced = paced
	exp, err := experiment.New(ec)
	if err != nil {
		return nil, err
	}
	switch controller {
	case "", "pid":
	case "lqr":
		exp.SetController(control.NewBalanceLQR())
	default:
		return nil, fmt.Errorf("unknown controller: %s (pid, lqr)", controller)
	}
	exp.SetTargetAngle(cfg.TargetAngle)
	if cfg.Control {
		exp.EnableControl()
	}
	return exp, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := newExperiment(cfg, false)
	if err != nil {
		return err
	}

	fmt.Printf("running %.1fs at dt=%.4gs...\n", cfg.Duration, cfg.Dt)
	start := time.Now()
	runErr := exp.RunFor(context.Background(), cfg.Duration)
	if runErr != nil && !errors.Is(runErr, dynamo.ErrDiverged) {
		return runErr
	}
	elapsed := time.Since(start)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	metrics := exp.Metrics()
	runID, err := st.Save(store.RunMetadata{
		Seed:     cfg.Seed,
		Dt:       cfg.Dt,
		Physics:  cfg.Physics,
		Actuator: cfg.Actuator,
		Encoder:  cfg.Encoder,
		PID:      cfg.PID,
		Metrics:  metrics,
	}, exp.Log().All())
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	if runErr != nil {
		fmt.Printf("halted early: %v\n", runErr)
	}
	fmt.Println("\nmetrics:")
	fmt.Printf("  rms error:      %.6f rad\n", metrics.RMSError)
	fmt.Printf("  max deviation:  %.6f rad\n", metrics.MaxDeviation)
	fmt.Printf("  control effort: %.6f Nm\n", metrics.ControlEffort)
	fmt.Printf("  uptime:         %.1f%%\n", metrics.UptimePercent)
	if metrics.SettlingTime != nil {
		fmt.Printf("  settling time:  %.2fs\n", *metrics.SettlingTime)
	}
	fmt.Printf("  rating:         %s\n", metrics.StabilityRating)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := newExperiment(cfg, true)
	if err != nil {
		return err
	}
	if err := exp.Start(context.Background()); err != nil {
		return err
	}
	defer exp.Reset()

	return viz.Run(exp)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDT\tRMS\tRATING")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.4fs\t%.4f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Metrics.RMSError,
			run.Metrics.StabilityRating,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := store.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	log, err := st.LoadLog(runID)
	if err != nil {
		return err
	}
	if len(log) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(log))

	traces := []struct {
		caption string
		pick    func(dynamo.Snapshot) float64
	}{
		{"pendulum angle (rad)", func(s dynamo.Snapshot) float64 { return s.PendulumAngle }},
		{"arm angle (rad)", func(s dynamo.Snapshot) float64 { return s.ArmAngle }},
		{"motor torque (Nm)", func(s dynamo.Snapshot) float64 { return s.MotorTorque }},
	}
	for _, tr := range traces {
		data := make([]float64, len(log))
		for i, s := range log {
			data[i] = tr.pick(s)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(tr.caption),
		))
		fmt.Println()
	}

	if pngPrefix != "" {
		if err := viz.SaveAnglePlot(pngPrefix+"_angles.png", log); err != nil {
			return err
		}
		if err := viz.SaveTorquePlot(pngPrefix+"_torque.png", log); err != nil {
			return err
		}
		fmt.Printf("wrote %s_angles.png and %s_torque.png\n", pngPrefix, pngPrefix)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := store.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	log, err := st.LoadLog(runID)
	if err != nil {
		return err
	}

	if outFile != "" {
		if err := store.ExportJSON(outFile, *meta, log); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
		return nil
	}
	return store.ExportJSONStdout(*meta, log)
}

func benchLoop(cmd *cobra.Command, args []string) error {
	durations := []float64{1, 5, 10}
	dts := []float64{1.0 / 120, 1.0 / 240, 1.0 / 480}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIM TIME\tDT\tSTEPS\tWALL TIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, step := range dts {
			cfg := config.DefaultConfig()
			cfg.Dt = step
			cfg.Seed = 42
			cfg.LogCapacity = int(dur/step) + 16
			cfg.InitState = config.InitStateConfig{PendulumAngle: 0.1}

			exp, err := newExperiment(cfg, false)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := exp.RunFor(context.Background(), dur); err != nil {
				return err
			}
			elapsed := time.Since(start)
			steps := exp.Log().Len()

			fmt.Fprintf(w, "%.0fs\t%.4fs\t%d\t%v\t%.0f\n",
				dur, step, steps, elapsed.Round(time.Millisecond),
				float64(steps)/elapsed.Seconds())
		}
	}
	return w.Flush()
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	g := &optim.GridSearch{Kp: kpGrid, Ki: kiGrid, Kd: kdGrid, Duration: tuneDuration}
	points := len(kpGrid) * len(kiGrid) * len(kdGrid)
	fmt.Printf("evaluating %d grid points, %.0fs each...\n", points, tuneDuration)

	res, err := g.Search(context.Background(), cfg.Experiment())
	if err != nil {
		return err
	}

	fmt.Printf("\nbest gains: kp=%g ki=%g kd=%g\n", res.Params.Kp, res.Params.Ki, res.Params.Kd)
	fmt.Printf("rms error:  %.6f rad\n", res.Metrics.RMSError)
	fmt.Printf("rating:     %s\n", res.Metrics.StabilityRating)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}

	results, err := automation.RunScenario(context.Background(), cfg, scenario)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRMS\tUPTIME\tRATING\tNOTE")
	for _, r := range results {
		note := ""
		if r.Err != nil {
			note = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.1f%%\t%s\t%s\n",
			r.Name, r.Metrics.RMSError, r.Metrics.UptimePercent,
			r.Metrics.StabilityRating, note)
	}
	return w.Flush()
}

func runRobustness(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("running %d trials of %.0fs...\n", trials, cfg.Duration)
	results, err := automation.RunMonteCarlo(context.Background(), cfg, automation.MonteCarloConfig{
		Trials:       trials,
		Perturbation: cfg.InitState.Perturbation,
		Duration:     cfg.Duration,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return err
	}

	stable, unstable := automation.StableCount(results)
	fmt.Printf("stable:   %d/%d\n", stable, len(results))
	if unstable > 0 {
		fmt.Printf("unstable: %d\n", unstable)
		for _, r := range results {
			if !r.Stable {
				fmt.Printf("  trial %d: start %+.4f rad, end %+.4f rad\n",
					r.Trial, r.InitialAngle, r.FinalAngle)
			}
		}
	}
	return nil
}
