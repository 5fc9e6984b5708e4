package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/config"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/journey"
)

// openSessions builds the opener the runner starts each attempt's browser
// with.
var openSessions = journey.DriverOpener

// exitError carries a specific process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, driver.ErrUnsupportedBrowser):
		return 2
	default:
		return 1
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "revcalc: %v\n", err)
	}
	return exitCode(err)
}

type flags struct {
	configPath    string
	envFile       string
	scenario      string
	scenariosFile string
	browser       string
	backend       string
	headless      bool
	url           string
	timeout       time.Duration
	attempts      int
	artifacts     string
	report        string
	strict        bool
	verbose       bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}

	runE := func(cmd *cobra.Command, _ []string) error {
		return run(cmd, f, stdout, stderr)
	}

	root := &cobra.Command{
		Use:           "revcalc",
		Short:         "Verify the revenue calculator journey in a real browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runE,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	defaults := config.Default()
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file with REVCALC_* overrides (skipped if missing)")
	pf.StringVar(&f.scenario, "scenario", defaults.Scenario, "scenario to run")
	pf.StringVar(&f.scenariosFile, "scenarios", "", "YAML scenario table replacing the built-in one")
	pf.StringVar(&f.browser, "browser", defaults.Browser.Name, "browser: chrome, chromium or edge")
	pf.StringVar(&f.backend, "backend", defaults.Browser.Backend, "CDP backend: rod or chromedp")
	pf.BoolVar(&f.headless, "headless", defaults.Browser.Headless, "run without a browser window")
	pf.StringVar(&f.url, "url", "", "override the scenario URL")
	pf.DurationVar(&f.timeout, "timeout", defaults.Browser.Timeout, "explicit wait for element operations")
	pf.IntVar(&f.attempts, "attempts", defaults.Run.Attempts, "maximum journey attempts")
	pf.StringVar(&f.artifacts, "artifacts", "", "directory for failure screenshots")
	pf.StringVar(&f.report, "report", "", "write a JSON report to this path")
	pf.BoolVar(&f.strict, "strict", false, "exit non-zero on failed runs or mismatched checks")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run a scenario (the default command)",
			Args:  cobra.NoArgs,
			RunE:  runE,
		},
		&cobra.Command{
			Use:   "scenarios",
			Short: "List the scenario table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd, f)
				if err != nil {
					return err
				}
				scenarios, err := cfg.Scenarios()
				if err != nil {
					return err
				}
				printScenarios(stdout, scenarios)
				return nil
			},
		},
	)
	return root
}

// loadConfig layers defaults, the config file, the environment and then
// explicitly set flags.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	if err := config.LoadEnv(f.envFile); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	set := cmd.Flags().Changed
	if set("scenario") {
		cfg.Scenario = f.scenario
	}
	if set("scenarios") {
		cfg.ScenariosFile = f.scenariosFile
	}
	if set("browser") {
		cfg.Browser.Name = f.browser
	}
	if set("backend") {
		cfg.Browser.Backend = f.backend
	}
	if set("headless") {
		cfg.Browser.Headless = f.headless
	}
	if set("url") {
		cfg.URL = f.url
	}
	if set("timeout") {
		cfg.Browser.Timeout = f.timeout
	}
	if set("attempts") {
		cfg.Run.Attempts = f.attempts
	}
	if set("artifacts") {
		cfg.Run.ArtifactsDir = f.artifacts
	}
	if set("report") {
		cfg.Run.Report = f.report
	}
	if set("strict") {
		cfg.Run.Strict = f.strict
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core).Named("revcalc")
}

func run(cmd *cobra.Command, f *flags, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc, err := cfg.ResolveScenario()
	if err != nil {
		return err
	}

	logger := newLogger(stderr, f.verbose)
	defer logger.Sync() //nolint:errcheck

	opts := append(cfg.RunnerOptions(logger),
		journey.WithOpener(openSessions(cfg.DriverOptions(logger))),
		journey.WithOnCheck(func(_ int, c revcalc.Check) {
			fmt.Fprintln(stdout, c)
		}),
	)
	runner, err := journey.NewRunner(opts...)
	if err != nil {
		return err
	}

	rep, runErr := runner.Run(cmd.Context(), sc)
	if rep != nil {
		printSummary(stdout, rep)
		if cfg.Run.Report != "" {
			if err := rep.WriteFile(cfg.Run.Report); err != nil {
				return err
			}
		}
	}

	switch {
	case runErr == nil:
		if n := len(rep.Mismatches()); n > 0 && cfg.Run.Strict {
			return &exitError{code: 1, err: fmt.Errorf("%d check(s) mismatched", n)}
		}
		return nil
	case errors.Is(runErr, journey.ErrAttemptsExhausted) && !cfg.Run.Strict:
		// Exhausting the attempts is reported, not signalled.
		return nil
	default:
		return runErr
	}
}

func printSummary(w io.Writer, rep *journey.Report) {
	fmt.Fprintf(w, "\nRun %s (%s)\n", rep.RunID, rep.Scenario)
	for _, a := range rep.Attempts {
		line := fmt.Sprintf("  attempt %d: %s in %v", a.Number, a.Status, a.Duration.Round(time.Millisecond))
		if a.Error != "" {
			line += fmt.Sprintf(" [%s at %s] %s", a.ErrorKind, a.Step, a.Error)
		}
		if a.Screenshot != "" {
			line += " screenshot=" + a.Screenshot
		}
		fmt.Fprintln(w, line)
	}
	switch {
	case rep.Passed && len(rep.Mismatches()) == 0:
		fmt.Fprintln(w, "Result: PASS")
	case rep.Passed:
		fmt.Fprintf(w, "Result: COMPLETED with %d mismatch(es)\n", len(rep.Mismatches()))
	default:
		fmt.Fprintf(w, "Result: FAIL after %d attempt(s)\n", len(rep.Attempts))
	}
}

func printScenarios(w io.Writer, scenarios []revcalc.Scenario) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL\tSLIDER\tFILL\tCPT CODES\tEXPECTED")
	for _, s := range scenarios {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\n",
			s.Name, s.URL, s.SliderTarget, s.FillValue, s.CPTCodes, s.ExpectedTotal)
	}
	tw.Flush()
}
