// Package config assembles the run configuration: compiled-in defaults,
// an optional YAML file, then .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/journey"
)

// Environment variables read by ApplyEnv.
const (
	EnvURL      = "REVCALC_URL"
	EnvBrowser  = "REVCALC_BROWSER"
	EnvBackend  = "REVCALC_BACKEND"
	EnvHeadless = "REVCALC_HEADLESS"
	EnvTimeout  = "REVCALC_TIMEOUT"
	EnvScenario = "REVCALC_SCENARIO"
	EnvAttempts = "REVCALC_ATTEMPTS"
)

// Config is everything a run needs.
type Config struct {
	// Scenario names the row of the scenario table to run.
	Scenario string `yaml:"scenario"`

	// ScenariosFile replaces the built-in scenario table.
	ScenariosFile string `yaml:"scenarios_file"`

	// URL, if set, overrides the scenario's URL.
	URL string `yaml:"url"`

	Browser BrowserConfig `yaml:"browser"`
	Slider  SliderConfig  `yaml:"slider"`
	Run     RunConfig     `yaml:"run"`
}

// BrowserConfig selects and tunes the browser session.
type BrowserConfig struct {
	Name              string        `yaml:"name"`
	Backend           string        `yaml:"backend"`
	Headless          bool          `yaml:"headless"`
	Timeout           time.Duration `yaml:"timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	BinPath           string        `yaml:"bin_path"`
	Flags             []string      `yaml:"flags"`
	WindowWidth       int           `yaml:"window_width"`
	WindowHeight      int           `yaml:"window_height"`
}

// SliderConfig is the slider stepping policy.
type SliderConfig struct {
	Tolerance int           `yaml:"tolerance"`
	StepUp    int           `yaml:"step_up"`
	StepDown  int           `yaml:"step_down"`
	MaxNudges int           `yaml:"max_nudges"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RunConfig controls retries and outputs.
type RunConfig struct {
	Attempts     int           `yaml:"attempts"`
	StepPause    time.Duration `yaml:"step_pause"`
	ArtifactsDir string        `yaml:"artifacts_dir"`
	Report       string        `yaml:"report"`
	Strict       bool          `yaml:"strict"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	d := driver.DefaultOptions()
	s := revcalc.DefaultSliderConfig()
	return Config{
		Scenario: revcalc.DefaultScenarioName,
		Browser: BrowserConfig{
			Name:              d.Browser,
			Backend:           string(d.Backend),
			Headless:          d.Headless,
			Timeout:           d.Timeout,
			NavigationTimeout: d.NavigationTimeout,
			WindowWidth:       1920,
			WindowHeight:      1080,
		},
		Slider: SliderConfig{
			Tolerance: s.Tolerance,
			StepUp:    s.StepUp,
			StepDown:  s.StepDown,
			MaxNudges: s.MaxNudges,
			Timeout:   s.Timeout,
		},
		Run: RunConfig{
			Attempts:  journey.DefaultMaxAttempts,
			StepPause: journey.DefaultStepPause,
		},
	}
}

// Load reads a YAML file over the defaults. Fields the file omits keep
// their default values; unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads .env-style files into the process environment without
// overwriting variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, name := range files {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the REVCALC_* variables. lookup is
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvBrowser); ok && v != "" {
		c.Browser.Name = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Browser.Backend = v
	}
	if v, ok := lookup(EnvScenario); ok && v != "" {
		c.Scenario = v
	}
	if v, ok := lookup(EnvHeadless); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		c.Browser.Headless = b
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Browser.Timeout = d
	}
	if v, ok := lookup(EnvAttempts); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAttempts, err)
		}
		c.Run.Attempts = n
	}
	return nil
}

// Validate checks the configuration before any browser is started.
// An unsupported browser name is reported as driver.ErrUnsupportedBrowser.
func (c Config) Validate() error {
	if c.Scenario == "" {
		return errors.New("scenario must be set")
	}
	if _, err := driver.ParseBrowser(c.Browser.Name); err != nil {
		return err
	}
	switch driver.Backend(c.Browser.Backend) {
	case driver.BackendRod, driver.BackendChromedp, "":
	default:
		return fmt.Errorf("%w: %q", driver.ErrUnsupportedBackend, c.Browser.Backend)
	}
	if c.Browser.Timeout < 0 || c.Browser.NavigationTimeout < 0 {
		return errors.New("browser timeouts must not be negative")
	}
	if c.Browser.WindowWidth < 0 || c.Browser.WindowHeight < 0 {
		return errors.New("window size must not be negative")
	}
	if c.Run.Attempts <= 0 {
		return errors.New("attempts must be positive")
	}
	if c.Run.StepPause < 0 {
		return errors.New("step pause must not be negative")
	}
	return c.SliderPolicy().Validate()
}

// SliderPolicy converts the slider section.
func (c Config) SliderPolicy() revcalc.SliderConfig {
	return revcalc.SliderConfig{
		Tolerance: c.Slider.Tolerance,
		StepUp:    c.Slider.StepUp,
		StepDown:  c.Slider.StepDown,
		MaxNudges: c.Slider.MaxNudges,
		Timeout:   c.Slider.Timeout,
	}
}

// DriverOptions converts the browser section.
func (c Config) DriverOptions(logger *zap.Logger) driver.Options {
	return driver.Options{
		Browser:           c.Browser.Name,
		Backend:           driver.Backend(c.Browser.Backend),
		Headless:          c.Browser.Headless,
		Timeout:           c.Browser.Timeout,
		NavigationTimeout: c.Browser.NavigationTimeout,
		BinPath:           c.Browser.BinPath,
		Flags:             c.Browser.Flags,
		Logger:            logger,
	}
}

// RunnerOptions returns the journey options for this configuration.
func (c Config) RunnerOptions(logger *zap.Logger) []journey.Option {
	return []journey.Option{
		journey.WithOpener(journey.DriverOpener(c.DriverOptions(logger))),
		journey.WithLogger(logger),
		journey.WithMaxAttempts(c.Run.Attempts),
		journey.WithStepPause(c.Run.StepPause),
		journey.WithSliderConfig(c.SliderPolicy()),
		journey.WithWindowSize(c.Browser.WindowWidth, c.Browser.WindowHeight),
		journey.WithArtifactsDir(c.Run.ArtifactsDir),
	}
}

// Scenarios returns the scenario table: the configured file, or the
// built-in table.
func (c Config) Scenarios() ([]revcalc.Scenario, error) {
	if c.ScenariosFile == "" {
		return revcalc.DefaultScenarios(), nil
	}
	f, err := os.Open(c.ScenariosFile)
	if err != nil {
		return nil, fmt.Errorf("open scenarios: %w", err)
	}
	defer f.Close()
	return revcalc.LoadScenarios(f)
}

// ResolveScenario returns the selected scenario with the URL override
// applied.
func (c Config) ResolveScenario() (revcalc.Scenario, error) {
	scenarios, err := c.Scenarios()
	if err != nil {
		return revcalc.Scenario{}, err
	}
	sc, err := revcalc.FindScenario(scenarios, c.Scenario)
	if err != nil {
		return revcalc.Scenario{}, err
	}
	if c.URL != "" {
		sc.URL = c.URL
	}
	return sc, nil
}
