package journey

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// Opener starts a browser session for one attempt.
type Opener func(ctx context.Context) (driver.Session, error)

// DriverOpener opens real browser sessions with opts.
func DriverOpener(opts driver.Options) Opener {
	return func(ctx context.Context) (driver.Session, error) {
		return driver.Open(ctx, opts)
	}
}

// Option configures a Runner.
type Option func(*Runner) error

// WithOpener sets how sessions are started.
// Default: DriverOpener(driver.DefaultOptions())
func WithOpener(open Opener) Option {
	return func(r *Runner) error {
		if open == nil {
			return errors.New("opener must not be nil")
		}
		r.open = open
		return nil
	}
}

// WithMaxAttempts sets how many times the journey is tried.
// Default: 5
func WithMaxAttempts(n int) Option {
	return func(r *Runner) error {
		if n <= 0 {
			return errors.New("max attempts must be positive")
		}
		r.maxAttempts = n
		return nil
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		r.logger = logger
		return nil
	}
}

// WithArtifactsDir makes failed attempts save a screenshot under dir.
// Default: "" (no screenshots)
func WithArtifactsDir(dir string) Option {
	return func(r *Runner) error {
		r.artifactsDir = dir
		return nil
	}
}

// WithStepPause sets the pause after each CPT checkbox click, giving the
// page time to recompute the total.
// Default: 200ms
func WithStepPause(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return errors.New("step pause must not be negative")
		}
		r.stepPause = d
		return nil
	}
}

// WithSliderConfig sets the slider stepping policy.
// Default: revcalc.DefaultSliderConfig()
func WithSliderConfig(cfg revcalc.SliderConfig) Option {
	return func(r *Runner) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.sliderConfig = cfg
		return nil
	}
}

// WithWindowSize sets the browser viewport. 0x0 maximizes the window.
// Default: 1920x1080
func WithWindowSize(width, height int) Option {
	return func(r *Runner) error {
		if width < 0 || height < 0 {
			return errors.New("window size must not be negative")
		}
		r.width, r.height = width, height
		return nil
	}
}

// WithOnCheck sets a callback invoked with every Check as it is made.
func WithOnCheck(fn func(attempt int, check revcalc.Check)) Option {
	return func(r *Runner) error {
		r.onCheck = fn
		return nil
	}
}
