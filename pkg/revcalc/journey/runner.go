// Package journey runs the revenue calculator journey against a browser
// session, retrying failed attempts with a fresh session each time.
package journey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/pages"
)

const (
	// DefaultMaxAttempts is how many times a journey is tried by default.
	DefaultMaxAttempts = 5

	// DefaultStepPause is the default pause after each CPT selection.
	DefaultStepPause = 200 * time.Millisecond

	screenshotTimeout = 10 * time.Second
)

// Runner sequences the page actions of one scenario and retries the whole
// journey on failure. A Runner may be reused across runs.
type Runner struct {
	open         Opener
	maxAttempts  int
	logger       *zap.Logger
	artifactsDir string
	stepPause    time.Duration
	sliderConfig revcalc.SliderConfig
	width        int
	height       int
	onCheck      func(attempt int, check revcalc.Check)
}

// NewRunner creates a Runner.
//
// Example:
//
//	runner, err := journey.NewRunner(
//	    journey.WithOpener(journey.DriverOpener(opts)),
//	    journey.WithArtifactsDir("artifacts"),
//	)
func NewRunner(opts ...Option) (*Runner, error) {
	r := &Runner{
		open:         DriverOpener(driver.DefaultOptions()),
		maxAttempts:  DefaultMaxAttempts,
		logger:       zap.NewNop(),
		stepPause:    DefaultStepPause,
		sliderConfig: revcalc.DefaultSliderConfig(),
		width:        1920,
		height:       1080,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run executes the scenario up to the configured number of attempts, with
// no delay between them. It stops at the first attempt that completes every
// step; mismatched checks do not fail an attempt.
//
// The returned Report is never nil once the scenario is valid. Run returns
// an error when the context ends, when a failure is fatal (the browser or
// backend cannot be used) or, wrapping ErrAttemptsExhausted, when every
// attempt failed.
func (r *Runner) Run(ctx context.Context, sc revcalc.Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:     uuid.NewString(),
		Scenario:  sc.Name,
		URL:       sc.URL,
		StartedAt: time.Now(),
	}
	logger := r.logger.With(zap.String("run_id", rep.RunID), zap.String("scenario", sc.Name))

	var lastErr error
	for n := 1; n <= r.maxAttempts; n++ {
		logger.Info("starting attempt", zap.Int("attempt", n), zap.Int("max_attempts", r.maxAttempts))

		a, err := r.attempt(ctx, logger, rep.RunID, n, sc)
		rep.Attempts = append(rep.Attempts, a)
		if err == nil {
			rep.Passed = true
			rep.FinishedAt = time.Now()
			logger.Info("journey completed", zap.Int("attempt", n), zap.Duration("duration", a.Duration))
			return rep, nil
		}
		lastErr = err

		logger.Warn("attempt failed",
			zap.Int("attempt", n),
			zap.String("step", string(a.Step)),
			zap.String("kind", a.ErrorKind),
			zap.Error(err))

		if ctxErr := ctx.Err(); ctxErr != nil {
			rep.FinishedAt = time.Now()
			return rep, ctxErr
		}
		if driver.IsFatal(err) {
			rep.FinishedAt = time.Now()
			return rep, err
		}
	}

	rep.FinishedAt = time.Now()
	logger.Error("giving up", zap.Int("attempts", r.maxAttempts), zap.Error(lastErr))
	return rep, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, r.maxAttempts, lastErr)
}

func (r *Runner) attempt(ctx context.Context, logger *zap.Logger, runID string, n int, sc revcalc.Scenario) (Attempt, error) {
	a := Attempt{Number: n}
	logger = logger.With(zap.Int("attempt", n))

	start := time.Now()
	err := r.journey(ctx, logger, runID, &a, sc)
	a.Duration = time.Since(start)

	if err == nil {
		a.Status = StatusCompleted
		return a, nil
	}

	a.Status = StatusFailed
	if driver.IsFatal(err) {
		a.Status = StatusFatal
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		a.Step = stepErr.Step
	}
	a.ErrorKind = Kind(err)
	a.Error = err.Error()
	return a, err
}

// journey is one attempt. The session is released on every path; a
// screenshot is taken first when the attempt fails.
func (r *Runner) journey(ctx context.Context, logger *zap.Logger, runID string, a *Attempt, sc revcalc.Scenario) (err error) {
	sess, err := r.open(ctx)
	if err != nil {
		return &StepError{Step: StepOpen, Err: err}
	}
	defer func() {
		if err != nil && r.artifactsDir != "" {
			a.Screenshot = r.screenshot(ctx, logger, sess, runID, a.Number)
		}
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("close session", zap.Error(cerr))
		}
	}()

	slider, err := revcalc.NewSlider(r.sliderConfig, nil)
	if err != nil {
		return err
	}
	home := pages.NewHomePage(sess, logger)
	revenue := pages.NewRevenuePage(sess, slider, logger)

	record := func(c revcalc.Check) {
		a.Checks = append(a.Checks, c)
		logger.Info("check",
			zap.String("name", string(c.Name)),
			zap.String("expected", c.Expected),
			zap.String("actual", c.Actual),
			zap.Bool("matched", c.Matched))
		if r.onCheck != nil {
			r.onCheck(a.Number, c)
		}
	}

	if err := sess.SetWindowSize(ctx, r.width, r.height); err != nil {
		return &StepError{Step: StepWindow, Err: err}
	}
	if err := sess.Navigate(ctx, sc.URL); err != nil {
		return &StepError{Step: StepNavigate, Err: err}
	}
	if err := home.ClickRevenueCalculator(ctx); err != nil {
		return &StepError{Step: StepOpenCalculator, Err: err}
	}

	check, err := revenue.MoveSlider(ctx, sc.SliderTarget.Int())
	if err != nil {
		return &StepError{Step: StepMoveSlider, Err: err}
	}
	record(check)

	check, err = revenue.FillSliderInput(ctx, sc.FillValue)
	if err != nil {
		return &StepError{Step: StepFillInput, Err: err}
	}
	record(check)

	for _, code := range sc.CPTCodes {
		if err := revenue.SelectCPT(ctx, code); err != nil {
			return &StepError{Step: StepSelectCPT, Err: err}
		}
		if err := sleep(ctx, r.stepPause); err != nil {
			return &StepError{Step: StepSelectCPT, Err: err}
		}
	}

	check, err = revenue.CheckTotal(ctx, sc.ExpectedTotal)
	if err != nil {
		return &StepError{Step: StepCheckTotal, Err: err}
	}
	record(check)
	return nil
}

// screenshot saves the current page and returns the file path, or "" if
// capturing failed. It runs even when ctx has ended.
func (r *Runner) screenshot(ctx context.Context, logger *zap.Logger, sess driver.Session, runID string, n int) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	img, err := sess.Screenshot(ctx)
	if err != nil {
		logger.Warn("capture screenshot", zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(r.artifactsDir, 0o755); err != nil {
		logger.Warn("create artifacts dir", zap.Error(err))
		return ""
	}
	path := filepath.Join(r.artifactsDir, fmt.Sprintf("%s-attempt-%d.png", runID, n))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		logger.Warn("write screenshot", zap.Error(err))
		return ""
	}
	logger.Info("saved screenshot", zap.String("path", path))
	return path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
