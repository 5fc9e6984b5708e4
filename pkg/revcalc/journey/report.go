package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// Step names one stage of the journey.
type Step string

const (
	StepOpen           Step = "open-session"
	StepWindow         Step = "set-window-size"
	StepNavigate       Step = "navigate"
	StepOpenCalculator Step = "open-calculator"
	StepMoveSlider     Step = "move-slider"
	StepFillInput      Step = "fill-slider-input"
	StepSelectCPT      Step = "select-cpt"
	StepCheckTotal     Step = "check-total"
)

// StepError is a failure inside one journey step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrAttemptsExhausted is returned by Run when no attempt completed.
var ErrAttemptsExhausted = errors.New("all attempts failed")

// Kind classifies an error for reporting: a short name for the failures the
// journey knows about, otherwise the Go type of the innermost cause.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, driver.ErrUnsupportedBrowser):
		return "unsupported-browser"
	case errors.Is(err, driver.ErrUnsupportedBackend):
		return "unsupported-backend"
	case errors.Is(err, driver.ErrDriverUnavailable):
		return "driver-unavailable"
	case errors.Is(err, driver.ErrElementNotFound):
		return "element-not-found"
	case errors.Is(err, driver.ErrTimeout):
		return "timeout"
	case errors.Is(err, revcalc.ErrNotConverged):
		return "not-converged"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline-exceeded"
	}
	return fmt.Sprintf("%T", rootCause(err))
}

func rootCause(err error) error {
	for {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[len(errs)-1]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
}

// Status is the outcome of one attempt.
type Status string

const (
	// StatusCompleted means every step ran. Checks may still mismatch.
	StatusCompleted Status = "completed"
	// StatusFailed means a step failed and the attempt may be retried.
	StatusFailed Status = "failed"
	// StatusFatal means the failure stopped the run.
	StatusFatal Status = "fatal"
)

// Attempt records one try at the journey.
type Attempt struct {
	Number     int             `json:"number"`
	Status     Status          `json:"status"`
	Step       Step            `json:"step,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Checks     []revcalc.Check `json:"checks,omitempty"`
	Screenshot string          `json:"screenshot,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
}

// Report is the result of a Run.
type Report struct {
	RunID      string    `json:"run_id"`
	Scenario   string    `json:"scenario"`
	URL        string    `json:"url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     bool      `json:"passed"`
	Attempts   []Attempt `json:"attempts"`
}

// Last returns the final attempt, or nil if none ran.
func (r *Report) Last() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Mismatches returns the unmatched checks of the completed attempt.
func (r *Report) Mismatches() []revcalc.Check {
	last := r.Last()
	if !r.Passed || last == nil {
		return nil
	}
	var out []revcalc.Check
	for _, c := range last.Checks {
		if !c.Matched {
			out = append(out, c)
		}
	}
	return out
}

// WriteJSON encodes the report, indented.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes the report as JSON to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
