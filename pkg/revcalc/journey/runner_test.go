package journey_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/journey"
	"github.com/thesyncim/revcalc/pkg/revcalc/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixtureScenario() revcalc.Scenario {
	return revcalc.Scenario{
		Name:          "fixture",
		URL:           "http://calculator.test/",
		SliderTarget:  820,
		FillValue:     "560",
		CPTCodes:      []string{"99091", "99453", "99454", "99474"},
		ExpectedTotal: "$75600",
	}
}

// sessions hands out one simulated calculator per attempt. setup, if set,
// can break the nth session (1-based).
type sessions struct {
	mu    sync.Mutex
	setup func(n int, calc *testutil.Calculator)
	calcs []*testutil.Calculator
}

func (s *sessions) open(ctx context.Context) (driver.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	calc := testutil.NewCalculator(testutil.DefaultCalculatorConfig())
	s.calcs = append(s.calcs, calc)
	if s.setup != nil {
		s.setup(len(s.calcs), calc)
	}
	return calc, nil
}

func newRunner(t *testing.T, s *sessions, opts ...journey.Option) *journey.Runner {
	t.Helper()
	base := []journey.Option{
		journey.WithOpener(s.open),
		journey.WithLogger(zaptest.NewLogger(t)),
		journey.WithStepPause(0),
	}
	r, err := journey.NewRunner(append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func assertAllClosed(t *testing.T, s *sessions) {
	t.Helper()
	for i, calc := range s.calcs {
		assert.Equal(t, 1, calc.Closed(), "session %d", i+1)
	}
}

func TestRunner_PassesFirstAttempt(t *testing.T) {
	s := &sessions{}
	rep, err := newRunner(t, s).Run(context.Background(), fixtureScenario())
	require.NoError(t, err)

	assert.True(t, rep.Passed)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "fixture", rep.Scenario)
	require.Len(t, rep.Attempts, 1)

	a := rep.Attempts[0]
	assert.Equal(t, journey.StatusCompleted, a.Status)
	assert.Empty(t, a.Error)
	require.Len(t, a.Checks, 3)
	assert.Equal(t, revcalc.CheckSlider, a.Checks[0].Name)
	assert.Equal(t, revcalc.CheckSliderInput, a.Checks[1].Name)
	assert.Equal(t, revcalc.CheckTotal, a.Checks[2].Name)
	for _, c := range a.Checks {
		assert.True(t, c.Matched, c.String())
	}
	assert.Empty(t, rep.Mismatches())
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	require.Len(t, s.calcs, 1)
	assert.Equal(t, 1920, s.calcs[0].Width)
	assert.Equal(t, 1080, s.calcs[0].Height)
	assert.Equal(t, "http://calculator.test/", s.calcs[0].URL)
	assertAllClosed(t, s)
}

func TestRunner_SucceedsOnFifthAttempt(t *testing.T) {
	s := &sessions{setup: func(n int, calc *testutil.Calculator) {
		if n < 5 {
			calc.FailOn("Click", fmt.Errorf("%w: overlay in the way", driver.ErrTimeout))
		}
	}}

	rep, err := newRunner(t, s).Run(context.Background(), fixtureScenario())
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Attempts, 5)

	for _, a := range rep.Attempts[:4] {
		assert.Equal(t, journey.StatusFailed, a.Status)
		assert.Equal(t, journey.StepOpenCalculator, a.Step)
		assert.Equal(t, "timeout", a.ErrorKind)
		assert.Empty(t, a.Checks)
	}
	assert.Equal(t, journey.StatusCompleted, rep.Attempts[4].Status)
	assert.Len(t, s.calcs, 5)
	assertAllClosed(t, s)
}

func TestRunner_ExhaustsAttempts(t *testing.T) {
	s := &sessions{setup: func(_ int, calc *testutil.Calculator) {
		calc.FailOn("Navigate", errors.New("net::ERR_CONNECTION_REFUSED"))
	}}

	rep, err := newRunner(t, s).Run(context.Background(), fixtureScenario())
	require.Error(t, err)
	assert.ErrorIs(t, err, journey.ErrAttemptsExhausted)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")

	require.NotNil(t, rep)
	assert.False(t, rep.Passed)
	assert.Len(t, rep.Attempts, 5)
	assert.Equal(t, journey.StepNavigate, rep.Last().Step)
	assert.Equal(t, "*errors.errorString", rep.Last().ErrorKind)
	assertAllClosed(t, s)
}

func TestRunner_FatalStopsImmediately(t *testing.T) {
	var opened int
	open := func(context.Context) (driver.Session, error) {
		opened++
		return nil, fmt.Errorf("%w: no chrome binary", driver.ErrDriverUnavailable)
	}
	r, err := journey.NewRunner(journey.WithOpener(open), journey.WithStepPause(0))
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), fixtureScenario())
	assert.ErrorIs(t, err, driver.ErrDriverUnavailable)
	assert.NotErrorIs(t, err, journey.ErrAttemptsExhausted)
	assert.Equal(t, 1, opened)

	require.Len(t, rep.Attempts, 1)
	assert.Equal(t, journey.StatusFatal, rep.Attempts[0].Status)
	assert.Equal(t, journey.StepOpen, rep.Attempts[0].Step)
	assert.Equal(t, "driver-unavailable", rep.Attempts[0].ErrorKind)
}

func TestRunner_MismatchIsNotFailure(t *testing.T) {
	sc := fixtureScenario()
	sc.ExpectedTotal = "$110700"

	s := &sessions{}
	rep, err := newRunner(t, s).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Len(t, rep.Attempts, 1)

	mismatches := rep.Mismatches()
	require.Len(t, mismatches, 1)
	assert.Equal(t, "Expected: $110700, but got: $75600", mismatches[0].String())
}

func TestRunner_UnknownCPTCode(t *testing.T) {
	sc := fixtureScenario()
	sc.CPTCodes = []string{"99091", "00000"}

	s := &sessions{}
	rep, err := newRunner(t, s, journey.WithMaxAttempts(2)).Run(context.Background(), sc)
	assert.ErrorIs(t, err, journey.ErrAttemptsExhausted)
	assert.ErrorIs(t, err, driver.ErrElementNotFound)

	require.Len(t, rep.Attempts, 2)
	for _, a := range rep.Attempts {
		assert.Equal(t, journey.StepSelectCPT, a.Step)
		assert.Equal(t, "element-not-found", a.ErrorKind)
		assert.Contains(t, a.Error, "CPT-00000")
		// Slider and input checks were already made.
		assert.Len(t, a.Checks, 2)
	}
	assertAllClosed(t, s)
}

func TestRunner_ScreenshotOnFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s := &sessions{setup: func(n int, calc *testutil.Calculator) {
		if n == 1 {
			calc.FailOn("Navigate", errors.New("boom"))
		}
	}}

	rep, err := newRunner(t, s, journey.WithArtifactsDir(dir)).Run(context.Background(), fixtureScenario())
	require.NoError(t, err)
	require.Len(t, rep.Attempts, 2)

	shot := rep.Attempts[0].Screenshot
	require.NotEmpty(t, shot)
	assert.Equal(t, dir, filepath.Dir(shot))
	assert.Contains(t, filepath.Base(shot), rep.RunID)

	data, err := os.ReadFile(shot)
	require.NoError(t, err)
	assert.Equal(t, s.calcs[0].Shot, data)

	assert.Empty(t, rep.Attempts[1].Screenshot, "completed attempts are not captured")
}

func TestRunner_ScreenshotFailureIsLogged(t *testing.T) {
	s := &sessions{setup: func(_ int, calc *testutil.Calculator) {
		calc.FailOn("Navigate", errors.New("boom"))
		calc.FailOn("Screenshot", errors.New("target closed"))
	}}

	rep, err := newRunner(t, s, journey.WithMaxAttempts(1), journey.WithArtifactsDir(t.TempDir())).
		Run(context.Background(), fixtureScenario())
	require.Error(t, err)
	assert.Empty(t, rep.Attempts[0].Screenshot)
	assertAllClosed(t, s)
}

func TestRunner_OnCheck(t *testing.T) {
	var got []string
	hook := func(attempt int, c revcalc.Check) {
		got = append(got, fmt.Sprintf("%d %s", attempt, c))
	}

	_, err := newRunner(t, &sessions{}, journey.WithOnCheck(hook)).Run(context.Background(), fixtureScenario())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1 Expected: 820, matched with current value: 820",
		"1 Expected: 560, matched with current value: 560",
		"1 Expected: $75600, matched with current value: $75600",
	}, got)
}

func TestRunner_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &sessions{}
	rep, err := newRunner(t, s).Run(ctx, fixtureScenario())
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, rep.Attempts, 1)
	assert.Equal(t, "canceled", rep.Attempts[0].ErrorKind)
	assertAllClosed(t, s)
}

func TestRunner_StepPause(t *testing.T) {
	s := &sessions{}
	r := newRunner(t, s, journey.WithStepPause(journey.DefaultStepPause))

	rep, err := r.Run(context.Background(), fixtureScenario())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rep.Attempts[0].Duration, 4*journey.DefaultStepPause)
}

func TestRunner_InvalidScenario(t *testing.T) {
	sc := fixtureScenario()
	sc.ExpectedTotal = ""

	rep, err := newRunner(t, &sessions{}).Run(context.Background(), sc)
	assert.ErrorIs(t, err, revcalc.ErrInvalidScenario)
	assert.Nil(t, rep)
}

func TestNewRunner_RejectsBadOptions(t *testing.T) {
	bad := map[string]journey.Option{
		"nil opener":      journey.WithOpener(nil),
		"zero attempts":   journey.WithMaxAttempts(0),
		"negative pause":  journey.WithStepPause(-1),
		"negative window": journey.WithWindowSize(-1, 1080),
		"bad slider cfg":  journey.WithSliderConfig(revcalc.SliderConfig{}),
	}
	for name, opt := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := journey.NewRunner(opt)
			assert.Error(t, err)
		})
	}
}

func TestReport_JSON(t *testing.T) {
	rep, err := newRunner(t, &sessions{}).Run(context.Background(), fixtureScenario())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, rep.RunID, decoded["run_id"])
	assert.Equal(t, true, decoded["passed"])

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, rep.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), data)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&journey.StepError{Step: journey.StepMoveSlider, Err: &revcalc.ConvergenceError{}}, "not-converged"},
		{fmt.Errorf("%w: xpath=//a: %w", driver.ErrElementNotFound, context.DeadlineExceeded), "element-not-found"},
		{fmt.Errorf("wrap: %w", driver.ErrUnsupportedBrowser), "unsupported-browser"},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), "deadline-exceeded"},
		{fmt.Errorf("a: %w", &os.PathError{Op: "open", Path: "x", Err: errors.New("nope")}), "*errors.errorString"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, journey.Kind(tt.err), "%v", tt.err)
	}
}

func TestStepError(t *testing.T) {
	err := &journey.StepError{Step: journey.StepCheckTotal, Err: driver.ErrTimeout}
	assert.Equal(t, "check-total: wait timed out", err.Error())
	assert.ErrorIs(t, err, driver.ErrTimeout)
}
