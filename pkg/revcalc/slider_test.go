package revcalc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/internal"
	"github.com/thesyncim/revcalc/pkg/revcalc/testutil"
)

func newSlider(t *testing.T, cfg revcalc.SliderConfig, clock internal.Clock) *revcalc.Slider {
	t.Helper()
	s, err := revcalc.NewSlider(cfg, clock)
	require.NoError(t, err)
	return s
}

func TestSlider_ConvergesExactly(t *testing.T) {
	// 2 units per pixel: each +10px nudge moves 20, and 200 -> 820 is 31 nudges.
	ctrl := testutil.ScaledControl(200, 2)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err)

	assert.Equal(t, 820, res.Final)
	assert.Equal(t, 31, res.Nudges)
	assert.True(t, res.Matched())
	assert.Equal(t, "Expected: 820, matched with current value: 820", res.Check().String())
}

func TestSlider_SettlesWithinToleranceButMismatches(t *testing.T) {
	ctrl := testutil.ScaledControl(198, 2)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err, "landing inside tolerance is not an error")

	assert.Equal(t, 818, res.Final)
	assert.False(t, res.Matched())

	check := res.Check()
	assert.Equal(t, revcalc.CheckSlider, check.Name)
	assert.False(t, check.Matched)
	assert.Equal(t, "Expected: 820, but got: 818", check.String())
}

func TestSlider_AlreadyAtTarget(t *testing.T) {
	ctrl := testutil.IdealControl(818)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err)
	assert.Zero(t, res.Nudges)
	assert.Empty(t, ctrl.Nudges)
	assert.Equal(t, 818, res.Final)
}

func TestSlider_FineCorrectionFromAbove(t *testing.T) {
	ctrl := testutil.IdealControl(830)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err)

	// 830 down to 825 is still at the tolerance boundary; one more step
	// brings it inside.
	assert.Equal(t, 824, res.Final)
	assert.Equal(t, 6, res.Nudges)
	for _, d := range ctrl.Nudges {
		assert.Equal(t, -1, d)
	}
}

func TestSlider_OvershootThenCorrect(t *testing.T) {
	ctrl := testutil.OvershootControl(705, 30, -1)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err)
	assert.Equal(t, 824, res.Final)
	assert.Equal(t, []int{10, 10, 10, 10, -1}, ctrl.Nudges)
}

func TestSlider_LaggedReadings(t *testing.T) {
	// The loop only sees what the page reports; a late-rendering page makes
	// the true value run ahead of the reading it stops on.
	ctrl := testutil.LaggingControl(800, 3)
	s := newSlider(t, revcalc.DefaultSliderConfig(), nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.NoError(t, err)
	assert.Equal(t, 820, res.Final)
	assert.Equal(t, 5, res.Nudges)
	assert.Equal(t, 850, ctrl.Current)
}

func TestSlider_NudgeBoundFromBelow(t *testing.T) {
	cfg := revcalc.DefaultSliderConfig()
	s := newSlider(t, cfg, nil)

	for start := 0; start <= 900; start += 37 {
		for _, target := range []int{5, 100, 555, 820, 1000} {
			ctrl := testutil.IdealControl(start)

			res, err := s.Converge(context.Background(), ctrl, target)
			require.NoError(t, err, "start=%d target=%d", start, target)

			diff := res.Final - target
			if diff < 0 {
				diff = -diff
			}
			assert.Less(t, diff, cfg.Tolerance, "start=%d target=%d", start, target)

			// Coarse steps up, then at most StepUp single-unit steps back.
			bound := cfg.StepUp
			if start < target {
				bound += (target-start)/cfg.StepUp + 1
			} else {
				bound += start - target
			}
			assert.LessOrEqual(t, res.Nudges, bound, "start=%d target=%d", start, target)
		}
	}
}

func TestSlider_NudgeLimit(t *testing.T) {
	cfg := revcalc.DefaultSliderConfig()
	cfg.MaxNudges = 50
	ctrl := testutil.StuckControl(0)
	s := newSlider(t, cfg, nil)

	res, err := s.Converge(context.Background(), ctrl, 820)
	require.Error(t, err)
	assert.ErrorIs(t, err, revcalc.ErrNotConverged)

	var convErr *revcalc.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 50, convErr.Nudges)
	assert.Equal(t, 820, convErr.Target)
	assert.Equal(t, 0, convErr.Last)
	assert.Equal(t, "nudge limit reached", convErr.Reason)
	assert.Len(t, ctrl.Nudges, 50)
	assert.Equal(t, 50, res.Nudges)
}

func TestSlider_Timeout(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	cfg := revcalc.DefaultSliderConfig()
	cfg.Timeout = 10 * time.Second

	ctrl := testutil.StuckControl(0)
	ctrl.Clock = clock
	ctrl.PerNudge = time.Second

	s := newSlider(t, cfg, clock)
	_, err := s.Converge(context.Background(), ctrl, 820)

	var convErr *revcalc.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "timeout", convErr.Reason)
	assert.Equal(t, 10, convErr.Nudges)
	assert.Equal(t, 10*time.Second, convErr.Elapsed)
	assert.Contains(t, err.Error(), "slider did not converge to 820")
}

func TestSlider_ZeroTimeoutDisablesDeadline(t *testing.T) {
	clock := internal.NewMockClock(time.Time{})
	cfg := revcalc.DefaultSliderConfig()
	cfg.Timeout = 0
	cfg.MaxNudges = 20

	ctrl := testutil.StuckControl(0)
	ctrl.Clock = clock
	ctrl.PerNudge = time.Hour

	_, err := newSlider(t, cfg, clock).Converge(context.Background(), ctrl, 820)

	var convErr *revcalc.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "nudge limit reached", convErr.Reason)
}

func TestSlider_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSlider(t, revcalc.DefaultSliderConfig(), nil).
		Converge(ctx, testutil.IdealControl(0), 820)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, revcalc.ErrNotConverged)
}

func TestSlider_ReadFailure(t *testing.T) {
	ctrl := testutil.IdealControl(0)
	ctrl.FailAfter = 3

	res, err := newSlider(t, revcalc.DefaultSliderConfig(), nil).
		Converge(context.Background(), ctrl, 820)
	assert.ErrorIs(t, err, testutil.ErrControlFailed)
	assert.Contains(t, err.Error(), "read slider value")
	assert.Equal(t, 3, res.Nudges)
}

type mockControl struct {
	mock.Mock
}

func (m *mockControl) Value(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockControl) Nudge(ctx context.Context, delta int) error {
	return m.Called(ctx, delta).Error(0)
}

func TestSlider_NudgeFailure(t *testing.T) {
	detached := errors.New("node is detached from document")

	ctrl := new(mockControl)
	ctrl.On("Value", mock.Anything).Return(100, nil).Once()
	ctrl.On("Nudge", mock.Anything, 10).Return(detached).Once()

	_, err := newSlider(t, revcalc.DefaultSliderConfig(), nil).
		Converge(context.Background(), ctrl, 820)
	assert.ErrorIs(t, err, detached)
	assert.Contains(t, err.Error(), "nudge slider by 10")
	ctrl.AssertExpectations(t)
}

func TestSliderConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*revcalc.SliderConfig)
		want   string
	}{
		{"zero tolerance", func(c *revcalc.SliderConfig) { c.Tolerance = 0 }, "tolerance"},
		{"step up not positive", func(c *revcalc.SliderConfig) { c.StepUp = 0 }, "step up"},
		{"step down not negative", func(c *revcalc.SliderConfig) { c.StepDown = 1 }, "step down"},
		{"no nudges", func(c *revcalc.SliderConfig) { c.MaxNudges = 0 }, "nudge limit"},
		{"negative timeout", func(c *revcalc.SliderConfig) { c.Timeout = -time.Second }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := revcalc.DefaultSliderConfig()
			tt.modify(&cfg)

			_, err := revcalc.NewSlider(cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, revcalc.DefaultSliderConfig().Validate())
}
