// Package pages composes the driver surface into the steps of the
// revenue calculator journey.
package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// HomePage is the marketing site's landing page.
type HomePage struct {
	surface driver.Surface
	logger  *zap.Logger
}

// NewHomePage binds the homepage actions to a surface.
func NewHomePage(surface driver.Surface, logger *zap.Logger) *HomePage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomePage{surface: surface, logger: logger.Named("home")}
}

// ClickRevenueCalculator opens the revenue calculator.
func (h *HomePage) ClickRevenueCalculator(ctx context.Context) error {
	h.logger.Debug("opening revenue calculator")
	if err := h.surface.Click(ctx, RevenueCalculatorLink); err != nil {
		return fmt.Errorf("click revenue calculator: %w", err)
	}
	return nil
}
