package pages

import (
	"strings"

	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// Homepage locators.
var (
	RevenueCalculatorLink = driver.XPath("//div[text()='Revenue Calculator']")
)

// Revenue calculator locators.
var (
	// SliderThumb is the draggable handle of the patients slider.
	SliderThumb = driver.XPath("//span[contains(@class,'MuiSlider-thumb')]")

	// SliderThumbInput is the range input nested in the thumb; its value
	// property always mirrors the slider position.
	SliderThumbInput = driver.XPath("//span[contains(@class,'MuiSlider-thumb')]/input")

	// SliderValueInput is the number field next to the slider.
	SliderValueInput = driver.XPath("//input[@type='number']")

	TotalRecurringAmount = driver.XPath("//p[contains(text(),'Total Recurring Reimbursement for all Patients Per Month')]/span")
)

const (
	cptPlaceholder      = "{cpt}"
	cptBoxTemplate      = "//p[text()='CPT-{cpt}']"
	cptCheckboxTemplate = "//p[text()='CPT-{cpt}']/following-sibling::label//input[@type='checkbox']"
)

// CPTBox locates the label of a CPT code's card, used as a scroll anchor.
func CPTBox(code string) driver.Locator {
	return driver.XPath(strings.ReplaceAll(cptBoxTemplate, cptPlaceholder, code))
}

// CPTCheckbox locates the checkbox of a CPT code's card.
func CPTCheckbox(code string) driver.Locator {
	return driver.XPath(strings.ReplaceAll(cptCheckboxTemplate, cptPlaceholder, code))
}
