package testutil

import (
	"fmt"
	"strconv"
)

// Rate is the monthly reimbursement per patient for one CPT code.
type Rate struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      int    `json:"amount"`
}

// DefaultRates is the rate card of the simulated and fixture calculators.
var DefaultRates = []Rate{
	{Code: "99091", Description: "Collection and interpretation of physiologic data", Amount: 48},
	{Code: "99453", Description: "Remote monitoring setup and patient education", Amount: 19},
	{Code: "99454", Description: "Device supply with daily recordings", Amount: 53},
	{Code: "99457", Description: "Treatment management, first 20 minutes", Amount: 46},
	{Code: "99458", Description: "Treatment management, each additional 20 minutes", Amount: 37},
	{Code: "99474", Description: "Self-measured blood pressure monitoring", Amount: 15},
}

// MonthlyTotal is patients times the sum of the selected codes' rates.
func MonthlyTotal(rates []Rate, patients int, codes []string) (int, error) {
	byCode := make(map[string]int, len(rates))
	for _, r := range rates {
		byCode[r.Code] = r.Amount
	}

	perPatient := 0
	for _, code := range codes {
		amount, ok := byCode[code]
		if !ok {
			return 0, fmt.Errorf("unknown CPT code %q", code)
		}
		perPatient += amount
	}
	return patients * perPatient, nil
}

// FormatTotal renders a total the way the calculator displays it.
func FormatTotal(total int) string {
	return "$" + strconv.Itoa(total)
}
