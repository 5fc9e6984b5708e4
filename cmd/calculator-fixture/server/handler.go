package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/thesyncim/revcalc/pkg/revcalc/testutil"
)

type handler struct {
	calc testutil.CalculatorConfig
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(HomePage))
}

func (h *handler) calculator(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := calculatorData{
		Min:           h.calc.Min,
		Max:           h.calc.Max,
		Start:         h.calc.Start,
		UnitsPerPixel: h.calc.UnitsPerPixel,
		TrackWidth:    (h.calc.Max - h.calc.Min) / h.calc.UnitsPerPixel,
		Rates:         h.calc.Rates,
		Total:         testutil.FormatTotal(0),
	}
	if err := calculatorPage.Execute(w, data); err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (h *handler) rates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calc.Rates)
}

// TotalResponse is the body of GET /api/total.
type TotalResponse struct {
	Patients  int      `json:"patients"`
	Codes     []string `json:"codes"`
	Total     int      `json:"total"`
	Formatted string   `json:"formatted"`
}

// total computes what the page displays for ?patients=N&codes=a,b,c.
func (h *handler) total(w http.ResponseWriter, r *http.Request) {
	patients, err := strconv.Atoi(r.URL.Query().Get("patients"))
	if err != nil || patients < h.calc.Min || patients > h.calc.Max {
		http.Error(w, "Invalid patients", http.StatusBadRequest)
		return
	}
	var codes []string
	if raw := r.URL.Query().Get("codes"); raw != "" {
		codes = strings.Split(raw, ",")
	}

	total, err := testutil.MonthlyTotal(h.calc.Rates, patients, codes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, TotalResponse{
		Patients:  patients,
		Codes:     codes,
		Total:     total,
		Formatted: testutil.FormatTotal(total),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
