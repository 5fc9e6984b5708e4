package server

import (
	"html/template"

	"github.com/thesyncim/revcalc/pkg/revcalc/testutil"
)

// HomePage is the landing page. Its only job is to lead to the calculator.
const HomePage = `<!DOCTYPE html>
<html>
<head>
    <title>Remote Patient Monitoring</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; }
        nav { display: flex; gap: 24px; padding: 20px 40px; background: #1a2b4c; color: white; }
        nav div { cursor: pointer; }
        nav div:hover { text-decoration: underline; }
        main { padding: 40px; }
    </style>
</head>
<body>
    <nav>
        <div>Home</div>
        <div onclick="location.href='/revenue-calculator'">Revenue Calculator</div>
        <div>Contact</div>
    </nav>
    <main>
        <h1>Remote patient monitoring, simplified</h1>
        <p>See what your practice could earn with the revenue calculator.</p>
    </main>
</body>
</html>`

type calculatorData struct {
	Min, Max, Start int
	UnitsPerPixel   int
	TrackWidth      int
	Rates           []testutil.Rate
	Total           string
}

// calculatorPage mimics the markup of a Material UI slider: the draggable
// thumb span wraps a range input that mirrors the value, and a number field
// next to it edits the same value.
var calculatorPage = template.Must(template.New("calculator").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Revenue Calculator</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 40px; }
        .slider-row { display: flex; align-items: center; gap: 40px; margin: 40px 0; }
        .MuiSlider-root { position: relative; width: {{.TrackWidth}}px; height: 4px; background: #cfd8dc; border-radius: 2px; }
        .MuiSlider-track { position: absolute; height: 4px; background: #1976d2; border-radius: 2px; left: 0; }
        .MuiSlider-thumb { position: absolute; top: -8px; width: 20px; height: 20px; margin-left: -10px;
                           border-radius: 50%; background: #1976d2; cursor: grab; }
        .MuiSlider-thumb input { position: absolute; left: 0; top: 0; width: 100%; height: 100%;
                                 margin: 0; opacity: 0; pointer-events: none; }
        input[type=number] { width: 100px; font-size: 18px; padding: 6px; }
        .cpt-grid { display: grid; grid-template-columns: repeat(3, 280px); gap: 16px; margin: 40px 0; }
        .cpt { border: 1px solid #ddd; border-radius: 8px; padding: 16px; }
        .cpt p { font-weight: bold; margin: 0 0 8px; }
        .total { font-size: 20px; }
    </style>
</head>
<body>
    <h1>Medicare Eligible Patients</h1>
    <div class="slider-row">
        <span class="MuiSlider-root" id="slider">
            <span class="MuiSlider-track" id="track"></span>
            <span class="MuiSlider-thumb" id="thumb">
                <input type="range" min="{{.Min}}" max="{{.Max}}" value="{{.Start}}" aria-label="patients">
            </span>
        </span>
        <input type="number" id="patients" min="{{.Min}}" max="{{.Max}}" value="{{.Start}}">
    </div>

    <div class="cpt-grid">
    {{- range .Rates}}
        <div class="cpt">
            <p>CPT-{{.Code}}</p>
            <span>{{.Description}}</span>
            <label><input type="checkbox" data-amount="{{.Amount}}"> ${{.Amount}} per patient</label>
        </div>
    {{- end}}
    </div>

    <p class="total">Total Recurring Reimbursement for all Patients Per Month:<span id="total">{{.Total}}</span></p>

    <script>
    (function() {
        const min = {{.Min}}, max = {{.Max}}, unitsPerPixel = {{.UnitsPerPixel}};
        const thumb = document.getElementById('thumb');
        const track = document.getElementById('track');
        const range = thumb.querySelector('input');
        const field = document.getElementById('patients');
        const total = document.getElementById('total');
        let value = {{.Start}};

        function clamp(v) { return Math.min(max, Math.max(min, v)); }

        function render(fromField) {
            const px = (value - min) / unitsPerPixel;
            thumb.style.left = px + 'px';
            track.style.width = px + 'px';
            range.value = String(value);
            if (!fromField) {
                field.value = String(value);
            }
            let perPatient = 0;
            document.querySelectorAll('.cpt input[type=checkbox]').forEach(function(box) {
                if (box.checked) {
                    perPatient += Number(box.dataset.amount);
                }
            });
            total.textContent = '$' + String(value * perPatient);
        }

        let drag = null;
        thumb.addEventListener('mousedown', function(e) {
            drag = { x: e.clientX, start: value };
            e.preventDefault();
        });
        document.addEventListener('mousemove', function(e) {
            if (!drag) return;
            value = clamp(drag.start + Math.round((e.clientX - drag.x) * unitsPerPixel));
            render(false);
        });
        document.addEventListener('mouseup', function() { drag = null; });

        field.addEventListener('input', function() {
            const v = parseInt(field.value, 10);
            if (!isNaN(v)) {
                value = clamp(v);
            }
            render(true);
        });

        document.querySelectorAll('.cpt input[type=checkbox]').forEach(function(box) {
            box.addEventListener('change', function() { render(false); });
        });

        render(false);
    })();
    </script>
</body>
</html>`))
