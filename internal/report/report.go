package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"time"

	"github.com/septivank/water-metering-sync/internal/anomaly"
)

const (
	colorRise    = "#ef4444"
	colorFall    = "#22c55e"
	colorNeutral = "#000000"
	missingValue = "-"
)

const dailyDifferentialTemplate = `<div style="background-color:#f9fafb; font-family:'Helvetica Neue', Helvetica, Arial, sans-serif; color:#111827; padding:32px; text-align:center;">
  <div style="max-width:480px; margin:auto; background-color:#ffffff; border-radius:12px; box-shadow:0 2px 6px rgba(0,0,0,0.05); padding:32px;">
    <h2 style="font-size:24px; font-weight:600; margin-bottom:16px;">Suivi des différentiels quotidien</h2>
    <p class="intro" style="font-size:14px; color:#374151; margin-bottom:24px;">
      Voici les différentiels en date du <span class="report-date">{{.Date}}</span> qui requièrent votre attention
    </p>
    <h3 style="font-size:16px; font-weight:600; margin-bottom:16px; text-align:left;">Écoulement permanent</h3>
    <div style="margin-bottom:24px; border-radius:6px; border:1px solid #e5e7eb; overflow:hidden;">
      <table id="qmin" style="width:100%; border-collapse:collapse; margin:0 auto; font-size:12px; table-layout:fixed;">
        <thead>
          <tr style="background-color:#f9fafb;">
            <th style="padding:12px; text-align:left; width:30%; font-weight:500;">Immeuble</th>
            <th style="padding:12px; text-align:left; width:20%; font-weight:500;">Compteur</th>
            <th style="padding:12px; text-align:left; width:12.5%; font-weight:500;">Q.J-1</th>
            <th style="padding:12px; text-align:left; width:12.5%; font-weight:500;">Q.J-7</th>
            <th style="padding:12px; text-align:left; width:12.5%; font-weight:500;">Statut</th>
          </tr>
        </thead>
        <tbody>
          {{- range $i, $row := .Qmin}}
          <tr style="{{if not $row.Last}}border-bottom:1px solid #e5e7eb;{{end}}">
            <td class="building" style="padding:12px; text-align:left; white-space:nowrap; overflow:hidden; text-overflow:ellipsis; max-width:0;">{{$row.Building}}</td>
            <td class="pds" style="padding:12px; text-align:left; white-space:nowrap; overflow:hidden; text-overflow:ellipsis; max-width:0;">{{$row.PDS}}</td>
            <td class="daily" style="padding:12px; text-align:left; color:{{$row.Daily.Color}};">{{$row.Daily.Text}}</td>
            <td class="weekly" style="padding:12px; text-align:left; color:{{$row.Weekly.Color}};">{{$row.Weekly.Text}}</td>
            <td class="status" style="padding:12px; text-align:left;">{{$row.Status}}</td>
          </tr>
          {{- end}}
        </tbody>
      </table>
    </div>
    {{- if .Index}}
    <h3 style="font-size:16px; font-weight:600; margin-bottom:16px; text-align:left;">Index</h3>
    <div style="margin-bottom:24px; border-radius:6px; border:1px solid #e5e7eb; overflow:hidden;">
      <table id="index" style="width:100%; border-collapse:collapse; margin:0 auto; font-size:12px; table-layout:fixed;">
        <thead>
          <tr style="background-color:#f9fafb;">
            <th style="padding:12px; text-align:left; width:35%; font-weight:500;">Immeuble</th>
            <th style="padding:12px; text-align:left; width:25%; font-weight:500;">Compteur</th>
            <th style="padding:12px; text-align:left; width:20%; font-weight:500;">I.J-1</th>
            <th style="padding:12px; text-align:left; width:20%; font-weight:500;">I.J-7</th>
          </tr>
        </thead>
        <tbody>
          {{- range $i, $row := .Index}}
          <tr style="{{if not $row.Last}}border-bottom:1px solid #e5e7eb;{{end}}">
            <td class="building" style="padding:12px; text-align:left;">{{$row.Building}}</td>
            <td class="pds" style="padding:12px; text-align:left;">{{$row.PDS}}</td>
            <td class="daily" style="padding:12px; text-align:left; color:{{$row.Daily.Color}};">{{$row.Daily.Text}}</td>
            <td class="weekly" style="padding:12px; text-align:left; color:{{$row.Weekly.Color}};">{{$row.Weekly.Text}}</td>
          </tr>
          {{- end}}
        </tbody>
      </table>
    </div>
    {{- end}}
    <a class="app-link" href="{{.AppURL}}" target="_blank" style="display:inline-block; background-color:rgb(21, 110, 225); color:#ffffff; text-decoration:none; padding:6px 20px; border-radius:9999px; font-size:13px; font-weight:500;">
      Accéder à l'interface
    </a>
    <p style="font-size:14px; color:#6b7280; margin-top:16px;">
      Vous avez reçu cet email car vous avez activé les notifications de différentiel quotidien sur votre profil.
      Vous pouvez vous désinscrire de ces notifications depuis <a class="profile-link" href="{{.ProfileURL}}">la page suivante</a>.
    </p>
  </div>
</div>
`

// Input is everything the daily differential email shows
type Input struct {
	Date       time.Time
	Qmin       []anomaly.Warning
	Index      []anomaly.Warning
	AppURL     string
	ProfileURL string
}

// Cell is a formatted differential and its display color
type Cell struct {
	Text  string
	Color string
}

type row struct {
	Building string
	PDS      string
	Daily    Cell
	Weekly   Cell
	Status   string
	Last     bool
}

type view struct {
	Date       string
	Qmin       []row
	Index      []row
	AppURL     string
	ProfileURL string
}

// Renderer renders the daily differential email
type Renderer struct {
	tpl            *template.Template
	colorThreshold float64
}

// NewRenderer creates a renderer coloring differentials beyond ±colorThreshold
func NewRenderer(colorThreshold float64) *Renderer {
	return &Renderer{
		tpl:            template.Must(template.New("daily_differential").Parse(dailyDifferentialTemplate)),
		colorThreshold: colorThreshold,
	}
}

// Render produces the HTML body. The same body is sent to every recipient.
func (r *Renderer) Render(input Input) (string, error) {
	v := view{
		Date:       FormatDateFR(input.Date),
		AppURL:     input.AppURL,
		ProfileURL: input.ProfileURL,
	}
	for i, w := range input.Qmin {
		v.Qmin = append(v.Qmin, row{
			Building: w.BuildingName(),
			PDS:      w.Snapshot.PDS,
			Daily:    r.cell(w.Daily, 0),
			Weekly:   r.cell(w.Weekly, 0),
			Status:   w.Status(),
			Last:     i == len(input.Qmin)-1,
		})
	}
	for i, w := range input.Index {
		v.Index = append(v.Index, row{
			Building: w.BuildingName(),
			PDS:      w.Snapshot.PDS,
			Daily:    r.cell(w.Daily, 2),
			Weekly:   r.cell(w.Weekly, 2),
			Last:     i == len(input.Index)-1,
		})
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render daily differential report: %w", err)
	}
	return buf.String(), nil
}

// cell formats a differential with the given decimals. The color follows the
// displayed value, so a listed warning of 50.4 shows "50" uncolored.
func (r *Renderer) cell(value *float64, decimals int) Cell {
	if value == nil {
		return Cell{Text: missingValue, Color: colorNeutral}
	}
	scale := math.Pow(10, float64(decimals))
	shown := math.Round(*value*scale) / scale
	if shown == 0 {
		shown = 0 // drop negative zero
	}
	return Cell{
		Text:  fmt.Sprintf("%.*f", decimals, shown),
		Color: r.color(shown),
	}
}

func (r *Renderer) color(value float64) string {
	switch {
	case value > r.colorThreshold:
		return colorRise
	case value < -r.colorThreshold:
		return colorFall
	default:
		return colorNeutral
	}
}

// FormatDateFR formats a date the way fr-FR locales print short dates
func FormatDateFR(t time.Time) string {
	return t.Format("02/01/2006")
}
