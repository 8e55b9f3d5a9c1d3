// Package charts renders transaction aggregates as PNG pie charts.
package charts

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"expense-tracker/internal/core"
)

const (
	width  = 512
	height = 512
)

// ErrNoData is returned when every slice of a chart would be empty.
var ErrNoData = errors.New("no data to chart")

var (
	creditColor = drawing.Color{R: 0, G: 196, B: 159, A: 255}
	debitColor  = drawing.Color{R: 255, G: 128, B: 66, A: 255}

	palette = []drawing.Color{
		{R: 0, G: 136, B: 254, A: 255},
		{R: 0, G: 196, B: 159, A: 255},
		{R: 255, G: 187, B: 40, A: 255},
		{R: 255, G: 128, B: 66, A: 255},
		{R: 136, G: 132, B: 216, A: 255},
	}
)

// CreditDebit draws the split between credit and debit totals.
func CreditDebit(w io.Writer, totals core.Totals) error {
	values := nonZero([]chart.Value{
		{Label: "Credit", Value: totals.Credit, Style: chart.Style{FillColor: creditColor}},
		{Label: "Debit", Value: totals.Debit, Style: chart.Style{FillColor: debitColor}},
	})
	return render(w, "Credit vs Debit", values)
}

// FrequentDescriptions draws one slice per description, sized by occurrence count.
func FrequentDescriptions(w io.Writer, counts []core.DescriptionCount) error {
	values := make([]chart.Value, 0, len(counts))
	for i, c := range counts {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", c.Description, c.Count),
			Value: float64(c.Count),
			Style: chart.Style{FillColor: palette[i%len(palette)]},
		})
	}
	return render(w, "Frequent descriptions", nonZero(values))
}

func render(w io.Writer, title string, values []chart.Value) error {
	if len(values) == 0 {
		return ErrNoData
	}
	pie := chart.PieChart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", title, err)
	}
	return nil
}

// nonZero drops slices a pie cannot draw.
func nonZero(values []chart.Value) []chart.Value {
	out := values[:0]
	for _, v := range values {
		if v.Value > 0 {
			out = append(out, v)
		}
	}
	return out
}
