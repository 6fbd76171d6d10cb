package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// rankColor returns the colour for a combination's rank.
func rankColor(rank int) *color.Color {
	colors := []*color.Color{
		color.New(color.FgGreen, color.Bold),
		color.New(color.FgYellow),
		color.New(color.FgCyan),
	}
	if rank < len(colors) {
		return colors[rank]
	}
	return color.New(color.FgHiBlack)
}

// Render formats the top n records for a terminal. n <= 0 renders all of them.
func Render(records []Record, n int) string {
	var out strings.Builder

	out.WriteString("🍣 Dining itineraries\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")

	if len(records) == 0 {
		out.WriteString("No itinerary found for these dates\n")
		return out.String()
	}
	if n <= 0 || n > len(records) {
		n = len(records)
	}

	dim := color.New(color.FgHiBlack)
	for i, rec := range records[:n] {
		c := rankColor(i)
		out.WriteString(c.Sprintf("#%d  weight %.1f  (%d days)", i+1, rec.Weight, len(rec.Plans)) + "\n")
		for _, p := range rec.Plans {
			out.WriteString(fmt.Sprintf("  %s  %s\n", p.Date, dim.Sprint(p.Location)))
			out.WriteString(fmt.Sprintf("    ☀️  %s\n", p.Lunch))
			out.WriteString(fmt.Sprintf("    🌙 %s\n", p.Dinner))
		}
	}
	if n < len(records) {
		out.WriteString(dim.Sprintf("… %d more in the JSON output", len(records)-n) + "\n")
	}
	return out.String()
}

// Print writes Render's output to w.
func Print(w io.Writer, records []Record, n int) error {
	_, err := io.WriteString(w, Render(records, n))
	return err
}
