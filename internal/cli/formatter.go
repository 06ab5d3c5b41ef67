package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/synheart/synheart-guard/internal/models"
)

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// renderScore draws a 0-100 regulation score.
func renderScore(score int, width int) string {
	return renderBar(float64(score)/100, width)
}

var levelMarks = map[models.WarningLevel]string{
	models.Normal: "  ",
	models.Notice: "🟡",
	models.Watch:  "🟠",
	models.Alert:  "🔴",
}

// printResult writes v as indented JSON when --format json is set and
// calls text otherwise.
func printResult(out io.Writer, v any, text func()) error {
	if globalOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return nil
	}
	text()
	return nil
}
