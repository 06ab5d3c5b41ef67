// Package report exports strategy analytics as an Excel workbook.
package report

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/strategy"
)

const (
	EffectivenessSheet = "Effectiveness"
	ResolutionsSheet   = "Resolutions"
)

// EffectivenessHeader is the header row of the summary sheet.
var EffectivenessHeader = []string{
	"Strategy ID",
	"Name",
	"Category",
	"Rating",
	"Uses",
	"Mean Time To Resolve (s)",
	"By Level",
}

// ResolutionsHeader is the header row of the history sheet.
var ResolutionsHeader = []string{
	"Warning Event ID",
	"Strategy ID",
	"Warning Level",
	"Score At Open",
	"Opened At",
	"Resolved At",
	"Time To Resolve (s)",
}

const timeLayout = "2006-01-02 15:04:05"

// Generate builds the workbook and returns its bytes.
func Generate(effectiveness []strategy.Effectiveness, resolutions []models.Resolution) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(EffectivenessSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(ResolutionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	summary := make([][]any, 0, len(effectiveness))
	for _, e := range effectiveness {
		summary = append(summary, []any{
			e.StrategyID,
			e.Name,
			e.Category,
			e.Rating,
			e.Uses,
			e.MeanTimeToResolve.Seconds(),
			formatLevels(e.ByLevel),
		})
	}
	if err := writeSheet(f, EffectivenessSheet, EffectivenessHeader, summary, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	history := make([][]any, 0, len(resolutions))
	for _, r := range resolutions {
		history = append(history, []any{
			r.WarningEventID,
			r.StrategyID,
			r.WarningLevel.String(),
			r.ScoreAtOpen,
			r.OpenedAt.UTC().Format(timeLayout),
			r.ResolvedAt.UTC().Format(timeLayout),
			r.TimeToResolve().Seconds(),
		})
	}
	if err := writeSheet(f, ResolutionsSheet, ResolutionsHeader, history, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	// File must remain open during WriteTo
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteEffectiveness generates the workbook into path.
func WriteEffectiveness(path string, effectiveness []strategy.Effectiveness, resolutions []models.Resolution) error {
	data, err := Generate(effectiveness, resolutions)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, float64(len(title)+6)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// formatLevels renders counts as "alert=1 watch=2", sorted by level name.
func formatLevels(byLevel map[string]int) string {
	keys := make([]string, 0, len(byLevel))
	for k := range byLevel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, byLevel[k])
	}
	return strings.Join(parts, " ")
}
