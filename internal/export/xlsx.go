// Package export renders day grids as spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"spacegrid/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

// fill colours per slot state
var stateColors = map[models.SlotState]string{
	models.SlotAvailable:      "#C6EFCE",
	models.SlotBusy:           "#FFC7CE",
	models.SlotBlackout:       "#D9D9D9",
	models.SlotPast:           "#F2F2F2",
	models.SlotDisabledByRule: "#FFEB9C",
	models.SlotSelected:       "#DDEBF7",
}

// Render lays the grid out as one sheet: a title row, a header row with one column per
// space, then one row per tick. Empty cells mean the space has no slot at that tick.
func Render(grid *models.DayGrid) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s (%d min, %s)", grid.Date, grid.SlotMinutes, grid.Zone))
	lastCol, _ := excelize.ColumnNumberToName(len(grid.Spaces) + 1)
	if len(grid.Spaces) > 0 {
		_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	}
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellValue(sheetName, "A2", "Time")
	for i, sp := range grid.Spaces {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%d)", sp.Name, sp.Capacity))
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	styles := make(map[models.SlotState]int)
	for r, row := range grid.Rows {
		rowNum := r + 3
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		_ = f.SetCellValue(sheetName, cell, row.Label)

		for c, gc := range row.Cells {
			if gc.Slot == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, rowNum)
			if err := f.SetCellValue(sheetName, cell, cellText(gc.Slot)); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("error writing cell %s: %w", cell, err)
			}
			styleID, err := stateStyle(f, styles, gc.Slot.State)
			if err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	if len(grid.Spaces) > 0 {
		_ = f.SetColWidth(sheetName, "B", lastCol, 22)
	}
	_ = f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      2,
		TopLeftCell: "B3",
		ActivePane:  "bottomRight",
	})
	return f, nil
}

func cellText(s *models.Slot) string {
	if s.Reason != "" {
		return fmt.Sprintf("%s: %s", s.State, s.Reason)
	}
	return string(s.State)
}

// stateStyle создает стиль один раз на состояние
func stateStyle(f *excelize.File, cache map[models.SlotState]int, state models.SlotState) (int, error) {
	if id, ok := cache[state]; ok {
		return id, nil
	}
	color, ok := stateColors[state]
	if !ok {
		color = "#FFFFFF"
	}
	id, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
	if err != nil {
		return 0, err
	}
	cache[state] = id
	return id, nil
}

// WriteGrid streams the workbook to w.
func WriteGrid(w io.Writer, grid *models.DayGrid) error {
	f, err := Render(grid)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the name SaveGrid uses for a grid.
func FileName(grid *models.DayGrid) string {
	return fmt.Sprintf("schedule_%s_%dm.xlsx", grid.Date, grid.SlotMinutes)
}

// SaveGrid writes the workbook under dir and returns its path.
func SaveGrid(dir string, grid *models.DayGrid) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Render(grid)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(grid))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}
