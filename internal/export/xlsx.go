package export

import (
	"bytes"
	"fmt"
	"time"

	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"

	"github.com/xuri/excelize/v2"
)

// ScheduleExportHeader 导出表头
var ScheduleExportHeader = []string{
	"Vaccine",
	"Dose",
	"Scheduled Date",
	"Status",
	"Days Until",
	"Completed Date",
	"Doctor",
	"Location",
	"Batch Number",
	"Notes",
}

var scheduleColumnWidths = []float64{
	36, // Vaccine
	8,  // Dose
	15, // Scheduled Date
	12, // Status
	12, // Days Until
	15, // Completed Date
	20, // Doctor
	24, // Location
	16, // Batch Number
	30, // Notes
}

// WriteXLSX 生成儿童接种计划的 Excel 文件（状态按 today 重算）
func WriteXLSX(child domain.Child, records []domain.VaccinationRecord, names map[string]string, today time.Time) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
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
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ScheduleExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, scheduleColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, r := range schedule.WithLiveStatus(records, today) {
		if r.ChildID != child.ID {
			continue
		}
		values := []any{
			vaccineName(names, r.VaccineID),
			fmt.Sprintf("%d/%d", r.DoseNumber, r.TotalDoses),
			r.ScheduledDate.Format(schedule.DateLayout),
			string(r.Status),
			"",
			"",
			r.DoctorName,
			r.Location,
			r.BatchNumber,
			r.Notes,
		}
		if r.IsCompleted() {
			values[5] = r.CompletedDate.Format(schedule.DateLayout)
		} else {
			values[4] = schedule.DaysUntil(r.ScheduledDate, today)
		}

		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		row++
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

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
