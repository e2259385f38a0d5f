// Package export renders attendance reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"arise/internal/attendance"
)

// ContentType is the MIME type of the workbook written by WriteXLSX.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the title of the report sheet.
const SheetName = "Attendance Report"

const dateLayout = "02-Jan-2006"

// WriteXLSX writes the matrix as a one-sheet workbook: three identity columns,
// then one P/A column per session with a bold centered header row.
func WriteXLSX(w io.Writer, m attendance.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := []interface{}{"Class Roll ID", "Student Name", "University Roll No."}
	for _, s := range m.Sessions {
		header = append(header, s.StartTime.Format(dateLayout))
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range m.Rows {
		cells := []interface{}{row.Student.ClassRollID, row.Student.Name, row.Student.UniversityRollNo}
		for _, present := range row.Present {
			if present {
				cells = append(cells, "P")
			} else {
				cells = append(cells, "A")
			}
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, start, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName is the download name of a course report generated on day.
func FileName(courseName string, day time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(courseName))
	if clean == "" {
		clean = "Course"
	}
	return fmt.Sprintf("Attendance_Report_%s_%s.xlsx", clean, day.Format("2006-01-02"))
}
