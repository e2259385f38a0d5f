package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"arise/internal/attendance"
	"arise/internal/live"
)

func renderView(w io.Writer, v live.View) {
	fmt.Fprintf(w, "Session %d (%s)", v.SessionID, v.State)
	if !v.EndsAt.IsZero() {
		fmt.Fprintf(w, ", ends %s, +%d extension(s)", v.EndsAt.Local().Format("15:04"), v.Extensions)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Marked %d/%d  Device: %s\n", v.MarkedCount, v.Total, deviceLine(v.Device))
	if v.LastError != "" {
		fmt.Fprintf(w, "Last refresh failed: %s\n", v.LastError)
	}

	title := "Unmarked"
	if v.Filter != "" {
		title = fmt.Sprintf("Unmarked matching %q", v.Filter)
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(v.Unmarked))
	if len(v.Unmarked) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ROLL ID\tNAME\tUNIV ROLL NO")
	for _, s := range v.Unmarked {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", s.ClassRollID, s.Name, s.UniversityRollNo)
	}
	_ = tw.Flush()
}

func deviceLine(d live.DeviceView) string {
	switch d.Status {
	case live.DeviceOnline:
		t := d.Telemetry
		return fmt.Sprintf("online (%s) battery %d%% | Q: %d | S: %d", t.SignalLabel(), t.Battery, t.QueueCount, t.SyncCount)
	case live.DeviceError:
		return "error: " + d.Err
	}
	return d.Status.String()
}

func renderReport(w io.Writer, courseName string, m attendance.Matrix, loc *time.Location) {
	if courseName != "" {
		fmt.Fprintf(w, "Attendance report: %s\n", courseName)
	}
	if len(m.Rows) == 0 {
		fmt.Fprintln(w, "No students enrolled.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"ROLL ID", "NAME"}
	header = append(header, m.ColumnsIn(loc)...)
	header = append(header, "PRESENT", "%")
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, row := range m.Rows {
		cells := []string{fmt.Sprint(row.Student.ClassRollID), row.Student.Name}
		for _, p := range row.Present {
			if p {
				cells = append(cells, "P")
			} else {
				cells = append(cells, "A")
			}
		}
		sum := m.Summary(i)
		cells = append(cells, fmt.Sprintf("%d/%d", sum.Present, sum.Total), fmt.Sprintf("%d%%", sum.Percentage))
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func renderCourses(w io.Writer, courses []attendance.Course) {
	if len(courses) == 0 {
		fmt.Fprintln(w, "No courses.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tCOURSE\tID\tDEFAULT MIN")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", c.Batchcode, c.Name, c.ID, c.DefaultDurationMinutes)
	}
	_ = tw.Flush()
}

// parseStart reads the -date flag. Empty means now.
func parseStart(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &attendance.ValidationError{Field: "date", Message: fmt.Sprintf("cannot parse %q, use YYYY-MM-DDTHH:MM", s)}
}
