package attendance

import (
	"math"
	"sort"
	"time"
)

// ColumnLayout is the display format of a report session column.
const ColumnLayout = "02 Jan - 15:04"

// Matrix is a student × session presence table.
type Matrix struct {
	Sessions []ReportSession
	Columns  []string
	Rows     []MatrixRow
}

// MatrixRow holds one student's cells, aligned with Matrix.Sessions.
type MatrixRow struct {
	Student Student
	Present []bool
}

// Summary is a student's attendance totals over the report's sessions.
type Summary struct {
	Present    int
	Absent     int
	Total      int
	Percentage int
}

// BuildReport pivots presence pairs into a dense matrix. Sessions are ordered
// by start time, ties by id; rows follow the students slice.
func BuildReport(sessions []ReportSession, students []Student, presence []PresenceKey) Matrix {
	sorted := append([]ReportSession(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	present := make(map[PresenceKey]struct{}, len(presence))
	for _, k := range presence {
		present[k] = struct{}{}
	}

	m := Matrix{
		Sessions: sorted,
		Columns:  make([]string, len(sorted)),
		Rows:     make([]MatrixRow, len(students)),
	}
	for i, s := range sorted {
		m.Columns[i] = s.StartTime.Format(ColumnLayout)
	}
	for i, st := range students {
		cells := make([]bool, len(sorted))
		for j, s := range sorted {
			_, cells[j] = present[PresenceKey{SessionID: s.ID, StudentID: st.ID}]
		}
		m.Rows[i] = MatrixRow{Student: st, Present: cells}
	}
	return m
}

// ColumnsIn formats the session columns in loc, so headers read in the
// viewer's zone rather than the one the service serialized.
func (m Matrix) ColumnsIn(loc *time.Location) []string {
	out := make([]string, len(m.Sessions))
	for i, s := range m.Sessions {
		out[i] = s.StartTime.In(loc).Format(ColumnLayout)
	}
	return out
}

// Summary totals row i. Percentage is rounded; zero when there are no sessions.
func (m Matrix) Summary(i int) Summary {
	var s Summary
	for _, p := range m.Rows[i].Present {
		if p {
			s.Present++
		}
	}
	s.Total = len(m.Sessions)
	s.Absent = s.Total - s.Present
	if s.Total > 0 {
		s.Percentage = int(math.Round(float64(s.Present) * 100 / float64(s.Total)))
	}
	return s
}
