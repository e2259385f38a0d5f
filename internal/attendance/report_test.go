package attendance

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBuildReport_SortsSessionsAndPivots(t *testing.T) {
	sessions := []ReportSession{
		{ID: 5, StartTime: time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)},
		{ID: 3, StartTime: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)},
	}
	studs := []Student{{ID: 7, Name: "A"}}

	m := BuildReport(sessions, studs, []PresenceKey{{SessionID: 3, StudentID: 7}})

	if m.Sessions[0].ID != 3 || m.Sessions[1].ID != 5 {
		t.Errorf("sessions = %+v, want ids [3 5]", m.Sessions)
	}
	if len(m.Rows) != 1 {
		t.Fatalf("rows = %d", len(m.Rows))
	}
	if p := m.Rows[0].Present; len(p) != 2 || !p[0] || p[1] {
		t.Errorf("row = %v, want [true false]", p)
	}
	if m.Columns[0] != "05 Jan - 09:00" || m.Columns[1] != "10 Jan - 10:00" {
		t.Errorf("columns = %v", m.Columns)
	}
}

func TestMatrix_ColumnsIn(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	m := BuildReport([]ReportSession{
		{ID: 1, StartTime: time.Date(2024, 1, 10, 4, 30, 0, 0, time.UTC)},
		{ID: 2, StartTime: time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)},
	}, nil, nil)

	got := m.ColumnsIn(ist)

	if got[0] != "10 Jan - 10:00" || got[1] != "11 Jan - 01:30" {
		t.Errorf("columns = %v", got)
	}
	if m.Columns[0] != "10 Jan - 04:30" {
		t.Errorf("Columns changed: %v", m.Columns)
	}
}

func TestBuildReport_OrderByStartThenID(t *testing.T) {
	t1 := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC)
	sessions := []ReportSession{
		{ID: 20, StartTime: t2},
		{ID: 11, StartTime: t1},
		{ID: 30, StartTime: t3},
		{ID: 10, StartTime: t1},
	}

	m := BuildReport(sessions, nil, nil)

	want := []int64{10, 11, 20, 30}
	for i, id := range want {
		if m.Sessions[i].ID != id {
			t.Fatalf("sessions = %+v, want ids %v", m.Sessions, want)
		}
	}
	if sessions[0].ID != 20 {
		t.Error("input sessions reordered")
	}
	if len(m.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(m.Rows))
	}
}

func TestBuildReport_IgnoresUnknownPairs(t *testing.T) {
	sessions := []ReportSession{{ID: 1, StartTime: time.Now()}}
	studs := []Student{{ID: 1}, {ID: 2}}

	m := BuildReport(sessions, studs, []PresenceKey{{SessionID: 1, StudentID: 2}, {SessionID: 9, StudentID: 1}})

	if m.Rows[0].Present[0] || !m.Rows[1].Present[0] {
		t.Errorf("rows = %+v", m.Rows)
	}
}

func TestMatrix_Summary(t *testing.T) {
	sessions := []ReportSession{
		{ID: 1, StartTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{ID: 2, StartTime: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
		{ID: 3, StartTime: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)},
	}
	studs := []Student{{ID: 1}, {ID: 2}, {ID: 3}}
	presence := []PresenceKey{
		{SessionID: 1, StudentID: 1}, {SessionID: 2, StudentID: 1}, // 2/3
		{SessionID: 1, StudentID: 2}, {SessionID: 2, StudentID: 2}, {SessionID: 3, StudentID: 2},
	}

	m := BuildReport(sessions, studs, presence)

	tests := []struct {
		row  int
		want Summary
	}{
		{row: 0, want: Summary{Present: 2, Absent: 1, Total: 3, Percentage: 67}},
		{row: 1, want: Summary{Present: 3, Absent: 0, Total: 3, Percentage: 100}},
		{row: 2, want: Summary{Present: 0, Absent: 3, Total: 3, Percentage: 0}},
	}
	for _, tt := range tests {
		if got := m.Summary(tt.row); got != tt.want {
			t.Errorf("Summary(%d) = %+v, want %+v", tt.row, got, tt.want)
		}
	}
}

func TestMatrix_Summary_NoSessions(t *testing.T) {
	m := BuildReport(nil, []Student{{ID: 1}}, nil)

	if got := m.Summary(0); got != (Summary{}) {
		t.Errorf("got %+v, want zero summary", got)
	}
}

func TestPresenceKey_JSON(t *testing.T) {
	b, err := json.Marshal([]PresenceKey{{SessionID: 3, StudentID: 7}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[[3,7]]" {
		t.Errorf("marshal = %s, want [[3,7]]", b)
	}

	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "[4,9]"},
		{in: "[4]", wantErr: true},
		{in: "[1,2,3]", wantErr: true},
		{in: `{"session_id":1}`, wantErr: true},
	}
	for _, tt := range tests {
		var k PresenceKey
		err := json.Unmarshal([]byte(tt.in), &k)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && k != (PresenceKey{SessionID: 4, StudentID: 9}) {
			t.Errorf("Unmarshal(%s) = %+v", tt.in, k)
		}
	}
}

func TestSignalLabel(t *testing.T) {
	tests := []struct {
		rssi int
		want string
	}{
		{-40, "Strong"}, {-66, "Strong"}, {-67, "Okay"}, {-79, "Okay"}, {-80, "Weak"}, {-95, "Weak"},
	}
	for _, tt := range tests {
		if got := (DeviceTelemetry{WiFiStrength: tt.rssi}).SignalLabel(); got != tt.want {
			t.Errorf("SignalLabel(%d) = %s, want %s", tt.rssi, got, tt.want)
		}
	}
}
