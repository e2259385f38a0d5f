package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"arise/internal/attendance"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok", time.Second)
}

func TestStartSession_SendsPayloadAndDecodesRoster(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/teacher/start-session" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"success","session_id":42,"students":[
			{"class_roll_id":1,"student_name":"Asha","university_roll_no":"U1"},
			{"class_roll_id":2,"student_name":"Bela","university_roll_no":"U2"}]}`))
	})

	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	res, err := c.StartSession(context.Background(), attendance.StartRequest{
		CourseID: 7, StartTime: start, DurationMinutes: 45, Type: attendance.SessionOffline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionID != 42 || len(res.Students) != 2 || res.Students[1].UniversityRollNo != "U2" {
		t.Errorf("unexpected result %+v", res)
	}
	if got["course_id"] != float64(7) || got["duration_minutes"] != float64(45) ||
		got["session_type"] != "offline" || got["start_datetime"] != "2024-01-10T10:00:00Z" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestStartSession_InvalidRequestMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := c.StartSession(context.Background(), attendance.StartRequest{CourseID: 1, DurationMinutes: 0, Type: attendance.SessionOffline})

	if !attendance.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request, got %d", calls.Load())
	}
}

func TestDeviceStatus_EmptyObjectIsOffline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	tel, err := c.DeviceStatus(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel != nil {
		t.Errorf("expected nil telemetry for offline device, got %+v", tel)
	}
}

func TestDeviceStatus_Online(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mac_address":"AA:BB","wifi_strength":-70,"battery":81,"queue_count":2,"sync_count":9}`))
	})

	tel, err := c.DeviceStatus(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel == nil || tel.MACAddress != "AA:BB" || tel.Battery != 81 || tel.SignalLabel() != "Okay" {
		t.Errorf("unexpected telemetry %+v", tel)
	}
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantAuth bool
	}{
		{name: "message field", status: 400, body: `{"status":"error","message":"Session is not active or has ended"}`, wantMsg: "Session is not active or has ended"},
		{name: "error field", status: 404, body: `{"error":"student not found"}`, wantMsg: "student not found"},
		{name: "plain text", status: 502, body: "bad gateway", wantMsg: "bad gateway"},
		{name: "unauthorized", status: 401, body: `{"error":"invalid token"}`, wantMsg: "invalid token", wantAuth: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.ManualOverride(context.Background(), 1, "U1", "late bus")

			var se *attendance.ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if se.Status != tt.status || se.Message != tt.wantMsg {
				t.Errorf("got status %d message %q", se.Status, se.Message)
			}
			if got := attendance.IsUnauthorized(err); got != tt.wantAuth {
				t.Errorf("IsUnauthorized = %v, want %v", got, tt.wantAuth)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := New(url, "", 200*time.Millisecond)

	_, err := c.SessionStatus(context.Background(), 3)

	if !attendance.IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestReport_DecodesPresencePairs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/teacher/report/5" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"students":[{"id":7,"student_name":"A","university_roll_no":"U7","class_roll_id":1}],
			"sessions":[{"id":5,"start_time":"2024-01-10T10:00:00Z"},{"id":3,"start_time":"2024-01-05T09:00:00Z"}],
			"present_set":[[3,7]]}`))
	})

	data, err := c.Report(context.Background(), 5)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.PresentSet) != 1 || data.PresentSet[0] != (attendance.PresenceKey{SessionID: 3, StudentID: 7}) {
		t.Errorf("unexpected present set %+v", data.PresentSet)
	}
	if len(data.Sessions) != 2 || data.Students[0].ID != 7 {
		t.Errorf("unexpected report %+v", data)
	}
}

func TestExtendSession_ReturnsNewEnd(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/teacher/session/9/extend" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","new_end_time":"2024-01-10T10:55:00Z"}`))
	})

	end, err := c.ExtendSession(context.Background(), 9)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 10, 10, 55, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %s, want %s", end, want)
	}
}

func TestExportReport_StreamsBodyAndFilename(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Attendance_Report_Physics_2024-01-10.xlsx"`)
		_, _ = w.Write([]byte("PK\x03\x04raw"))
	})

	var buf bytes.Buffer
	name, err := c.ExportReport(context.Background(), 5, &buf)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Attendance_Report_Physics_2024-01-10.xlsx" {
		t.Errorf("name = %q", name)
	}
	if buf.String() != "PK\x03\x04raw" {
		t.Errorf("body was transformed: %q", buf.String())
	}
}

func TestCourses_DecodesBatchcodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/teacher/courses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"courses":[{"id":3,"course_name":"Physics","batchcode":"PHY-24","default_duration":40}]}`))
	})

	got, err := c.Courses(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := attendance.Course{ID: 3, Name: "Physics", Batchcode: "PHY-24", DefaultDurationMinutes: 40}
	if len(got) != 1 || got[0] != want {
		t.Errorf("courses = %+v, want [%+v]", got, want)
	}
}
