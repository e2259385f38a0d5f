package attendance

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionType is the delivery mode of a session.
type SessionType string

const (
	SessionOffline SessionType = "offline"
	SessionOnline  SessionType = "online"
)

// Method records how a presence mark was produced.
type Method string

const (
	MethodAutomatic Method = "automatic"
	MethodManual    Method = "manual"
)

// Course is a subject taught under a batch code.
type Course struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"course_name"`
	Batchcode              string `json:"batchcode"`
	DefaultDurationMinutes int    `json:"default_duration"`
}

// Session is one attendance-taking window for a course.
type Session struct {
	ID              int64       `json:"id"`
	CourseID        int64       `json:"course_id"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Type            SessionType `json:"session_type"`
	Active          bool        `json:"is_active"`
}

// Student is an enrolled student. ID is zero in live rosters, which are keyed
// by UniversityRollNo.
type Student struct {
	ID               int64  `json:"id,omitempty"`
	Name             string `json:"student_name"`
	UniversityRollNo string `json:"university_roll_no"`
	ClassRollID      int    `json:"class_roll_id"`
	EnrollmentNo     string `json:"enrollment_no,omitempty"`
}

// PresenceMark asserts a student was present during a session.
type PresenceMark struct {
	SessionID int64     `json:"session_id"`
	StudentID int64     `json:"student_id"`
	MarkedAt  time.Time `json:"marked_at"`
	Method    Method    `json:"method"`
	Reason    string    `json:"reason,omitempty"`
}

// Key returns the composite key of the mark.
func (m PresenceMark) Key() PresenceKey {
	return PresenceKey{SessionID: m.SessionID, StudentID: m.StudentID}
}

// PresenceKey identifies a (session, student) pair. It is comparable and is
// used directly as a map key. On the wire it is the array [sessionId, studentId].
type PresenceKey struct {
	SessionID int64
	StudentID int64
}

func (k PresenceKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{k.SessionID, k.StudentID})
}

func (k *PresenceKey) UnmarshalJSON(b []byte) error {
	var pair []int64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("presence key: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("presence key: want 2 elements, got %d", len(pair))
	}
	k.SessionID, k.StudentID = pair[0], pair[1]
	return nil
}

// DeviceTelemetry is the last heartbeat reported by a scanner device.
type DeviceTelemetry struct {
	MACAddress   string    `json:"mac_address" binding:"notblank"`
	WiFiStrength int       `json:"wifi_strength"`
	Battery      int       `json:"battery" binding:"gte=0,lte=100"`
	QueueCount   int       `json:"queue_count"`
	SyncCount    int       `json:"sync_count"`
	ReceivedAt   time.Time `json:"received_at,omitempty"`
}

// SignalLabel buckets the wifi RSSI for display.
func (t DeviceTelemetry) SignalLabel() string {
	switch {
	case t.WiFiStrength > -67:
		return "Strong"
	case t.WiFiStrength > -80:
		return "Okay"
	default:
		return "Weak"
	}
}

// StartRequest carries the parameters of a new session.
type StartRequest struct {
	CourseID        int64       `json:"course_id" validate:"gt=0"`
	StartTime       time.Time   `json:"start_datetime"`
	DurationMinutes int         `json:"duration_minutes" validate:"gt=0"`
	Type            SessionType `json:"session_type" validate:"oneof=offline online"`
}

// Validate checks the request before anything is sent or stored.
func (r StartRequest) Validate() error {
	return AsValidationError(validate.Struct(r))
}

// StartedSession is the result of starting a session: its id and the roster.
type StartedSession struct {
	SessionID int64     `json:"session_id"`
	Students  []Student `json:"students"`
}

// ReportSession is a session column of a report.
type ReportSession struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
}

// ReportData is the raw report payload: roster, sessions and presence pairs.
type ReportData struct {
	CourseName string          `json:"course_name,omitempty"`
	Students   []Student       `json:"students"`
	Sessions   []ReportSession `json:"sessions"`
	PresentSet []PresenceKey   `json:"present_set"`
}
