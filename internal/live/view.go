package live

import (
	"time"

	"arise/internal/attendance"
)

// DeviceStatus is the display state of the scanner widget.
type DeviceStatus int

const (
	DeviceUnknown DeviceStatus = iota
	DeviceOnline
	DeviceOffline
	DeviceError
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceOnline:
		return "online"
	case DeviceOffline:
		return "offline"
	case DeviceError:
		return "error"
	}
	return "unknown"
}

// DeviceView is the latest device snapshot. Telemetry is set only when online.
type DeviceView struct {
	Status    DeviceStatus
	Telemetry attendance.DeviceTelemetry
	Err       string
}

// View is an immutable snapshot of the live session for rendering.
type View struct {
	SessionID   int64
	CourseID    int64
	State       State
	StartedAt   time.Time
	Extensions  int
	EndsAt      time.Time
	Total       int
	MarkedCount int
	// Unmarked is the unmarked set narrowed by Filter.
	Unmarked  []attendance.Student
	Filter    string
	Device    DeviceView
	LastError string
	UpdatedAt time.Time
}

func (c *Controller) viewLocked() View {
	sc := c.sc
	return View{
		SessionID:   sc.sessionID,
		CourseID:    sc.courseID,
		State:       sc.state,
		StartedAt:   sc.startedAt,
		Extensions:  sc.extensions,
		EndsAt:      sc.endsAt,
		Total:       len(sc.roster),
		MarkedCount: len(sc.roster) - len(sc.unmarked),
		Unmarked:    attendance.Filter(sc.unmarked, c.filter),
		Filter:      c.filter,
		Device:      sc.device,
		LastError:   sc.lastErr,
		UpdatedAt:   sc.updatedAt,
	}
}
