// Package api serves the attendance service over HTTP for the teacher console
// and the scanner devices.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arise/internal/attendance"
	"arise/internal/metrics"
	"arise/internal/queue"
)

// Sessions is the session lifecycle. *attendance.Service implements it.
type Sessions interface {
	Courses(ctx context.Context) ([]attendance.Course, error)
	StartSession(ctx context.Context, req attendance.StartRequest) (attendance.StartedSession, error)
	ExtendSession(ctx context.Context, id int64) (time.Time, error)
	EndSession(ctx context.Context, id int64) error
	MarkedStudents(ctx context.Context, id int64) ([]string, error)
	ManualOverride(ctx context.Context, sessionID int64, universityRollNo, reason string) error
	MarkByClassRoll(ctx context.Context, classRollID int) (attendance.MarkOutcome, error)
	ActiveCourse(ctx context.Context) (*attendance.Course, error)
	Report(ctx context.Context, sessionID int64) (attendance.ReportData, error)
}

// Telemetry keeps the latest device heartbeat. *device.RedisStore implements it.
type Telemetry interface {
	Save(ctx context.Context, t attendance.DeviceTelemetry) error
	Latest(ctx context.Context) (*attendance.DeviceTelemetry, error)
}

type Handler struct {
	sessions  Sessions
	telemetry Telemetry
	events    queue.Queue
	log       *zap.Logger
	now       func() time.Time
}

func New(sessions Sessions, telemetry Telemetry, events queue.Queue, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sessions: sessions, telemetry: telemetry, events: events, log: log, now: time.Now}
}

// fail writes the error body with the status the error maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case attendance.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, attendance.ErrSessionNotActive),
		errors.Is(err, attendance.ErrNoActiveSession),
		errors.Is(err, attendance.ErrNotEnrolled):
		status, msg = http.StatusBadRequest, err.Error()
	case attendance.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	default:
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"status": "error", "message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid session id")
		return 0, false
	}
	return id, true
}

// ---------- Teacher ----------

// Courses lists the batch codes a teacher can start a session for, with
// each course's default duration.
func (h *Handler) Courses(c *gin.Context) {
	courses, err := h.sessions.Courses(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

type startSessionRequest struct {
	CourseID        int64  `json:"course_id" binding:"gt=0"`
	StartDatetime   string `json:"start_datetime" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int    `json:"duration_minutes" binding:"gt=0"`
	SessionType     string `json:"session_type" binding:"oneof=offline online"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	var start time.Time
	if req.StartDatetime != "" {
		start, _ = time.Parse(time.RFC3339, req.StartDatetime)
	}
	res, err := h.sessions.StartSession(c.Request.Context(), attendance.StartRequest{
		CourseID:        req.CourseID,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		Type:            attendance.SessionType(req.SessionType),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.SessionsStarted.Inc()
	h.log.Info("session started", zap.Int64("session_id", res.SessionID), zap.Int64("course_id", req.CourseID))
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "Session Started",
		"session_id": res.SessionID,
		"students":   res.Students,
	})
}

func (h *Handler) SessionStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rolls, err := h.sessions.MarkedStudents(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_students": rolls})
}

func (h *Handler) ExtendSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	end, err := h.sessions.ExtendSession(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "new_end_time": end.Format(time.RFC3339)})
}

func (h *Handler) EndSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.sessions.EndSession(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("session ended", zap.Int64("session_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Session has been ended."})
}

type manualOverrideRequest struct {
	SessionID        int64  `json:"session_id" binding:"gt=0"`
	UniversityRollNo string `json:"univ_roll_no" binding:"notblank"`
	Reason           string `json:"reason" binding:"notblank"`
}

func (h *Handler) ManualOverride(c *gin.Context) {
	var req manualOverrideRequest
	if !bindJSON(c, &req) {
		return
	}
	roll := strings.TrimSpace(req.UniversityRollNo)
	if err := h.sessions.ManualOverride(c.Request.Context(), req.SessionID, roll, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	metrics.MarksRecorded.WithLabelValues(string(attendance.MethodManual)).Inc()
	h.log.Info("manual mark", zap.Int64("session_id", req.SessionID), zap.String("univ_roll_no", roll))
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Attendance marked manually"})
}

// DeviceStatus returns the latest telemetry, or {} when the device is offline.
func (h *Handler) DeviceStatus(c *gin.Context) {
	t, err := h.telemetry.Latest(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if t == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) Report(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.sessions.Report(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ---------- Device ----------

// Heartbeat stores the device's telemetry as the latest and queues it for archiving.
func (h *Handler) Heartbeat(c *gin.Context) {
	var t attendance.DeviceTelemetry
	if !bindJSON(c, &t) {
		return
	}
	t.ReceivedAt = h.now().UTC()
	ctx := c.Request.Context()
	if err := h.telemetry.Save(ctx, t); err != nil {
		h.fail(c, err)
		return
	}
	metrics.Heartbeats.Inc()
	if h.events != nil {
		msg, err := queue.NewMessage(queue.TypeHeartbeat, t)
		if err == nil {
			err = h.events.Publish(ctx, msg)
		}
		if err != nil {
			h.log.Warn("queue publish failed", zap.String("mac", t.MACAddress), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ActiveSessionStatus tells a device whether to scan, and under which batch code.
func (h *Handler) ActiveSessionStatus(c *gin.Context) {
	course, err := h.sessions.ActiveCourse(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if course == nil {
		c.JSON(http.StatusOK, gin.H{"isSessionActive": false, "sessionName": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isSessionActive": true, "sessionName": course.Batchcode})
}

var outcomeMessages = map[attendance.MarkOutcome]string{
	attendance.OutcomeMarked:      "Marked",
	attendance.OutcomeDuplicate:   "Already Marked",
	attendance.OutcomeNotEnrolled: "Not Enrolled\nin Course",
}

func (h *Handler) MarkByRollID(c *gin.Context) {
	var req struct {
		ClassRollID int `json:"class_roll_id" binding:"gt=0"`
	}
	if !bindJSON(c, &req) {
		return
	}
	outcome, err := h.sessions.MarkByClassRoll(c.Request.Context(), req.ClassRollID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome == attendance.OutcomeMarked {
		metrics.MarksRecorded.WithLabelValues(string(attendance.MethodAutomatic)).Inc()
	}
	c.JSON(http.StatusOK, gin.H{"status": string(outcome), "message": outcomeMessages[outcome]})
}
