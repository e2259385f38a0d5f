// Package client calls the attendance service REST API on behalf of the teacher console.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"arise/internal/attendance"
)

// Client calls the attendance service.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with the given per-request timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type startSessionRequest struct {
	CourseID        int64  `json:"course_id"`
	StartDatetime   string `json:"start_datetime"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionType     string `json:"session_type"`
}

// Courses lists the courses with their batch codes and default durations.
func (c *Client) Courses(ctx context.Context) ([]attendance.Course, error) {
	var out struct {
		Courses []attendance.Course `json:"courses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/teacher/courses", nil, &out); err != nil {
		return nil, err
	}
	return out.Courses, nil
}

// StartSession opens a session and returns its id with the course roster.
func (c *Client) StartSession(ctx context.Context, req attendance.StartRequest) (attendance.StartedSession, error) {
	if err := req.Validate(); err != nil {
		return attendance.StartedSession{}, err
	}
	body := startSessionRequest{
		CourseID:        req.CourseID,
		StartDatetime:   req.StartTime.Format(time.RFC3339),
		DurationMinutes: req.DurationMinutes,
		SessionType:     string(req.Type),
	}
	var out attendance.StartedSession
	if err := c.do(ctx, http.MethodPost, "/api/teacher/start-session", body, &out); err != nil {
		return attendance.StartedSession{}, err
	}
	if out.Students == nil {
		out.Students = []attendance.Student{}
	}
	return out, nil
}

// SessionStatus returns the university roll numbers marked in the session.
func (c *Client) SessionStatus(ctx context.Context, sessionID int64) ([]string, error) {
	var out struct {
		MarkedStudents []string `json:"marked_students"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teacher/session/%d/status", sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out.MarkedStudents, nil
}

// DeviceStatus returns the latest device telemetry, or nil when the device is offline.
func (c *Client) DeviceStatus(ctx context.Context) (*attendance.DeviceTelemetry, error) {
	var out attendance.DeviceTelemetry
	if err := c.do(ctx, http.MethodGet, "/api/teacher/device-status", nil, &out); err != nil {
		return nil, err
	}
	if out.MACAddress == "" {
		return nil, nil
	}
	return &out, nil
}

// ManualOverride marks a student present with a reason.
func (c *Client) ManualOverride(ctx context.Context, sessionID int64, universityRollNo, reason string) error {
	body := map[string]any{
		"session_id":   sessionID,
		"univ_roll_no": universityRollNo,
		"reason":       reason,
	}
	return c.do(ctx, http.MethodPost, "/api/teacher/manual-override", body, nil)
}

// ExtendSession adds the service's fixed increment and returns the new end time.
func (c *Client) ExtendSession(ctx context.Context, sessionID int64) (time.Time, error) {
	var out struct {
		NewEndTime time.Time `json:"new_end_time"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/teacher/session/%d/extend", sessionID), nil, &out); err != nil {
		return time.Time{}, err
	}
	return out.NewEndTime, nil
}

// EndSession closes the session.
func (c *Client) EndSession(ctx context.Context, sessionID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/teacher/session/%d/end", sessionID), nil, nil)
}

// Report fetches the raw report payload for the session's course.
func (c *Client) Report(ctx context.Context, sessionID int64) (attendance.ReportData, error) {
	var out attendance.ReportData
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teacher/report/%d", sessionID), nil, &out); err != nil {
		return attendance.ReportData{}, err
	}
	return out, nil
}

// ExportReport streams the exported report file into w and returns the file
// name suggested by the service.
func (c *Client) ExportReport(ctx context.Context, sessionID int64, w io.Writer) (string, error) {
	op := "export report"
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/teacher/report/export/%d", sessionID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &attendance.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", serviceError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", &attendance.NetworkError{Op: op, Err: err}
	}
	name := fmt.Sprintf("attendance_report_%d.xlsx", sessionID)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return name, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &attendance.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return serviceError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &attendance.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// serviceError builds a ServiceError, preferring the message the service sent.
func serviceError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	return &attendance.ServiceError{Status: resp.StatusCode, Message: msg}
}
