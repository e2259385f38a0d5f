// Package live drives one teacher's attendance session: start, live
// reconciliation against the marked set and device feed, manual marks,
// extension, termination and the final report.
package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arise/internal/attendance"
	"arise/internal/metrics"
	"arise/internal/poller"
)

// API is the part of the attendance service the controller calls.
// *client.Client implements it.
type API interface {
	StartSession(ctx context.Context, req attendance.StartRequest) (attendance.StartedSession, error)
	SessionStatus(ctx context.Context, sessionID int64) ([]string, error)
	DeviceStatus(ctx context.Context) (*attendance.DeviceTelemetry, error)
	ManualOverride(ctx context.Context, sessionID int64, universityRollNo, reason string) error
	ExtendSession(ctx context.Context, sessionID int64) (time.Time, error)
	EndSession(ctx context.Context, sessionID int64) error
	Report(ctx context.Context, sessionID int64) (attendance.ReportData, error)
}

// State is the client-side lifecycle of a session.
type State int

const (
	StateCreated State = iota
	StateActive
	StateExtended
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateExtended:
		return "extended"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Live reports whether marks and polling are allowed in this state.
func (s State) Live() bool { return s == StateActive || s == StateExtended }

// Options tune a Controller.
type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Controller owns the current session context. Commands are serialized;
// View may be called at any time.
type Controller struct {
	api      API
	interval time.Duration
	log      *zap.Logger

	cmdMu sync.Mutex // serializes commands

	mu      sync.Mutex // guards sc, filter
	sc      *sessionContext
	filter  string
	updates chan View
}

// sessionContext is everything scoped to one session. It is replaced, never reset field by field.
type sessionContext struct {
	courseID   int64
	sessionID  int64
	startedAt  time.Time
	state      State
	extensions int
	endsAt     time.Time
	roster     []attendance.Student
	task       *poller.Task
	closed     bool // live view left; never poll again

	marked    []string
	unmarked  []attendance.Student
	device    DeviceView
	lastErr   string
	updatedAt time.Time
}

// New creates a controller with no session.
func New(api API, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		api:      api,
		interval: opts.PollInterval,
		log:      opts.Logger,
		sc:       &sessionContext{},
		updates:  make(chan View, 1),
	}
}

// Updates delivers a view after every change. Only the latest view is kept
// when the reader falls behind.
func (c *Controller) Updates() <-chan View {
	return c.updates
}

// View returns a snapshot of the current session.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) publishLocked() {
	v := c.viewLocked()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v:
	default:
	}
}

// Start opens a session on the service. On success any previous session's
// polling is stopped before the new context is installed.
func (c *Controller) Start(ctx context.Context, req attendance.StartRequest) (View, error) {
	if err := req.Validate(); err != nil {
		return View{}, err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	started, err := c.api.StartSession(ctx, req)
	if err != nil {
		return View{}, err
	}

	c.detach().Stop()

	roster := append([]attendance.Student(nil), started.Students...)
	sc := &sessionContext{
		courseID:  req.CourseID,
		sessionID: started.SessionID,
		startedAt: req.StartTime,
		state:     StateActive,
		roster:    roster,
		unmarked:  attendance.Unmarked(roster, nil),
		device:    DeviceView{Status: DeviceUnknown},
	}

	c.mu.Lock()
	c.sc = sc
	c.filter = ""
	c.publishLocked()
	v := c.viewLocked()
	c.mu.Unlock()

	c.startPolling(sc)
	c.log.Info("session started",
		zap.Int64("session_id", sc.sessionID),
		zap.Int64("course_id", sc.courseID),
		zap.Int("roster", len(roster)))
	return v, nil
}

// detach swaps in an empty context and returns the poller of the previous one.
// Ticks of the detached context no longer reach the view.
func (c *Controller) detach() *poller.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.sc
	c.sc = &sessionContext{}
	return old.task
}

// startPolling installs a poller on sc unless the live view was already left.
// A Close racing with the install either sees the task or is seen here.
func (c *Controller) startPolling(sc *sessionContext) {
	c.mu.Lock()
	closed := sc.closed
	c.mu.Unlock()
	if closed {
		return
	}
	t := poller.Start(context.Background(), c.interval, func(ctx context.Context) {
		c.tick(ctx, sc)
	})
	c.mu.Lock()
	if sc.closed || c.sc != sc {
		c.mu.Unlock()
		t.Stop()
		return
	}
	sc.task = t
	c.mu.Unlock()
}

// polling reports whether sc may still reach the service from a tick.
func (c *Controller) polling(sc *sessionContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sc == sc && !sc.closed
}

// tick fetches the marked set and the device feed concurrently and applies
// each result independently.
func (c *Controller) tick(ctx context.Context, sc *sessionContext) {
	if !c.polling(sc) {
		return
	}
	var g errgroup.Group
	g.Go(func() error {
		marked, err := c.api.SessionStatus(ctx, sc.sessionID)
		c.applyStatus(sc, marked, err)
		return err
	})
	g.Go(func() error {
		tel, err := c.api.DeviceStatus(ctx)
		c.applyDevice(sc, tel, err)
		return err
	})
	_ = g.Wait()
}

func (c *Controller) applyStatus(sc *sessionContext, marked []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sc != sc || !sc.state.Live() {
		return
	}
	if err != nil {
		metrics.PollTicks.WithLabelValues("status", "error").Inc()
		c.log.Warn("status poll failed", zap.Int64("session_id", sc.sessionID), zap.Error(err))
		sc.lastErr = err.Error()
		c.publishLocked()
		return
	}
	metrics.PollTicks.WithLabelValues("status", "ok").Inc()
	sc.marked = append([]string(nil), marked...)
	sc.unmarked = attendance.Unmarked(sc.roster, sc.marked)
	sc.lastErr = ""
	sc.updatedAt = time.Now()
	metrics.Unmarked.Set(float64(len(sc.unmarked)))
	c.publishLocked()
}

func (c *Controller) applyDevice(sc *sessionContext, tel *attendance.DeviceTelemetry, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sc != sc || !sc.state.Live() {
		return
	}
	switch {
	case err != nil:
		metrics.PollTicks.WithLabelValues("device", "error").Inc()
		c.log.Warn("device poll failed", zap.Error(err))
		sc.device = DeviceView{Status: DeviceError, Err: err.Error()}
	case tel == nil:
		metrics.PollTicks.WithLabelValues("device", "ok").Inc()
		sc.device = DeviceView{Status: DeviceOffline}
	default:
		metrics.PollTicks.WithLabelValues("device", "ok").Inc()
		sc.device = DeviceView{Status: DeviceOnline, Telemetry: *tel}
	}
	c.publishLocked()
}

// Refresh runs one reconciliation tick now.
func (c *Controller) Refresh(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	sc := c.sc
	live := sc.state.Live()
	c.mu.Unlock()
	if !live {
		return errNoLiveSession
	}
	c.tick(ctx, sc)
	return nil
}

// SetFilter changes the search term applied to the unmarked list. It never fetches.
func (c *Controller) SetFilter(term string) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = term
	c.publishLocked()
	return c.viewLocked()
}

var errNoLiveSession = &attendance.ValidationError{Field: "session", Message: "no active session"}

// MarkManually marks a student present with a reason, then refreshes the view.
// An empty reason or roll number is rejected without calling the service.
func (c *Controller) MarkManually(ctx context.Context, universityRollNo, reason string) error {
	universityRollNo = strings.TrimSpace(universityRollNo)
	reason = strings.TrimSpace(reason)
	if universityRollNo == "" {
		return &attendance.ValidationError{Field: "univ_roll_no", Message: "roll number is required"}
	}
	if reason == "" {
		return &attendance.ValidationError{Field: "reason", Message: "a reason is required for manual entries"}
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	sc := c.sc
	live := sc.state.Live()
	c.mu.Unlock()
	if !live {
		return errNoLiveSession
	}

	if err := c.api.ManualOverride(ctx, sc.sessionID, universityRollNo, reason); err != nil {
		return err
	}
	c.log.Info("manual mark", zap.Int64("session_id", sc.sessionID), zap.String("univ_roll_no", universityRollNo))
	c.tick(ctx, sc)
	return nil
}

// Extend asks the service for more time. The session stays live.
func (c *Controller) Extend(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	sc := c.sc
	live := sc.state.Live()
	c.mu.Unlock()
	if !live {
		return errNoLiveSession
	}

	end, err := c.api.ExtendSession(ctx, sc.sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sc == sc {
		sc.state = StateExtended
		sc.extensions++
		sc.endsAt = end
		c.publishLocked()
	}
	c.mu.Unlock()
	c.log.Info("session extended", zap.Int64("session_id", sc.sessionID), zap.Time("ends_at", end))
	return nil
}

// End stops polling and closes the session on the service. If the service
// call fails the session stays live and polling resumes.
func (c *Controller) End(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	sc := c.sc
	live := sc.state.Live()
	task := sc.task
	c.mu.Unlock()
	if !live {
		return errNoLiveSession
	}

	task.Stop()

	if err := c.api.EndSession(ctx, sc.sessionID); err != nil {
		c.startPolling(sc)
		return err
	}

	c.mu.Lock()
	sc.state = StateEnded
	c.publishLocked()
	c.mu.Unlock()
	c.log.Info("session ended", zap.Int64("session_id", sc.sessionID))
	return nil
}

// Reset stops polling and forgets the current session.
func (c *Controller) Reset() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.detach().Stop()

	c.mu.Lock()
	c.filter = ""
	c.publishLocked()
	c.mu.Unlock()
}

// Close stops polling when the live view is left. The session context is kept
// so a report can still be built, but it is never polled again. Safe to call
// repeatedly and concurrently with commands.
func (c *Controller) Close() {
	c.mu.Lock()
	c.sc.closed = true
	task := c.sc.task
	c.mu.Unlock()
	task.Stop()
}

// Report builds the attendance matrix for the current session's course.
func (c *Controller) Report(ctx context.Context) (attendance.Matrix, error) {
	c.mu.Lock()
	id := c.sc.sessionID
	c.mu.Unlock()
	if id == 0 {
		return attendance.Matrix{}, &attendance.ValidationError{Field: "session", Message: "no session to report on"}
	}
	m, _, err := c.ReportFor(ctx, id)
	return m, err
}

// ReportFor builds the attendance matrix for any session and returns the course name alongside.
func (c *Controller) ReportFor(ctx context.Context, sessionID int64) (attendance.Matrix, string, error) {
	if sessionID <= 0 {
		return attendance.Matrix{}, "", &attendance.ValidationError{Field: "session", Message: "session id must be positive"}
	}
	data, err := c.api.Report(ctx, sessionID)
	if err != nil {
		return attendance.Matrix{}, "", err
	}
	return attendance.BuildReport(data.Sessions, data.Students, data.PresentSet), data.CourseName, nil
}
