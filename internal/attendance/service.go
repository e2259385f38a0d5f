package attendance

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store is the persistence the Service needs. Repository implements it on Postgres.
type Store interface {
	GetCourse(ctx context.Context, courseID int64) (*Course, error)
	Courses(ctx context.Context) ([]Course, error)
	// CreateSession deactivates every active session and inserts s as the only active one.
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id int64) (*Session, error)
	ActiveSession(ctx context.Context) (*Session, error)
	SetSessionEnd(ctx context.Context, id int64, end time.Time) error
	CloseSession(ctx context.Context, id int64, at time.Time) error
	Roster(ctx context.Context, courseID int64) ([]Student, error)
	StudentByRoll(ctx context.Context, universityRollNo string) (*Student, error)
	StudentByClassRoll(ctx context.Context, courseID int64, classRollID int) (*Student, error)
	IsEnrolled(ctx context.Context, courseID, studentID int64) (bool, error)
	// InsertMark is a no-op returning false when the pair is already marked.
	InsertMark(ctx context.Context, m PresenceMark) (bool, error)
	MarkedRollNumbers(ctx context.Context, sessionID int64) ([]string, error)
	CourseSessionsUntil(ctx context.Context, courseID int64, until time.Time) ([]ReportSession, error)
	Presence(ctx context.Context, sessionIDs []int64) ([]PresenceKey, error)
}

// MarkOutcome is the result of a device scan.
type MarkOutcome string

const (
	OutcomeMarked      MarkOutcome = "success"
	OutcomeDuplicate   MarkOutcome = "duplicate"
	OutcomeNotEnrolled MarkOutcome = "not_enrolled"
)

// Service runs the session lifecycle on the attendance service side.
type Service struct {
	store      Store
	extendStep time.Duration
	now        func() time.Time
}

// NewService creates a service backed by a store. extendStep defaults to 10 minutes.
func NewService(store Store, extendStep time.Duration) *Service {
	if extendStep <= 0 {
		extendStep = 10 * time.Minute
	}
	return &Service{store: store, extendStep: extendStep, now: time.Now}
}

// StartSession opens a new active session for the course and returns its roster.
func (s *Service) StartSession(ctx context.Context, req StartRequest) (StartedSession, error) {
	if err := req.Validate(); err != nil {
		return StartedSession{}, err
	}
	course, err := s.store.GetCourse(ctx, req.CourseID)
	if err != nil {
		return StartedSession{}, err
	}
	if course == nil {
		return StartedSession{}, ErrCourseNotFound
	}
	start := req.StartTime
	if start.IsZero() {
		start = s.now()
	}
	sess, err := s.store.CreateSession(ctx, Session{
		CourseID:        course.ID,
		StartTime:       start.UTC(),
		EndTime:         start.UTC().Add(time.Duration(req.DurationMinutes) * time.Minute),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Active:          true,
	})
	if err != nil {
		return StartedSession{}, err
	}
	roster, err := s.store.Roster(ctx, course.ID)
	if err != nil {
		return StartedSession{}, err
	}
	// live rosters are keyed by roll number
	for i := range roster {
		roster[i].ID = 0
		roster[i].EnrollmentNo = ""
	}
	return StartedSession{SessionID: sess.ID, Students: roster}, nil
}

func (s *Service) activeSession(ctx context.Context, id int64) (*Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Active {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

// ExtendSession pushes the end of an active session by the extend step.
func (s *Service) ExtendSession(ctx context.Context, id int64) (time.Time, error) {
	sess, err := s.activeSession(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	end := sess.EndTime.Add(s.extendStep)
	if err := s.store.SetSessionEnd(ctx, id, end); err != nil {
		return time.Time{}, err
	}
	return end, nil
}

// EndSession closes the session. Ending an already closed session is not an error.
func (s *Service) EndSession(ctx context.Context, id int64) error {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if !sess.Active {
		return nil
	}
	return s.store.CloseSession(ctx, id, s.now().UTC())
}

// MarkedStudents returns the university roll numbers marked present in the session.
func (s *Service) MarkedStudents(ctx context.Context, id int64) ([]string, error) {
	rolls, err := s.store.MarkedRollNumbers(ctx, id)
	if err != nil {
		return nil, err
	}
	if rolls == nil {
		rolls = []string{}
	}
	return rolls, nil
}

// ManualOverride marks a student present with a teacher-supplied reason.
// Repeating it for an already marked student succeeds without a second mark.
func (s *Service) ManualOverride(ctx context.Context, sessionID int64, universityRollNo, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &ValidationError{Field: "reason", Message: "reason is required"}
	}
	sess, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	st, err := s.store.StudentByRoll(ctx, universityRollNo)
	if err != nil {
		return err
	}
	if st == nil {
		return ErrStudentNotFound
	}
	enrolled, err := s.store.IsEnrolled(ctx, sess.CourseID, st.ID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	_, err = s.store.InsertMark(ctx, PresenceMark{
		SessionID: sess.ID,
		StudentID: st.ID,
		MarkedAt:  s.now().UTC(),
		Method:    MethodManual,
		Reason:    reason,
	})
	return err
}

// MarkByClassRoll records an automatic mark from a scanner for the active session.
func (s *Service) MarkByClassRoll(ctx context.Context, classRollID int) (MarkOutcome, error) {
	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNoActiveSession
	}
	st, err := s.store.StudentByClassRoll(ctx, sess.CourseID, classRollID)
	if err != nil {
		return "", err
	}
	if st == nil {
		return OutcomeNotEnrolled, nil
	}
	inserted, err := s.store.InsertMark(ctx, PresenceMark{
		SessionID: sess.ID,
		StudentID: st.ID,
		MarkedAt:  s.now().UTC(),
		Method:    MethodAutomatic,
	})
	if err != nil {
		return "", err
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}
	return OutcomeMarked, nil
}

// Courses lists the courses a session can be started for.
func (s *Service) Courses(ctx context.Context) ([]Course, error) {
	courses, err := s.store.Courses(ctx)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []Course{}
	}
	return courses, nil
}

// ActiveCourse returns the course of the active session, or nil when idle.
func (s *Service) ActiveCourse(ctx context.Context) (*Course, error) {
	sess, err := s.store.ActiveSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	return s.store.GetCourse(ctx, sess.CourseID)
}

// Report gathers the course roster, every course session up to and including
// the given one, and the presence pairs of those sessions.
func (s *Service) Report(ctx context.Context, sessionID int64) (ReportData, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return ReportData{}, err
	}
	if sess == nil {
		return ReportData{}, ErrSessionNotFound
	}
	course, err := s.store.GetCourse(ctx, sess.CourseID)
	if err != nil {
		return ReportData{}, err
	}
	if course == nil {
		return ReportData{}, ErrCourseNotFound
	}
	students, err := s.store.Roster(ctx, sess.CourseID)
	if err != nil {
		return ReportData{}, err
	}
	sessions, err := s.store.CourseSessionsUntil(ctx, sess.CourseID, sess.StartTime)
	if err != nil {
		return ReportData{}, err
	}
	data := ReportData{
		CourseName: course.Name,
		Students:   nonNilStudents(students),
		Sessions:   sessions,
		PresentSet: []PresenceKey{},
	}
	if data.Sessions == nil {
		data.Sessions = []ReportSession{}
	}
	if len(sessions) == 0 {
		return data, nil
	}
	ids := make([]int64, len(sessions))
	for i, rs := range sessions {
		ids[i] = rs.ID
	}
	presence, err := s.store.Presence(ctx, ids)
	if err != nil {
		return ReportData{}, err
	}
	if presence != nil {
		data.PresentSet = presence
	}
	return data, nil
}

func nonNilStudents(s []Student) []Student {
	if s == nil {
		return []Student{}
	}
	return s
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCourseNotFound) || errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrNotEnrolled)
}
