package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// GetCourse returns a course by id, or nil when missing.
func (r *Repository) GetCourse(ctx context.Context, courseID int64) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_name, batchcode, default_duration_minutes
		FROM courses WHERE id = $1
	`, courseID)
	var c Course
	if err := row.Scan(&c.ID, &c.Name, &c.Batchcode, &c.DefaultDurationMinutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Courses lists every course ordered by batch code.
func (r *Repository) Courses(ctx context.Context) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_name, batchcode, default_duration_minutes
		FROM courses ORDER BY batchcode
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Batchcode, &c.DefaultDurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateSession closes any active session and inserts the new one in a single transaction.
func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, end_time = NOW() WHERE is_active = TRUE
	`); err != nil {
		return Session{}, fmt.Errorf("deactivate sessions: %w", err)
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO sessions (course_id, start_time, end_time, duration_minutes, session_type, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id
	`, s.CourseID, s.StartTime, s.EndTime, s.DurationMinutes, string(s.Type))
	if err := row.Scan(&s.ID); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit: %w", err)
	}
	s.Active = true
	return s, nil
}

const sessionColumns = `id, course_id, start_time, end_time, duration_minutes, session_type, is_active`

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var typ string
	if err := row.Scan(&s.ID, &s.CourseID, &s.StartTime, &s.EndTime, &s.DurationMinutes, &typ, &s.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Type = SessionType(typ)
	return &s, nil
}

// GetSession returns a session by id, or nil when missing.
func (r *Repository) GetSession(ctx context.Context, id int64) (*Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// ActiveSession returns the most recent active session, or nil when idle.
func (r *Repository) ActiveSession(ctx context.Context) (*Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE is_active = TRUE
		ORDER BY start_time DESC
		LIMIT 1
	`))
}

// SetSessionEnd moves the end time of a session.
func (r *Repository) SetSessionEnd(ctx context.Context, id int64, end time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET end_time = $2 WHERE id = $1`, id, end)
	return err
}

// CloseSession deactivates an active session.
func (r *Repository) CloseSession(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, end_time = $2
		WHERE id = $1 AND is_active = TRUE
	`, id, at)
	return err
}

// Roster lists the students enrolled in a course ordered by class roll id.
func (r *Repository) Roster(ctx context.Context, courseID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.student_name, s.university_roll_no, s.enrollment_no, e.class_roll_id
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.course_id = $1
		ORDER BY e.class_roll_id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.UniversityRollNo, &st.EnrollmentNo, &st.ClassRollID); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// StudentByRoll finds a student by university roll number, or nil.
func (r *Repository) StudentByRoll(ctx context.Context, universityRollNo string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_name, university_roll_no, enrollment_no
		FROM students WHERE university_roll_no = $1
	`, universityRollNo)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.UniversityRollNo, &st.EnrollmentNo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// StudentByClassRoll finds the student holding a class roll id in a course, or nil.
func (r *Repository) StudentByClassRoll(ctx context.Context, courseID int64, classRollID int) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.student_name, s.university_roll_no, s.enrollment_no, e.class_roll_id
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		WHERE e.course_id = $1 AND e.class_roll_id = $2
	`, courseID, classRollID)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.UniversityRollNo, &st.EnrollmentNo, &st.ClassRollID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// IsEnrolled reports whether the student belongs to the course.
func (r *Repository) IsEnrolled(ctx context.Context, courseID, studentID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)
	`, courseID, studentID).Scan(&ok)
	return ok, err
}

// InsertMark writes a presence mark unless the pair is already marked.
func (r *Repository) InsertMark(ctx context.Context, m PresenceMark) (bool, error) {
	if m.MarkedAt.IsZero() {
		m.MarkedAt = time.Now().UTC()
	}
	var reason any
	if m.Reason != "" {
		reason = m.Reason
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, marked_at, method, manual_reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, m.SessionID, m.StudentID, m.MarkedAt, string(m.Method), reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkedRollNumbers lists the roll numbers marked in a session.
func (r *Repository) MarkedRollNumbers(ctx context.Context, sessionID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.university_roll_no
		FROM attendance_records ar
		JOIN students s ON s.id = ar.student_id
		WHERE ar.session_id = $1
		ORDER BY ar.marked_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var roll string
		if err := rows.Scan(&roll); err != nil {
			return nil, err
		}
		res = append(res, roll)
	}
	return res, rows.Err()
}

// CourseSessionsUntil lists the course sessions starting at or before until.
func (r *Repository) CourseSessionsUntil(ctx context.Context, courseID int64, until time.Time) ([]ReportSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, start_time FROM sessions
		WHERE course_id = $1 AND start_time <= $2
		ORDER BY start_time, id
	`, courseID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportSession
	for rows.Next() {
		var rs ReportSession
		if err := rows.Scan(&rs.ID, &rs.StartTime); err != nil {
			return nil, err
		}
		res = append(res, rs)
	}
	return res, rows.Err()
}

// Presence returns the marked pairs of the given sessions.
func (r *Repository) Presence(ctx context.Context, sessionIDs []int64) ([]PresenceKey, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, student_id FROM attendance_records
		WHERE session_id = ANY($1)
	`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []PresenceKey
	for rows.Next() {
		var k PresenceKey
		if err := rows.Scan(&k.SessionID, &k.StudentID); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}
