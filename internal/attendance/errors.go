package attendance

import (
	"errors"
	"fmt"
	"net/http"
)

// Service-side failures, mapped to HTTP statuses by the API layer.
var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active or has ended")
	ErrStudentNotFound  = errors.New("student not found")
	ErrNotEnrolled      = errors.New("student not enrolled in course")
	ErrNoActiveSession  = errors.New("no active session")
)

// ValidationError is a client-detected problem. No request is made when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ServiceError is a non-2xx response from the attendance service.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attendance service: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("attendance service: %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the credential was rejected.
func (e *ServiceError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// NetworkError is a request that never completed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsService(err error) bool {
	var s *ServiceError
	return errors.As(err, &s)
}

func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var s *ServiceError
	return errors.As(err, &s) && s.Unauthorized()
}
