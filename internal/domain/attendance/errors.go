package attendance

import "errors"

// Attendance domain errors
var (
	ErrAttendanceNotFound = errors.New("attendance record not found")

	// ErrPersistenceConflict is a unique-constraint violation that
	// survived the single update-by-key retry.
	ErrPersistenceConflict = errors.New("attendance upsert conflict could not be resolved")

	ErrInvalidDateRange = errors.New("from date must not be after to date")
)
