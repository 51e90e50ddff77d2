package response

import (
	"errors"
	"net/http"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/employee"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	switch {
	// Attendance domain errors
	case errors.Is(err, attendance.ErrInvalidDateRange):
		BadRequest(w, "Invalid date range", nil)
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, attendance.ErrPersistenceConflict):
		Conflict(w, "Attendance record conflicted with a concurrent run")

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
