package attendance

import (
	"time"
)

// Attendance is the persisted determination for one employee on one shift
// date. For overnight shifts ShiftDate is the day the shift started, so
// the (EmployeeID, ShiftDate) pair stays unique no matter how often the
// range is reprocessed.
type Attendance struct {
	ID               string
	EmployeeID       string
	ShiftDate        time.Time
	ScheduledIn      *time.Time
	ScheduledOut     *time.Time
	ActualIn         *time.Time
	ActualOut        *time.Time
	Status           Status
	TardyMinutes     int
	UndertimeMinutes int
	OvertimeMinutes  int
	SiteIn           *string
	SiteOut          *string
	CrossSite        bool
	Warnings         []string
	AdminVerified    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Determination is the pure output of the evaluator, before persistence
// identity (ID, timestamps, verification) is attached.
type Determination struct {
	EmployeeID       string
	ShiftDate        time.Time
	ScheduledIn      *time.Time
	ScheduledOut     *time.Time
	ActualIn         *time.Time
	ActualOut        *time.Time
	Status           Status
	TardyMinutes     int
	UndertimeMinutes int
	OvertimeMinutes  int
	SiteIn           *string
	SiteOut          *string
	CrossSite        bool
	Warnings         []string
}

// Row converts a determination into the persistable record.
func (d Determination) Row() Attendance {
	return Attendance{
		EmployeeID:       d.EmployeeID,
		ShiftDate:        d.ShiftDate,
		ScheduledIn:      d.ScheduledIn,
		ScheduledOut:     d.ScheduledOut,
		ActualIn:         d.ActualIn,
		ActualOut:        d.ActualOut,
		Status:           d.Status,
		TardyMinutes:     d.TardyMinutes,
		UndertimeMinutes: d.UndertimeMinutes,
		OvertimeMinutes:  d.OvertimeMinutes,
		SiteIn:           d.SiteIn,
		SiteOut:          d.SiteOut,
		CrossSite:        d.CrossSite,
		Warnings:         d.Warnings,
	}
}
