// Package evaluator turns a grouped shift instance into the persisted
// attendance determination: primary status, minute deltas and warnings.
package evaluator

import (
	"fmt"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
	"github.com/shiftsync/attendance-engine/internal/service/grouper"
)

// Params are the evaluation thresholds the schedule does not carry.
type Params struct {
	// SevereUndertimeThreshold separates undertime from
	// undertime_more_than_hour. An early leave of exactly the threshold
	// is still plain undertime.
	SevereUndertimeThreshold time.Duration
	// HalfDayFraction of the scheduled duration decides when a single
	// missing punch escalates to half_day_absence.
	HalfDayFraction float64
}

const DefaultSevereUndertimeThreshold = time.Hour

func Default() Params {
	return Params{
		SevereUndertimeThreshold: DefaultSevereUndertimeThreshold,
		HalfDayFraction:          0.5,
	}
}

// Flags are externally supplied facts about the shift the biometric data
// cannot know: a pre-notified absence, or an admin marking the employee
// present without device corroboration.
type Flags struct {
	Advised      bool
	PresentNoBio bool
}

type Evaluator struct {
	params Params
}

func New(params Params) *Evaluator {
	if params.SevereUndertimeThreshold <= 0 {
		params.SevereUndertimeThreshold = DefaultSevereUndertimeThreshold
	}
	if params.HalfDayFraction <= 0 || params.HalfDayFraction >= 1 {
		params.HalfDayFraction = 0.5
	}
	return &Evaluator{params: params}
}

// Evaluate is a pure function of (instance, flags). It never fails:
// malformed or ambiguous instances come back as needs_manual_review with
// the ambiguity spelled out in Warnings, so one employee's bad data can
// never halt a batch.
func (e *Evaluator) Evaluate(inst grouper.ShiftInstance, flags Flags) attendance.Determination {
	det := attendance.Determination{
		EmployeeID: inst.EmployeeID,
		ShiftDate:  inst.Date,
	}
	if !inst.Window.RestDay && !inst.NoSchedule {
		in, out := inst.Window.ScheduledIn, inst.Window.ScheduledOut
		det.ScheduledIn, det.ScheduledOut = &in, &out
	}
	if inst.TimeIn != nil {
		det.ActualIn = &inst.TimeIn.Timestamp
		site := inst.TimeIn.SiteID
		det.SiteIn = &site
	}
	if inst.TimeOut != nil {
		det.ActualOut = &inst.TimeOut.Timestamp
		site := inst.TimeOut.SiteID
		det.SiteOut = &site
	}
	if det.SiteIn != nil && det.SiteOut != nil && *det.SiteIn != *det.SiteOut {
		det.CrossSite = true
		det.Warnings = append(det.Warnings,
			fmt.Sprintf("cross-site punches: in at %s, out at %s", *det.SiteIn, *det.SiteOut))
	}
	if n := len(inst.Extra); n > 0 {
		det.Warnings = append(det.Warnings, fmt.Sprintf("%d surplus scan(s) within the shift window", n))
	}

	// Review conditions always win over any computed numeric status.
	if len(inst.ReviewReasons) > 0 {
		det.Warnings = append(det.Warnings, inst.ReviewReasons...)
		det.Status = attendance.StatusNeedsManualReview
		return det
	}

	if inst.Window.RestDay {
		// A scanless rest day never reaches the evaluator; the grouper
		// flags worked rest days for review above. This branch only
		// remains for callers constructing instances by hand.
		det.Status = attendance.StatusNonWorkDay
		return det
	}

	if inst.TimeIn == nil && inst.TimeOut == nil {
		switch {
		case flags.Advised:
			det.Status = attendance.StatusAdvisedAbsence
		case flags.PresentNoBio:
			det.Status = attendance.StatusPresentNoBio
		default:
			det.Status = attendance.StatusNCNS
		}
		return det
	}

	if inst.TimeIn == nil || inst.TimeOut == nil {
		e.evaluateSinglePunch(inst, &det)
		return det
	}

	e.evaluateFullShift(inst, &det)
	return det
}

// evaluateSinglePunch handles a shift with exactly one matched scan. The
// punch bounds the longest interval the employee could have worked; when
// that bound is under the half-day fraction of the scheduled duration
// the determination is half_day_absence, otherwise the specific
// failed-bio status for the missing side.
func (e *Evaluator) evaluateSinglePunch(inst grouper.ShiftInstance, det *attendance.Determination) {
	w := inst.Window
	halfDay := time.Duration(float64(w.Duration()) * e.params.HalfDayFraction)

	if inst.TimeIn != nil {
		start := laterOf(inst.TimeIn.Timestamp, w.ScheduledIn)
		coverable := w.ScheduledOut.Sub(start)
		if coverable < halfDay {
			det.Status = attendance.StatusHalfDayAbsence
		} else {
			det.Status = attendance.StatusFailedBioOut
			det.Warnings = append(det.Warnings, "no clock-out punch recorded")
		}
		det.TardyMinutes = tardyMinutes(inst.TimeIn.Timestamp, w)
		return
	}

	end := earlierOf(inst.TimeOut.Timestamp, w.ScheduledOut)
	coverable := end.Sub(w.ScheduledIn)
	if coverable < halfDay {
		det.Status = attendance.StatusHalfDayAbsence
	} else {
		det.Status = attendance.StatusFailedBioIn
		det.Warnings = append(det.Warnings, "no clock-in punch recorded")
	}
	det.UndertimeMinutes = positiveMinutes(w.ScheduledOut.Sub(inst.TimeOut.Timestamp))
	det.OvertimeMinutes = positiveMinutes(inst.TimeOut.Timestamp.Sub(w.ScheduledOut))
}

func (e *Evaluator) evaluateFullShift(inst grouper.ShiftInstance, det *attendance.Determination) {
	w := inst.Window
	in := inst.TimeIn.Timestamp
	out := inst.TimeOut.Timestamp

	det.TardyMinutes = tardyMinutes(in, w)
	det.UndertimeMinutes = positiveMinutes(w.ScheduledOut.Sub(out))
	det.OvertimeMinutes = positiveMinutes(out.Sub(w.ScheduledOut))

	switch {
	case in.After(w.GraceLimit()):
		det.Status = attendance.StatusTardy
	case det.UndertimeMinutes > 0:
		if time.Duration(det.UndertimeMinutes)*time.Minute > e.params.SevereUndertimeThreshold {
			det.Status = attendance.StatusUndertimeOverHour
		} else {
			det.Status = attendance.StatusUndertime
		}
	default:
		det.Status = attendance.StatusOnTime
	}
}

// tardyMinutes measures lateness from the grace limit, floored to whole
// minutes, never negative.
func tardyMinutes(in time.Time, w schedule.ShiftWindow) int {
	return positiveMinutes(in.Sub(w.GraceLimit()))
}

func positiveMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
