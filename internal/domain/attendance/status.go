package attendance

// Status is the primary, mutually exclusive determination for a shift.
type Status string

const (
	StatusOnTime            Status = "on_time"
	StatusTardy             Status = "tardy"
	StatusUndertime         Status = "undertime"
	StatusUndertimeOverHour Status = "undertime_more_than_hour"
	StatusHalfDayAbsence    Status = "half_day_absence"
	StatusFailedBioIn       Status = "failed_bio_in"
	StatusFailedBioOut      Status = "failed_bio_out"
	StatusNCNS              Status = "ncns"
	StatusAdvisedAbsence    Status = "advised_absence"
	StatusPresentNoBio      Status = "present_no_bio"
	StatusNonWorkDay        Status = "non_work_day"
	StatusNeedsManualReview Status = "needs_manual_review"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnTime, StatusTardy, StatusUndertime, StatusUndertimeOverHour,
		StatusHalfDayAbsence, StatusFailedBioIn, StatusFailedBioOut,
		StatusNCNS, StatusAdvisedAbsence, StatusPresentNoBio,
		StatusNonWorkDay, StatusNeedsManualReview:
		return true
	}
	return false
}
