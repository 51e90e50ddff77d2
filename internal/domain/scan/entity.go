package scan

import (
	"time"
)

// Record is one raw biometric punch as emitted by a device. Timestamps are
// immutable once ingested; the engine only ever resolves EmployeeID, it
// never rewrites or deletes a scan.
type Record struct {
	ID         string
	RawName    string
	EmployeeID *string
	SiteID     string
	Timestamp  time.Time
	CreatedAt  time.Time
}

// SameInstant reports whether two records are duplicate taps: identical
// timestamp from the same device name. Site is deliberately ignored so
// overlapping uploads of the same export collapse to one punch.
func (r Record) SameInstant(other Record) bool {
	return r.Timestamp.Equal(other.Timestamp) && r.RawName == other.RawName
}
