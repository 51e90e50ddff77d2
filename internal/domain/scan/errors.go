package scan

import "errors"

// Scan domain errors
var (
	ErrInvalidScanRecord = errors.New("scan record is missing name or timestamp")
)
