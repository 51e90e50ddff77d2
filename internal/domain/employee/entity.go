package employee

import (
	"time"
)

type Employee struct {
	ID             string
	FullName       string
	NormalizedName string
	SiteID         *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
