package domain

import "time"

type Urgency string

const (
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyWarning  Urgency = "WARNING"
	UrgencyCritical Urgency = "CRITICAL"
)

const (
	WarningAfter  = 5 * time.Minute
	CriticalAfter = 10 * time.Minute
)

// Classify buckets an order by age. A creation time in the future counts as
// age zero.
func Classify(createdAt, now time.Time) Urgency {
	age := now.Sub(createdAt)
	switch {
	case age >= CriticalAfter:
		return UrgencyCritical
	case age >= WarningAfter:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}
