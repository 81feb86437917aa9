package domain

import "time"

// DueCategory is the classification of a customer's expiration date
// relative to today.
type DueCategory string

const (
	DueNone     DueCategory = "none"
	DueUpcoming DueCategory = "upcoming"
	DueToday    DueCategory = "due_today"
	DueOverdue  DueCategory = "overdue"
)

// DaysUntil returns the whole-day difference between an expiration date
// and today, both interpreted as calendar dates in the same location.
func DaysUntil(expiration, today time.Time) int {
	e := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(t).Hours() / 24)
}

// ClassifyDue maps a day difference to the notification category that
// applies today. Customers overdue by more than one day are out of the
// automatic window and are only reached by the manual overdue sweep.
func ClassifyDue(days int) DueCategory {
	switch {
	case days < -1:
		return DueNone
	case days == -1:
		return DueOverdue
	case days == 0:
		return DueToday
	case days <= 2:
		return DueUpcoming
	default:
		return DueNone
	}
}

// Classify is the composition of DaysUntil and ClassifyDue.
func Classify(expiration, today time.Time) DueCategory {
	return ClassifyDue(DaysUntil(expiration, today))
}

// Category converts a due classification into the template category
// used for queueing. DueNone has no category.
func (d DueCategory) Category() (Category, bool) {
	switch d {
	case DueUpcoming:
		return CategoryUpcoming, true
	case DueToday:
		return CategoryDueToday, true
	case DueOverdue:
		return CategoryOverdue, true
	}
	return "", false
}
