package domain

import "time"

// DueDateLayout is the calendar-date format used for Task.DueDate.
const DueDateLayout = "2006-01-02"

func parseDue(dueDate *string) (time.Time, bool) {
	if dueDate == nil || *dueDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DueDateLayout, *dueDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// IsOverdue reports whether the due date is strictly before today.
// Tasks without a deadline, or with an unparseable one, are never overdue.
func IsOverdue(dueDate *string, now time.Time) bool {
	due, ok := parseDue(dueDate)
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// DaysUntilDue returns the number of whole days from today to the due date,
// negative when past due. ok is false when there is no usable deadline.
func DaysUntilDue(dueDate *string, now time.Time) (days int, ok bool) {
	due, okParse := parseDue(dueDate)
	if !okParse {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(due.Sub(today).Hours() / 24), true
}
