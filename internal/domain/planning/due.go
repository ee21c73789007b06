package planning

import (
	"time"

	"github.com/visitplan/visitplan/internal/domain/identity"
)

// dateOf truncates a timestamp to its calendar date, keeping the location.
func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// dueWindowEnd is the last calendar date (inclusive) still considered due.
// Looking a day ahead absorbs clock skew between the server and the
// practice's devices.
func dueWindowEnd(now time.Time) time.Time {
	return dateOf(now.Add(24 * time.Hour))
}

// startOfNextDay returns midnight of the following calendar day.
func startOfNextDay(now time.Time) time.Time {
	return dateOf(now).AddDate(0, 0, 1)
}

// IsDue reports whether a patient needs a visit today or tomorrow.
//
// A snooze strictly in the future wins over everything else. One-time
// patients are due only through an explicitly planned date. Recurring
// patients are due when their interval has elapsed or a visit was planned;
// an interval of zero days disables interval-based due-ness, so such
// patients surface only when scheduled by hand.
func IsDue(p *identity.Patient, now time.Time) bool {
	if p.SnoozeUntil != nil && p.SnoozeUntil.After(now) {
		return false
	}

	end := dueWindowEnd(now)
	plannedDue := p.PlannedVisitDate != nil && !dateOf(*p.PlannedVisitDate).After(end)

	if p.IsOneTime {
		return plannedDue
	}
	if plannedDue {
		return true
	}
	if p.IntervalDays <= 0 {
		return false
	}
	next := p.LastVisit.Add(time.Duration(p.IntervalDays) * 24 * time.Hour)
	return !dateOf(next).After(end)
}
