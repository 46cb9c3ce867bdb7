package schedule

import (
	"time"

	"github.com/crucial707/dbkeeper/internal/models"
)

const (
	// guardBand: a computed next run closer than this is bumped by one full
	// cadence period, so an edit made just before its own boundary does not
	// fire almost immediately.
	guardBand = 30 * time.Minute

	// minLead: hard floor on how soon a timer may be armed.
	minLead = 5 * time.Minute
)

// NextRun returns the next occurrence of job's cadence strictly after now,
// in now's location. Pure.
//
// Monthly days beyond a month's length clamp to the month's last day; the
// requested day is carried, not the clamped one, so a day-31 job lands on
// Jan 31, Feb 28/29, Mar 31, ...
func NextRun(job models.Job, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), job.Hour, job.Minute, 0, 0, now.Location())

	switch job.Cadence {
	case models.CadenceWeekly:
		d := (job.Weekday - int(now.Weekday()) + 7) % 7
		if d == 0 && !today.After(now) {
			d = 7
		}
		return today.AddDate(0, 0, d)

	case models.CadenceMonthly:
		run := monthDay(now.Year(), now.Month(), job.MonthDay, job.Hour, job.Minute, now.Location())
		if run.After(now) {
			return run
		}
		return monthDay(now.Year(), now.Month()+1, job.MonthDay, job.Hour, job.Minute, now.Location())

	default: // daily
		if today.After(now) {
			return today
		}
		return today.AddDate(0, 0, 1)
	}
}

// NextFire applies the scheduling guards on top of NextRun: a run inside the
// guard band is pushed out one whole cadence period, and the result is never
// closer than minLead. This is the instant the Scheduler actually arms.
func NextFire(job models.Job, now time.Time) time.Time {
	next := NextRun(job, now)
	if next.Sub(now) < guardBand {
		// One full period later: NextRun from the computed instant itself.
		next = NextRun(job, next)
	}
	if next.Sub(now) < minLead {
		next = now.Add(minLead)
	}
	return next
}

// monthDay builds the instant at day-of-month in (year, month), clamping day
// to the month's last day. month may be October+3 etc.; time.Date normalizes.
func monthDay(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	y, m := last.Year(), last.Month()
	if day > last.Day() {
		day = last.Day()
	}
	return time.Date(y, m, day, hour, minute, 0, 0, loc)
}
