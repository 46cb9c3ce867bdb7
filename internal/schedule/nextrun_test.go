package schedule

import (
	"testing"
	"time"

	"github.com/crucial707/dbkeeper/internal/models"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return ts
}

func TestNextRun_Daily(t *testing.T) {
	job := models.Job{ID: "job_1", Cadence: models.CadenceDaily, Hour: 2, Minute: 0}

	tests := []struct {
		name string
		now  string
		want string
	}{
		{"before today's time", "2024-01-10T01:00", "2024-01-10T02:00"},
		{"after today's time", "2024-01-10T02:30", "2024-01-11T02:00"},
		{"exactly at the time", "2024-01-10T02:00", "2024-01-11T02:00"},
		{"just before midnight", "2024-01-10T23:59", "2024-01-11T02:00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NextRun(job, mustTime(t, tc.now))
			if want := mustTime(t, tc.want); !got.Equal(want) {
				t.Errorf("NextRun(%s) = %v, want %v", tc.now, got, want)
			}
		})
	}
}

func TestNextRun_Weekly(t *testing.T) {
	// 2024-01-10 is a Wednesday (weekday 3).
	job := models.Job{ID: "job_1", Cadence: models.CadenceWeekly, Hour: 9, Minute: 30, Weekday: 5} // Friday

	got := NextRun(job, mustTime(t, "2024-01-10T12:00"))
	if want := mustTime(t, "2024-01-12T09:30"); !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}

	// Same weekday, time already passed: one week out.
	job.Weekday = 3
	got = NextRun(job, mustTime(t, "2024-01-10T12:00"))
	if want := mustTime(t, "2024-01-17T09:30"); !got.Equal(want) {
		t.Errorf("NextRun same-day-passed = %v, want %v", got, want)
	}

	// Same weekday, time still ahead: today.
	got = NextRun(job, mustTime(t, "2024-01-10T08:00"))
	if want := mustTime(t, "2024-01-10T09:30"); !got.Equal(want) {
		t.Errorf("NextRun same-day-ahead = %v, want %v", got, want)
	}
}

func TestNextRun_Weekly_AlwaysOnWeekdayWithinWeek(t *testing.T) {
	base := mustTime(t, "2024-03-01T00:00")
	for wd := 0; wd < 7; wd++ {
		job := models.Job{Cadence: models.CadenceWeekly, Hour: 6, Minute: 15, Weekday: wd}
		for dayOffset := 0; dayOffset < 14; dayOffset++ {
			now := base.AddDate(0, 0, dayOffset).Add(11 * time.Hour)
			got := NextRun(job, now)
			if int(got.Weekday()) != wd {
				t.Fatalf("weekday %d from %v: got %v (%v)", wd, now, got, got.Weekday())
			}
			diff := got.Sub(now)
			if diff <= 0 || diff > 7*24*time.Hour {
				t.Fatalf("weekday %d from %v: next %v out of (0, 7d]", wd, now, got)
			}
		}
	}
}

func TestNextRun_Monthly(t *testing.T) {
	job := models.Job{ID: "job_1", Cadence: models.CadenceMonthly, Hour: 3, Minute: 0, MonthDay: 15}

	got := NextRun(job, mustTime(t, "2024-01-10T12:00"))
	if want := mustTime(t, "2024-01-15T03:00"); !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}

	// Already past this month's day: next month.
	got = NextRun(job, mustTime(t, "2024-01-20T12:00"))
	if want := mustTime(t, "2024-02-15T03:00"); !got.Equal(want) {
		t.Errorf("NextRun next-month = %v, want %v", got, want)
	}
}

func TestNextRun_Monthly_ClampsShortMonths(t *testing.T) {
	job := models.Job{Cadence: models.CadenceMonthly, Hour: 1, Minute: 0, MonthDay: 31}

	// Leap February clamps to the 29th.
	got := NextRun(job, mustTime(t, "2024-02-01T00:00"))
	if want := mustTime(t, "2024-02-29T01:00"); !got.Equal(want) {
		t.Errorf("leap Feb: got %v, want %v", got, want)
	}

	// Non-leap February clamps to the 28th.
	got = NextRun(job, mustTime(t, "2023-02-01T00:00"))
	if want := mustTime(t, "2023-02-28T01:00"); !got.Equal(want) {
		t.Errorf("Feb: got %v, want %v", got, want)
	}

	// Clamping never spills into the next month: the clamped requested day
	// is carried forward, so March gets the 31st again.
	got = NextRun(job, mustTime(t, "2024-02-29T02:00"))
	if want := mustTime(t, "2024-03-31T01:00"); !got.Equal(want) {
		t.Errorf("after clamped Feb run: got %v, want %v", got, want)
	}

	// April (30 days) from late March.
	got = NextRun(job, mustTime(t, "2024-03-31T02:00"))
	if want := mustTime(t, "2024-04-30T01:00"); !got.Equal(want) {
		t.Errorf("April clamp: got %v, want %v", got, want)
	}
}

func TestNextFire_GuardBand(t *testing.T) {
	job := models.Job{ID: "job_1", Cadence: models.CadenceDaily, Hour: 2, Minute: 0}

	// Next run only 20 minutes away: bumped one full day.
	now := mustTime(t, "2024-01-10T01:40")
	got := NextFire(job, now)
	if want := mustTime(t, "2024-01-11T02:00"); !got.Equal(want) {
		t.Errorf("guard band bump: got %v, want %v", got, want)
	}

	// Next run comfortably away: untouched.
	now = mustTime(t, "2024-01-10T00:00")
	got = NextFire(job, now)
	if want := mustTime(t, "2024-01-10T02:00"); !got.Equal(want) {
		t.Errorf("no bump expected: got %v, want %v", got, want)
	}
}

func TestNextFire_NeverSoonerThanFiveMinutes(t *testing.T) {
	cadences := []models.Job{
		{Cadence: models.CadenceDaily, Hour: 2, Minute: 0},
		{Cadence: models.CadenceWeekly, Hour: 2, Minute: 0, Weekday: 3},
		{Cadence: models.CadenceMonthly, Hour: 2, Minute: 0, MonthDay: 10},
	}
	base := mustTime(t, "2024-01-10T00:00")
	for _, job := range cadences {
		for m := 0; m < 24*60; m += 7 {
			now := base.Add(time.Duration(m) * time.Minute)
			next := NextFire(job, now)
			if next.Sub(now) < minLead {
				t.Fatalf("%s from %v: fire %v sooner than %v", job.Cadence, now, next, minLead)
			}
		}
	}
}

func TestNextFire_NeverDefersMoreThanOnePeriod(t *testing.T) {
	job := models.Job{Cadence: models.CadenceDaily, Hour: 2, Minute: 0}
	base := mustTime(t, "2024-01-10T00:00")
	for m := 0; m < 24*60; m += 11 {
		now := base.Add(time.Duration(m) * time.Minute)
		naive := NextRun(job, now)
		fire := NextFire(job, now)
		if fire.After(naive.AddDate(0, 0, 1)) {
			t.Fatalf("from %v: fire %v more than one period past naive %v", now, fire, naive)
		}
	}
}
