package models

import (
	"strings"
	"time"
)

// Cadence values for a backup job.
const (
	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
)

// Storage values for a backup job.
const (
	StorageServer = "server"
	StorageEmail  = "email"
)

// Format values for the archive step. FormatNone leaves the raw .sql file.
const (
	FormatZip  = "zip"
	FormatTar  = "tar"
	FormatNone = "none"
)

// Job is one recurring backup job. Weekday is meaningful only for weekly
// cadence (0=Sunday), MonthDay only for monthly (1-31, clamped to shorter
// months at schedule time).
type Job struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Cadence   string    `json:"cadence"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Weekday   int       `json:"weekday"`
	MonthDay  int       `json:"month_day"`
	Storage   string    `json:"storage"`
	Format    string    `json:"format"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RetentionLimit is the maximum number of stored archives for this job's
// cadence: 30 for daily, 12 for weekly and monthly.
func (j Job) RetentionLimit() int {
	if j.Cadence == CadenceDaily {
		return 30
	}
	return 12
}

// Validate checks field ranges and cross-field rules. It returns a map of
// field name to problem, empty when the job is valid.
func (j Job) Validate() map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(j.Title) == "" {
		fields["title"] = "required"
	}
	switch j.Cadence {
	case CadenceDaily:
	case CadenceWeekly:
		if j.Weekday < 0 || j.Weekday > 6 {
			fields["weekday"] = "must be 0 (Sunday) through 6 (Saturday)"
		}
	case CadenceMonthly:
		if j.MonthDay < 1 || j.MonthDay > 31 {
			fields["month_day"] = "must be 1 through 31"
		}
	default:
		fields["cadence"] = "must be daily, weekly, or monthly"
	}
	if j.Hour < 0 || j.Hour > 23 {
		fields["hour"] = "must be 0 through 23"
	}
	if j.Minute < 0 || j.Minute > 59 {
		fields["minute"] = "must be 0 through 59"
	}
	switch j.Storage {
	case StorageServer:
	case StorageEmail:
		if strings.TrimSpace(j.Email) == "" {
			fields["email"] = "required when storage is email"
		}
	default:
		fields["storage"] = "must be server or email"
	}
	switch j.Format {
	case FormatZip, FormatTar, FormatNone:
	default:
		fields["format"] = "must be zip, tar, or none"
	}
	// The archive filename uses "--" as its field delimiter.
	if strings.Contains(j.ID, "--") {
		fields["id"] = "must not contain --"
	}
	return fields
}
