package backup

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Archive filenames encode job id, cadence, and creation time:
//
//	backup--<job-id>--<cadence>--<YYYY-MM-DD_HH-MM-SS>.sql[.zip|.tar]
//
// The double-hyphen delimiter keeps the name unambiguously splittable; job
// ids are validated to never contain it. The format is load-bearing: it is
// the only index over stored archives, and existing files must keep parsing.

const (
	namePrefix    = "backup--"
	nameDelimiter = "--"
	timeLayout    = "2006-01-02_15-04-05"
)

var safeFilename = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Basename returns the uncompressed dump filename for one run.
func Basename(jobID, cadence string, ts time.Time) string {
	return fmt.Sprintf("%s%s%s%s%s%s.sql", namePrefix, jobID, nameDelimiter, cadence, nameDelimiter, ts.Format(timeLayout))
}

// ArchiveInfo is the metadata parsed back out of an archive filename.
type ArchiveInfo struct {
	JobID     string
	Cadence   string
	Timestamp string // YYYY-MM-DD_HH-MM-SS, as encoded
}

// ParseFilename splits an archive filename into its encoded fields. ok is
// false for names that do not follow the scheme.
func ParseFilename(name string) (ArchiveInfo, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return ArchiveInfo{}, false
	}
	parts := strings.Split(name, nameDelimiter)
	if len(parts) != 4 {
		return ArchiveInfo{}, false
	}
	// parts[3] is "<timestamp>.sql" possibly followed by ".zip" or ".tar".
	ts, _, found := strings.Cut(parts[3], ".")
	if !found || ts == "" {
		return ArchiveInfo{}, false
	}
	if _, err := time.Parse(timeLayout, ts); err != nil {
		return ArchiveInfo{}, false
	}
	if parts[1] == "" || parts[2] == "" {
		return ArchiveInfo{}, false
	}
	return ArchiveInfo{JobID: parts[1], Cadence: parts[2], Timestamp: ts}, true
}

// ValidFilename gates filenames arriving over the download/delete boundary
// before they get anywhere near the filesystem. Only [A-Za-z0-9_.-] is
// allowed, which also excludes path separators and traversal sequences.
func ValidFilename(name string) bool {
	if name == "" || strings.Trim(name, ".") == "" {
		return false
	}
	return safeFilename.MatchString(name)
}
