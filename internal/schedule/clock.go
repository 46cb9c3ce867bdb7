package schedule

import (
	"log/slog"
	"strings"
	"time"
)

// Clock supplies the current time in the configured zone. Job times-of-day
// are interpreted against this zone.
type Clock interface {
	Now() time.Time
}

type zoneClock struct {
	loc *time.Location
}

// NewClock returns a Clock for the given IANA zone name. An empty or
// invalid name falls back to the system local zone with a warning.
func NewClock(tz string, log *slog.Logger) Clock {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return zoneClock{loc: time.Local}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, falling back to local", "tz", tz, "err", err)
		return zoneClock{loc: time.Local}
	}
	return zoneClock{loc: loc}
}

func (c zoneClock) Now() time.Time { return time.Now().In(c.loc) }

// fixedClock is a test clock pinned to one instant.
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }
