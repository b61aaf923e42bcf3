package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2})\s*[:：]\s*(\d{2})$`)

// TimeOfDay converts a wall-clock string like "07:00" into minutes since
// midnight (0–1439). Full-width colons from hand-edited config files are
// accepted.
func TimeOfDay(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse time of day: %q", raw)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unable to parse hour in %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("unable to parse minute in %q: %w", raw, err)
	}

	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", raw)
	}
	return hour*60 + minute, nil
}

// FormatTimeOfDay renders minutes since midnight back as "HH:MM".
func FormatTimeOfDay(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

// Weekday resolves a config weekday key ("monday", "mon", ...) to time.Weekday.
func Weekday(raw string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unable to parse weekday: %q", raw)
}
