package job

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronSchedule represents a minimal parsed cron schedule.
type CronSchedule struct {
	Hour    int
	Minute  int
	Weekday *time.Weekday // non-nil = fire only on this weekday
	Day     int           // >0 = fire only on this day of month
}

// ParseCronExpr parses a simple cron expression.
// Supported formats:
//   - "daily"              → every day at 00:00 UTC
//   - "weekly"             → every Monday at 00:00 UTC
//   - "monthly"            → the 1st of each month at 00:00 UTC
//   - "HH:MM"              → every day at HH:MM UTC
//   - "daily:HH:MM"        → every day at HH:MM UTC
//   - "weekly:Day[:HH:MM]" → every Day at HH:MM UTC (e.g. "weekly:Fri")
//   - "monthly:DOM[:HH:MM]"→ day DOM of each month at HH:MM UTC
func ParseCronExpr(expr string) (CronSchedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return CronSchedule{}, fmt.Errorf("empty cron expression")
	}

	switch {
	case expr == "daily":
		return CronSchedule{}, nil

	case expr == "weekly":
		mon := time.Monday
		return CronSchedule{Weekday: &mon}, nil

	case expr == "monthly":
		return CronSchedule{Day: 1}, nil

	case strings.HasPrefix(expr, "daily:"):
		h, m, err := parseHHMM(strings.TrimPrefix(expr, "daily:"))
		if err != nil {
			return CronSchedule{}, err
		}
		return CronSchedule{Hour: h, Minute: m}, nil

	case strings.HasPrefix(expr, "weekly:"):
		rest := strings.TrimPrefix(expr, "weekly:")
		parts := strings.SplitN(rest, ":", 2)
		day, err := parseWeekday(parts[0])
		if err != nil {
			return CronSchedule{}, err
		}
		h, m := 0, 0
		if len(parts) == 2 {
			h, m, err = parseHHMM(parts[1])
			if err != nil {
				return CronSchedule{}, err
			}
		}
		return CronSchedule{Hour: h, Minute: m, Weekday: &day}, nil

	case strings.HasPrefix(expr, "monthly:"):
		rest := strings.TrimPrefix(expr, "monthly:")
		parts := strings.SplitN(rest, ":", 2)
		dom, err := strconv.Atoi(parts[0])
		if err != nil || dom < 1 || dom > 28 {
			return CronSchedule{}, fmt.Errorf("invalid day of month %q (1-28)", parts[0])
		}
		h, m := 0, 0
		if len(parts) == 2 {
			h, m, err = parseHHMM(parts[1])
			if err != nil {
				return CronSchedule{}, err
			}
		}
		return CronSchedule{Hour: h, Minute: m, Day: dom}, nil

	default:
		// Try HH:MM
		h, m, err := parseHHMM(expr)
		if err != nil {
			return CronSchedule{}, fmt.Errorf("unrecognized cron expression: %q", expr)
		}
		return CronSchedule{Hour: h, Minute: m}, nil
	}
}

// Matches reports whether the schedule fires in the minute containing t.
func (c CronSchedule) Matches(t time.Time) bool {
	t = t.UTC()
	if t.Hour() != c.Hour || t.Minute() != c.Minute {
		return false
	}
	if c.Weekday != nil && t.Weekday() != *c.Weekday {
		return false
	}
	if c.Day > 0 && t.Day() != c.Day {
		return false
	}
	return true
}

// NextAfter returns the next occurrence of this schedule after the given time.
func (c CronSchedule) NextAfter(t time.Time) time.Time {
	t = t.UTC()

	candidate := time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
	for i := 0; i < 366; i++ {
		check := candidate.AddDate(0, 0, i)
		if !check.After(t) {
			continue
		}
		if c.Weekday != nil && check.Weekday() != *c.Weekday {
			continue
		}
		if c.Day > 0 && check.Day() != c.Day {
			continue
		}
		return check
	}

	// Should not reach here, but just in case
	return candidate.AddDate(1, 0, 0)
}

// ValidateCronExpr checks if a cron expression is syntactically valid.
func ValidateCronExpr(expr string) error {
	_, err := ParseCronExpr(expr)
	return err
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return h, m, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
}
