package rules

import "time"

const (
	// DefaultDailySwipeLimit applies to users without a configured limit.
	DefaultDailySwipeLimit = 8
)

// ResolveDailyLimit picks the user's own limit when set.
func ResolveDailyLimit(userLimit *int, fallback int) int {
	if userLimit != nil && *userLimit >= 0 {
		return *userLimit
	}
	if fallback < 0 {
		return DefaultDailySwipeLimit
	}
	return fallback
}

func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

func NextResetAt(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.UTC()
}

func Remaining(limit, used int) int {
	left := limit - used
	if left < 0 {
		return 0
	}
	return left
}
