package queue

import (
	"fmt"
	"strings"
	"time"
)

// Schedule determines when a janitor job runs next
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// dailySchedule runs once per day at specified time
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// weeklySchedule runs once per week on specified day and time
type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(
		next.Year(), next.Month(), next.Day(),
		s.hour, s.minute, 0, 0, next.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// EveryInterval creates a schedule that runs at fixed intervals
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// EveryMinute creates a schedule that runs every minute
func EveryMinute() Schedule {
	return intervalSchedule{every: time.Minute}
}

// Hourly creates a schedule that runs every hour
func Hourly() Schedule {
	return intervalSchedule{every: time.Hour}
}

// DailyAt creates a schedule that runs daily at specified time
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule that runs weekly on specified day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}

// ParseSchedule reads the forms printed by String, as used in env config:
//
//	every 10m
//	daily at 03:00
//	weekly on Sunday at 04:30
func ParseSchedule(s string) (Schedule, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	switch {
	case len(fields) == 2 && fields[0] == "every":
		d, err := time.ParseDuration(fields[1])
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
		}
		return EveryInterval(d), nil
	case len(fields) == 3 && fields[0] == "daily" && fields[1] == "at":
		h, m, err := parseClock(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
		}
		return DailyAt(h, m), nil
	case len(fields) == 5 && fields[0] == "weekly" && fields[1] == "on" && fields[3] == "at":
		day, ok := weekdays[fields[2]]
		h, m, err := parseClock(fields[4])
		if !ok || err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
		}
		return WeeklyOn(day, h, m), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
