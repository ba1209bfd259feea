package wizard

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validation failures. The machine maps each one to a correction hint.
var (
	ErrEmptyText       = errors.New("wizard: empty text")
	ErrDateFormat      = errors.New("wizard: date must look like YYYY/MM/DD")
	ErrDateInvalid     = errors.New("wizard: no such date")
	ErrDatePast        = errors.New("wizard: date is in the past")
	ErrNoDigits        = errors.New("wizard: no digits")
	ErrNotPositive     = errors.New("wizard: value must be positive")
	ErrTooLarge        = errors.New("wizard: value too large")
	ErrCoordinateRange = errors.New("wizard: coordinate out of range")
)

const isoDate = "2006-01-02"

var jalaliDateRe = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})$`)

// ParseText accepts any text with at least one non-space character.
func ParseText(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyText
	}
	return s, nil
}

// ParseDate validates a Jalali YYYY/MM/DD date that is not before the day of
// now and returns the Gregorian ISO date.
func ParseDate(raw string, now time.Time) (string, error) {
	m := jalaliDateRe.FindStringSubmatch(strings.TrimSpace(NormalizeDigits(raw)))
	if m == nil {
		return "", ErrDateFormat
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	jd := JalaliDate{Year: y, Month: mo, Day: d}
	if !jd.Valid() {
		return "", ErrDateInvalid
	}
	day, err := JalaliToGregorian(jd)
	if err != nil {
		return "", ErrDateInvalid
	}
	ty, tm, td := now.Date()
	if day.Before(time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)) {
		return "", ErrDatePast
	}
	return day.Format(isoDate), nil
}

// QuickDate returns the ISO date offset days after the day of now.
func QuickDate(now time.Time, offset int) string {
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC).Format(isoDate)
}

// ParseDeadline keeps the digits of raw and returns a positive day count.
// Only counts that overflow an int are rejected as too large.
func ParseDeadline(raw string) (int, error) {
	digits := DigitsOnly(raw)
	if digits == "" {
		return 0, ErrNoDigits
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, ErrTooLarge
	}
	if n == 0 {
		return 0, ErrNotPositive
	}
	return n, nil
}

// DeadlineDate is the ISO date days after the day of now.
func DeadlineDate(now time.Time, days int) string {
	return QuickDate(now, days)
}

// ParseBudget keeps the digits of raw and returns a whole currency amount.
func ParseBudget(raw string) (int64, error) {
	digits := DigitsOnly(raw)
	if digits == "" {
		return 0, ErrNoDigits
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrTooLarge
	}
	return n, nil
}

// ParseQuantity accepts a free-form quantity with its unit as typed.
func ParseQuantity(raw string) (string, error) {
	return ParseText(raw)
}

// ValidateCoordinate checks a point shared through the transport.
func ValidateCoordinate(c Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return ErrCoordinateRange
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return ErrCoordinateRange
	}
	return nil
}
