package wizard

import (
	"errors"
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// JalaliDate is a date in the Solar Hijri calendar. Months 1..6 have 31
// days, 7..11 have 30 and month 12 has 29, or 30 in a leap year.
type JalaliDate struct {
	Year  int
	Month int
	Day   int
}

// ErrJalaliRange is returned for dates outside the supported calendar range.
var ErrJalaliRange = errors.New("wizard: jalali date out of range")

const (
	jalaliMinYear = 1
	jalaliMaxYear = 3177
)

func (d JalaliDate) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// Valid reports whether d names an existing day.
func (d JalaliDate) Valid() bool {
	if d.Year < jalaliMinYear || d.Year > jalaliMaxYear {
		return false
	}
	return d.Day >= 1 && d.Day <= JalaliMonthDays(d.Year, d.Month)
}

// JalaliLeap reports whether jy has 366 days.
func JalaliLeap(jy int) bool {
	return ptime.Date(jy, ptime.Esfand, 1, 0, 0, 0, 0, time.UTC).IsLeap()
}

// JalaliMonthDays returns the length of month jm of year jy, or 0 for a bad month.
func JalaliMonthDays(jy, jm int) int {
	switch {
	case jm >= 1 && jm <= 6:
		return 31
	case jm >= 7 && jm <= 11:
		return 30
	case jm == 12:
		if JalaliLeap(jy) {
			return 30
		}
		return 29
	}
	return 0
}

// JalaliToGregorian converts d to midnight UTC of the same Gregorian day.
func JalaliToGregorian(d JalaliDate) (time.Time, error) {
	if !d.Valid() {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJalaliRange, d)
	}
	return ptime.Date(d.Year, ptime.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Time(), nil
}

// GregorianToJalali converts the calendar day of t, read in t's location.
func GregorianToJalali(t time.Time) JalaliDate {
	y, m, d := ptime.New(t).Date()
	return JalaliDate{Year: y, Month: int(m), Day: d}
}
