// Package expiry validates the expiration month/year a customer types into
// the checkout form. Cards stay valid through the last instant of their
// expiry month.
package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FromMonthYear combines the form's expMonth ("5" or "05") and expYear
// ("27" or "2027") into the canonical YYMM form.
func FromMonthYear(month, year string) (string, error) {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return "", fmt.Errorf("expiration month must be 01..12")
	}
	y := strings.TrimSpace(year)
	if len(y) == 4 {
		y = y[2:]
	}
	if len(y) != 2 {
		return "", fmt.Errorf("expiration year must be YY or YYYY")
	}
	yy, err := strconv.Atoi(y)
	if err != nil {
		return "", fmt.Errorf("expiration year must be digits")
	}
	return fmt.Sprintf("%02d%02d", yy, m), nil
}

// ValidateYYMM checks the YYMM form: four digits, month 01..12.
func ValidateYYMM(yymm string) error {
	if len(yymm) != 4 {
		return fmt.Errorf("expiry must be YYMM (4 digits)")
	}
	for i := 0; i < 4; i++ {
		if yymm[i] < '0' || yymm[i] > '9' {
			return fmt.Errorf("expiry must be digits: YYMM")
		}
	}
	mm := int(yymm[2]-'0')*10 + int(yymm[3]-'0')
	if mm < 1 || mm > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}

// EndOfMonth parses YYMM into the last instant of that month in loc
// (UTC when nil).
func EndOfMonth(yymm string, loc *time.Location) (time.Time, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	yy, _ := strconv.Atoi(yymm[:2])
	mm, _ := strconv.Atoi(yymm[2:])
	firstNext := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// IsExpired reports whether 'at' falls strictly after the end of the
// card's expiry month.
func IsExpired(yymm string, at time.Time, loc *time.Location) (bool, error) {
	end, err := EndOfMonth(yymm, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}
