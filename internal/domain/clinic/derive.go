package clinic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by every entity.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// FullName joins first and last name the way the chart displays it.
func FullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// parseClock parses "H:MM" or "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || h == "" || len(h) > 2 {
		return 0, fmt.Errorf("time must be HH:MM, got %q", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("time must be HH:MM, got %q", s)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("time must be HH:MM, got %q", s)
	}
	return hours*60 + mins, nil
}

func formatClock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// EndTime adds duration minutes to a "HH:MM" start time. The result is always
// zero-padded and wraps past midnight, so "23:30" + 60 is "00:30".
func EndTime(start string, duration Minutes) (string, error) {
	m, err := parseClock(start)
	if err != nil {
		return "", err
	}
	return formatClock(m + int(duration)), nil
}

// NormalizeClock rewrites "9:05" as "09:05".
func NormalizeClock(s string) (string, error) {
	m, err := parseClock(s)
	if err != nil {
		return "", err
	}
	return formatClock(m), nil
}

// OutstandingBalance sums the patient share of every record not yet paid.
func OutstandingBalance(records []BillingRecord) (Money, error) {
	var total int64
	for _, r := range records {
		if r.Status == BillingPaid {
			continue
		}
		c, err := r.Patient.Cents()
		if err != nil {
			return "", fmt.Errorf("billing record %s: %w", r.ID, err)
		}
		if total, err = addCents(total, c); err != nil {
			return "", fmt.Errorf("outstanding balance: %w", err)
		}
	}
	return FormatCents(total), nil
}

// Age returns completed years between dob and now, or 0 when dob is unset or
// in the future.
func Age(dob string, now time.Time) (int, error) {
	if dob == "" {
		return 0, nil
	}
	born, err := time.Parse(DateLayout, dob)
	if err != nil {
		return 0, fmt.Errorf("dob must be YYYY-MM-DD, got %q", dob)
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return 0, nil
	}
	return years, nil
}

// orderBalance is the patient's share of an order when none was given.
func orderBalance(price, insurance Money) (Money, error) {
	p, err := price.Cents()
	if err != nil {
		return "", err
	}
	i, err := insurance.Cents()
	if err != nil {
		return "", err
	}
	if i > p {
		return ZeroMoney, nil
	}
	return FormatCents(p - i), nil
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
