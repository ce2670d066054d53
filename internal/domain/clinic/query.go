package clinic

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PatientSearchFields lists the fields patient search matches against.
var PatientSearchFields = []string{
	"id", "fullName", "firstName", "lastName", "phone", "email",
	"address", "city", "state", "zipCode", "healthcareNumber",
}

func patientSearchValues(p Patient) []string {
	return []string{
		p.ID, p.FullName, p.FirstName, p.LastName, p.Phone, p.Email,
		p.Address, p.City, p.State, p.ZipCode, p.HealthcareNumber,
	}
}

// MatchesPatient reports whether q is a case-insensitive substring of any
// search field. An empty query matches everything.
func MatchesPatient(p Patient, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, v := range patientSearchValues(p) {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// SearchPatientList filters patients by query and, when set, status.
func SearchPatientList(list []Patient, q, status string) []Patient {
	out := []Patient{}
	for _, p := range list {
		if status != "" && p.Status != status {
			continue
		}
		if MatchesPatient(p, q) {
			out = append(out, p)
		}
	}
	return out
}

// Calendar views accepted by AppointmentFilter.
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
	ViewAll   = "all"
)

// ProviderAll disables provider filtering.
const ProviderAll = "all"

// AppointmentFilter narrows an appointment list for the calendar.
type AppointmentFilter struct {
	Provider  string
	View      string
	Date      string
	Status    string
	PatientID string
}

// WeekRange returns the Sunday starting the week that contains d and the
// Saturday ending it.
func WeekRange(d time.Time) (time.Time, time.Time) {
	start := d.AddDate(0, 0, -int(d.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

func inView(view string, anchor, d time.Time) bool {
	switch view {
	case ViewDay:
		return d.Equal(anchor)
	case ViewWeek:
		start, end := WeekRange(anchor)
		return !d.Before(start) && !d.After(end)
	case ViewMonth:
		return d.Year() == anchor.Year() && d.Month() == anchor.Month()
	}
	return true
}

// FilterAppointmentList applies f and sorts the result by date then time.
func FilterAppointmentList(list []Appointment, f AppointmentFilter) ([]Appointment, error) {
	view := f.View
	if view == "" {
		view = ViewAll
	}
	var anchor time.Time
	switch view {
	case ViewAll:
	case ViewDay, ViewWeek, ViewMonth:
		var err error
		anchor, err = time.Parse(DateLayout, f.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD for the %s view, got %q", view, f.Date)
		}
	default:
		return nil, fmt.Errorf("invalid view %q", f.View)
	}

	out := []Appointment{}
	for _, a := range list {
		if f.Provider != "" && f.Provider != ProviderAll && a.Doctor != f.Provider {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if view != ViewAll {
			d, err := time.Parse(DateLayout, a.Date)
			if err != nil || !inView(view, anchor, d) {
				continue
			}
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func sortAppointments(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].Time < list[j].Time
	})
}

// FilterOrderList keeps orders matching status and priority when set.
func FilterOrderList(list []Order, status, priority string) []Order {
	out := []Order{}
	for _, o := range list {
		if status != "" && o.Status != status {
			continue
		}
		if priority != "" && o.Priority != priority {
			continue
		}
		out = append(out, o)
	}
	return out
}

// FilterBillingList keeps records with the given status when set.
func FilterBillingList(list []BillingRecord, status string) []BillingRecord {
	out := []BillingRecord{}
	for _, b := range list {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// moveTarget returns the index an item at i swaps with when moved by delta
// within a list of n, or false when the move would leave the list.
func moveTarget(n, i, delta int) (int, bool) {
	if i < 0 || i >= n {
		return 0, false
	}
	j := i + delta
	if j < 0 || j >= n {
		return 0, false
	}
	return j, true
}
