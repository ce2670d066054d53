package clinic

import (
	"testing"
	"time"
)

func TestWeekRange(t *testing.T) {
	tests := []struct {
		day        string
		start, end string
	}{
		{"2025-06-12", "2025-06-08", "2025-06-14"},
		{"2025-06-08", "2025-06-08", "2025-06-14"},
		{"2025-06-14", "2025-06-08", "2025-06-14"},
		{"2025-06-15", "2025-06-15", "2025-06-21"},
		{"2025-01-01", "2024-12-29", "2025-01-04"},
	}
	for _, tt := range tests {
		d, _ := time.Parse(DateLayout, tt.day)
		start, end := WeekRange(d)
		if start.Format(DateLayout) != tt.start || end.Format(DateLayout) != tt.end {
			t.Errorf("WeekRange(%s) = %s..%s, want %s..%s", tt.day,
				start.Format(DateLayout), end.Format(DateLayout), tt.start, tt.end)
		}
	}
}

func TestFilterAppointmentList_Errors(t *testing.T) {
	list := []Appointment{{ID: "A-1", Date: "2025-06-12", Time: "09:00"}}
	if _, err := FilterAppointmentList(list, AppointmentFilter{View: ViewWeek}); err == nil {
		t.Error("expected error for week view without a date")
	}
	if _, err := FilterAppointmentList(list, AppointmentFilter{View: "fortnight", Date: "2025-06-12"}); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestFilterAppointmentList_SortsByDateThenTime(t *testing.T) {
	list := []Appointment{
		{ID: "A-3", Date: "2025-06-13", Time: "08:00"},
		{ID: "A-2", Date: "2025-06-12", Time: "14:00"},
		{ID: "A-1", Date: "2025-06-12", Time: "09:00"},
		{ID: "A-4", Date: "undated", Time: "09:00"},
	}
	got, err := FilterAppointmentList(list, AppointmentFilter{View: ViewWeek, Date: "2025-06-12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids(got) != "A-1,A-2,A-3" {
		t.Errorf("unexpected order %s", ids(got))
	}
}

func TestMatchesPatient(t *testing.T) {
	p := Patient{ID: "P-1", FirstName: "Michael", LastName: "Chen", FullName: "Michael Chen", ZipCode: "97401"}
	for _, q := range []string{"", "  ", "chen", "MICHAEL C", "974", "p-1"} {
		if !MatchesPatient(p, q) {
			t.Errorf("expected %q to match", q)
		}
	}
	if MatchesPatient(p, "johnson") {
		t.Error("expected johnson not to match")
	}
}

func TestMoveTarget(t *testing.T) {
	tests := []struct {
		n, i, delta int
		want        int
		ok          bool
	}{
		{3, 1, -1, 0, true},
		{3, 1, 1, 2, true},
		{3, 0, -1, 0, false},
		{3, 2, 1, 0, false},
		{3, -1, 1, 0, false},
		{0, 0, 1, 0, false},
	}
	for _, tt := range tests {
		got, ok := moveTarget(tt.n, tt.i, tt.delta)
		if got != tt.want || ok != tt.ok {
			t.Errorf("moveTarget(%d, %d, %d) = %d, %v; want %d, %v", tt.n, tt.i, tt.delta, got, ok, tt.want, tt.ok)
		}
	}
}
