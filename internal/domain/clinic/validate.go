package clinic

import "strings"

// Validation runs once, in the service, after defaults and derived fields
// are filled in. Every entity follows the same rules for shared field kinds.

func (f *fieldErrors) date(field, value string) {
	if value != "" && !validDate(value) {
		f.add(field, "must be a YYYY-MM-DD date, got %q", value)
	}
}

func (f *fieldErrors) clock(field, value string) {
	if value == "" {
		return
	}
	if _, err := parseClock(value); err != nil {
		f.add(field, "must be HH:MM, got %q", value)
	}
}

func (f *fieldErrors) money(field string, value Money) {
	if !value.Valid() {
		f.add(field, "must be an amount like $123.45, got %q", string(value))
		return
	}
	if c, _ := value.Cents(); c < 0 {
		f.add(field, "must not be negative")
	}
}

func validatePatient(p Patient) error {
	f := newFieldErrors("patient")
	f.required("firstName", p.FirstName)
	f.required("lastName", p.LastName)
	f.enum("status", p.Status, validPatientStatuses)
	f.date("dob", p.DOB)
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		f.add("email", "must be an email address, got %q", p.Email)
	}
	if rx := p.VisionHistory.Current; rx != nil {
		f.date("visionHistory.current.date", rx.Date)
	}
	for _, n := range p.Notes {
		if strings.TrimSpace(n.Text) == "" {
			f.add("notes", "note text is required")
			break
		}
	}
	return f.err()
}

func validateAppointment(a Appointment) error {
	f := newFieldErrors("appointment")
	f.required("patientId", a.PatientID)
	f.required("date", a.Date)
	f.date("date", a.Date)
	f.required("time", a.Time)
	f.clock("time", a.Time)
	f.required("type", a.Type)
	f.required("doctor", a.Doctor)
	f.enum("status", a.Status, validAppointmentStatuses)
	if a.Duration <= 0 {
		f.add("duration", "must be a positive number of minutes")
	} else if a.Duration >= minutesPerDay {
		f.add("duration", "must be shorter than a day")
	}
	return f.err()
}

func validateExamination(e Examination) error {
	f := newFieldErrors("examination")
	f.required("patientId", e.PatientID)
	f.required("date", e.Date)
	f.date("date", e.Date)
	f.clock("time", e.Time)
	f.required("type", e.Type)
	f.required("doctor", e.Doctor)
	f.enum("status", e.Status, validExamStatuses)
	f.enum("preTestingStatus", e.PreTestingStatus, validPhases)
	f.enum("examStatus", e.ExamStatus, validPhases)
	f.enum("prescriptionStatus", e.PrescriptionStatus, validPhases)
	if e.Prescription != nil {
		f.date("prescription.date", e.Prescription.Date)
	}
	return f.err()
}

func validateOrder(o Order) error {
	f := newFieldErrors("order")
	f.required("patientId", o.PatientID)
	f.required("date", o.Date)
	f.date("date", o.Date)
	f.date("dueDate", o.DueDate)
	f.required("type", o.Type)
	f.oneOf("type", o.Type, validOrderTypes)
	f.enum("status", o.Status, validOrderStatuses)
	f.enum("priority", o.Priority, validPriorities)
	f.money("price", o.Price)
	f.money("insurance", o.Insurance)
	f.money("balance", o.Balance)
	if o.Type != OrderGlasses {
		if o.Frame != nil {
			f.add("frame", "only allowed on %s orders", OrderGlasses)
		}
		if o.Lens != nil {
			f.add("lens", "only allowed on %s orders", OrderGlasses)
		}
	}
	if o.Type != OrderContactLenses && o.Contacts != nil {
		f.add("contacts", "only allowed on %s orders", OrderContactLenses)
	}
	if o.Contacts != nil && o.Contacts.Quantity < 0 {
		f.add("contacts.quantity", "must not be negative")
	}
	return f.err()
}

func validateBilling(b BillingRecord) error {
	f := newFieldErrors("billing record")
	f.required("patientId", b.PatientID)
	f.required("date", b.Date)
	f.date("date", b.Date)
	f.required("description", b.Description)
	f.money("total", b.Total)
	f.money("insurance", b.Insurance)
	f.money("patient", b.Patient)
	f.enum("status", b.Status, validBillingStatuses)
	f.oneOf("relatedEntityType", b.RelatedEntityType, validRelatedTypes)
	switch {
	case b.RelatedEntityID != "" && b.RelatedEntityType == "":
		f.add("relatedEntityType", "is required when relatedEntityId is set")
	case b.RelatedEntityID == "" && b.RelatedEntityType != "":
		f.add("relatedEntityId", "is required when relatedEntityType is set")
	}
	return f.err()
}
