package clinic

import (
	"encoding/json"
	"fmt"
)

// Snapshot bucket names.
const (
	bucketPatients     = "patients"
	bucketAppointments = "appointments"
	bucketExaminations = "examinations"
	bucketOrders       = "orders"
	bucketBilling      = "billing"
	bucketCounters     = "counters"
)

// Dataset is the full contents of the five tables.
type Dataset struct {
	Patients     []Patient       `json:"patients"`
	Appointments []Appointment   `json:"appointments"`
	Examinations []Examination   `json:"examinations"`
	Orders       []Order         `json:"orders"`
	Billing      []BillingRecord `json:"billing"`
}

// keyed is satisfied by every table row.
type keyed interface {
	rowID() string
	ownerID() string
}

func (p Patient) rowID() string       { return p.ID }
func (p Patient) ownerID() string     { return p.ID }
func (a Appointment) rowID() string   { return a.ID }
func (a Appointment) ownerID() string { return a.PatientID }
func (e Examination) rowID() string   { return e.ID }
func (e Examination) ownerID() string { return e.PatientID }
func (o Order) rowID() string         { return o.ID }
func (o Order) ownerID() string       { return o.PatientID }
func (b BillingRecord) rowID() string { return b.ID }
func (b BillingRecord) ownerID() string {
	return b.PatientID
}

type state struct {
	patients     []Patient
	appointments []Appointment
	examinations []Examination
	orders       []Order
	billing      []BillingRecord
	ids          *IDGenerator
	// queue is the manual lab order work order. It is session state and is
	// not part of snapshots.
	queue []string
}

func newState() *state {
	return &state{ids: NewIDGenerator()}
}

func (s *state) clone() *state {
	return &state{
		patients:     cloneRows(s.patients, clonePatient),
		appointments: cloneRows(s.appointments, cloneAppointment),
		examinations: cloneRows(s.examinations, cloneExamination),
		orders:       cloneRows(s.orders, cloneOrder),
		billing:      cloneRows(s.billing, cloneBilling),
		ids:          s.ids.clone(),
		queue:        append([]string(nil), s.queue...),
	}
}

func (s *state) observeIDs() {
	for _, p := range s.patients {
		s.ids.Observe(KindPatient, p.ID)
	}
	for _, a := range s.appointments {
		s.ids.Observe(KindAppointment, a.ID)
	}
	for _, e := range s.examinations {
		s.ids.Observe(KindExamination, e.ID)
	}
	for _, o := range s.orders {
		s.ids.Observe(KindOrder, o.ID)
	}
	for _, b := range s.billing {
		s.ids.Observe(KindBilling, b.ID)
	}
}

func (s *state) rebuildQueue() {
	s.queue = make([]string, 0, len(s.orders))
	for _, o := range s.orders {
		s.queue = append(s.queue, o.ID)
	}
}

func (s *state) dataset() Dataset {
	return Dataset{
		Patients:     cloneRows(s.patients, clonePatient),
		Appointments: cloneRows(s.appointments, cloneAppointment),
		Examinations: cloneRows(s.examinations, cloneExamination),
		Orders:       cloneRows(s.orders, cloneOrder),
		Billing:      cloneRows(s.billing, cloneBilling),
	}
}

func stateFromDataset(d Dataset) *state {
	st := newState()
	st.patients = cloneRows(d.Patients, clonePatient)
	st.appointments = cloneRows(d.Appointments, cloneAppointment)
	st.examinations = cloneRows(d.Examinations, cloneExamination)
	st.orders = cloneRows(d.Orders, cloneOrder)
	st.billing = cloneRows(d.Billing, cloneBilling)
	st.observeIDs()
	st.rebuildQueue()
	return st
}

// encodeState renders the tables and id counters as JSON buckets.
func encodeState(s *state) (map[string][]byte, error) {
	buckets := make(map[string][]byte, 6)
	put := func(name string, v interface{}) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		buckets[name] = b
		return nil
	}
	if err := put(bucketPatients, nonNil(s.patients)); err != nil {
		return nil, err
	}
	if err := put(bucketAppointments, nonNil(s.appointments)); err != nil {
		return nil, err
	}
	if err := put(bucketExaminations, nonNil(s.examinations)); err != nil {
		return nil, err
	}
	if err := put(bucketOrders, nonNil(s.orders)); err != nil {
		return nil, err
	}
	if err := put(bucketBilling, nonNil(s.billing)); err != nil {
		return nil, err
	}
	if err := put(bucketCounters, s.ids.Counters()); err != nil {
		return nil, err
	}
	return buckets, nil
}

// decodeState is the inverse of encodeState. Missing buckets decode as empty
// tables.
func decodeState(buckets map[string][]byte) (*state, error) {
	var d Dataset
	get := func(name string, v interface{}) error {
		b, ok := buckets[name]
		if !ok || len(b) == 0 {
			return nil
		}
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
	if err := get(bucketPatients, &d.Patients); err != nil {
		return nil, err
	}
	if err := get(bucketAppointments, &d.Appointments); err != nil {
		return nil, err
	}
	if err := get(bucketExaminations, &d.Examinations); err != nil {
		return nil, err
	}
	if err := get(bucketOrders, &d.Orders); err != nil {
		return nil, err
	}
	if err := get(bucketBilling, &d.Billing); err != nil {
		return nil, err
	}
	counters := map[EntityKind]int{}
	if err := get(bucketCounters, &counters); err != nil {
		return nil, err
	}
	st := stateFromDataset(d)
	st.ids.Restore(counters)
	return st, nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func cloneRows[T any](rows []T, clone func(T) T) []T {
	if rows == nil {
		return nil
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = clone(r)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

func clonePrescription(rx *Prescription) *Prescription {
	if rx == nil {
		return nil
	}
	c := *rx
	return &c
}

func clonePatient(p Patient) Patient {
	p.VisionHistory.Current = clonePrescription(p.VisionHistory.Current)
	p.VisionHistory.Previous = cloneSlice(p.VisionHistory.Previous)
	p.MedicalHistory.Conditions = cloneSlice(p.MedicalHistory.Conditions)
	p.MedicalHistory.Medications = cloneSlice(p.MedicalHistory.Medications)
	p.MedicalHistory.Allergies = cloneSlice(p.MedicalHistory.Allergies)
	p.MedicalHistory.FamilyHistory = cloneSlice(p.MedicalHistory.FamilyHistory)
	p.Visits = cloneSlice(p.Visits)
	p.Documents = cloneSlice(p.Documents)
	p.Communications = cloneSlice(p.Communications)
	p.Notes = cloneSlice(p.Notes)
	return p
}

func cloneAppointment(a Appointment) Appointment { return a }

func cloneExamination(e Examination) Examination {
	e.Prescription = clonePrescription(e.Prescription)
	return e
}

func cloneOrder(o Order) Order {
	if o.Frame != nil {
		f := *o.Frame
		o.Frame = &f
	}
	if o.Lens != nil {
		l := *o.Lens
		l.Coatings = cloneSlice(o.Lens.Coatings)
		o.Lens = &l
	}
	if o.Contacts != nil {
		c := *o.Contacts
		o.Contacts = &c
	}
	return o
}

func cloneBilling(b BillingRecord) BillingRecord { return b }
