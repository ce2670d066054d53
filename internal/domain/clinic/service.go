package clinic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultAppointmentMinutes is used when an appointment omits its duration.
const DefaultAppointmentMinutes Minutes = 30

// MutationObserver is notified after every write the service attempts.
type MutationObserver interface {
	ObserveMutation(entity, op string, err error)
}

// Service is the single entry point to the records store. It fills
// defaults, recomputes derived fields, validates, and runs every write as
// one store transaction.
type Service struct {
	repos Repositories
	log   zerolog.Logger
	now   func() time.Time
	obs   MutationObserver
}

func NewService(repos Repositories, log zerolog.Logger) *Service {
	return &Service{repos: repos, log: log, now: time.Now}
}

// SetClock overrides the clock used for default dates and ages.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetObserver attaches an optional mutation observer.
func (s *Service) SetObserver(obs MutationObserver) {
	s.obs = obs
}

func (s *Service) today() string {
	return s.now().Format(DateLayout)
}

func (s *Service) observe(entity, op string, err error) {
	if s.obs != nil {
		s.obs.ObserveMutation(entity, op, err)
	}
	if err != nil && !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotFound) {
		s.log.Error().Err(err).Str("entity", entity).Str("op", op).Msg("store write failed")
	}
}

func (s *Service) tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.repos.Tx.InTx(ctx, fn)
}

// requirePatient loads the owning patient or reports a patientId field error.
func (s *Service) requirePatient(ctx context.Context, entity, patientID string) (Patient, error) {
	f := newFieldErrors(entity)
	if strings.TrimSpace(patientID) == "" {
		f.add("patientId", "is required")
		return Patient{}, f.err()
	}
	p, err := s.repos.Patients.GetByID(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		f.add("patientId", "unknown patient %s", patientID)
		return Patient{}, f.err()
	}
	return p, err
}

// -- Patients --

func (s *Service) GetPatients(ctx context.Context) ([]Patient, error) {
	return s.repos.Patients.List(ctx)
}

func (s *Service) GetPatientByID(ctx context.Context, id string) (Patient, error) {
	return s.repos.Patients.GetByID(ctx, id)
}

func (s *Service) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	p.ID = ""
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.FullName = FullName(p.FirstName, p.LastName)
	if p.Status == "" {
		p.Status = PatientNew
	}
	if age, err := Age(p.DOB, s.now()); err == nil {
		p.Age = age
	}
	fillPatientCollections(&p)
	for i := range p.Notes {
		s.fillNote(&p.Notes[i])
	}

	var out Patient
	err := validatePatient(p)
	if err == nil {
		out, err = s.repos.Patients.Create(ctx, p)
	}
	s.observe("patient", "create", err)
	return out, err
}

func fillPatientCollections(p *Patient) {
	p.VisionHistory.Previous = nonNil(p.VisionHistory.Previous)
	p.MedicalHistory.Conditions = nonNil(p.MedicalHistory.Conditions)
	p.MedicalHistory.Medications = nonNil(p.MedicalHistory.Medications)
	p.MedicalHistory.Allergies = nonNil(p.MedicalHistory.Allergies)
	p.MedicalHistory.FamilyHistory = nonNil(p.MedicalHistory.FamilyHistory)
	p.Visits = nonNil(p.Visits)
	p.Documents = nonNil(p.Documents)
	p.Communications = nonNil(p.Communications)
	p.Notes = nonNil(p.Notes)
}

// UpdatePatient applies the patch. Fields the patch leaves nil are not
// touched, and derived fields change only when their inputs do.
func (s *Service) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (Patient, error) {
	out, err := s.repos.Patients.Update(ctx, id, func(p *Patient) error {
		patch.apply(p)
		if patch.touchesName() {
			p.FirstName = strings.TrimSpace(p.FirstName)
			p.LastName = strings.TrimSpace(p.LastName)
			p.FullName = FullName(p.FirstName, p.LastName)
		}
		if patch.DOB != nil {
			if age, err := Age(p.DOB, s.now()); err == nil {
				p.Age = age
			}
		}
		return validatePatient(*p)
	})
	s.observe("patient", "update", err)
	return out, err
}

// DeletePatient removes the patient row. Appointments, examinations, orders
// and billing records keep their patientId.
func (s *Service) DeletePatient(ctx context.Context, id string) (bool, error) {
	ok, err := s.repos.Patients.Delete(ctx, id)
	s.observe("patient", "delete", err)
	return ok, err
}

func (s *Service) fillNote(n *Note) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date == "" {
		n.Date = s.today()
	}
}

// AddPatientNote appends a chart note to the patient.
func (s *Service) AddPatientNote(ctx context.Context, patientID string, n Note) (Patient, error) {
	s.fillNote(&n)
	out, err := s.repos.Patients.Update(ctx, patientID, func(p *Patient) error {
		f := newFieldErrors("note")
		f.required("text", n.Text)
		f.date("date", n.Date)
		if err := f.err(); err != nil {
			return err
		}
		p.Notes = append(p.Notes, n)
		return nil
	})
	s.observe("patient", "add_note", err)
	return out, err
}

func (s *Service) SearchPatients(ctx context.Context, q, status string) ([]Patient, error) {
	list, err := s.repos.Patients.List(ctx)
	if err != nil {
		return nil, err
	}
	return SearchPatientList(list, q, status), nil
}

// GetPatientRecord assembles the patient-scoped view from the global tables
// under one consistent read.
func (s *Service) GetPatientRecord(ctx context.Context, id string) (PatientRecord, error) {
	var rec PatientRecord
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		if rec.Patient, err = s.repos.Patients.GetByID(ctx, id); err != nil {
			return err
		}
		if rec.Appointments, err = s.repos.Appointments.ListByPatient(ctx, id); err != nil {
			return err
		}
		sortAppointments(rec.Appointments)
		if rec.Examinations, err = s.repos.Examinations.ListByPatient(ctx, id); err != nil {
			return err
		}
		if rec.Orders, err = s.repos.Orders.ListByPatient(ctx, id); err != nil {
			return err
		}
		if rec.Billing, err = s.repos.Billing.ListByPatient(ctx, id); err != nil {
			return err
		}
		rec.OutstandingBalance, err = OutstandingBalance(rec.Billing)
		return err
	})
	return rec, err
}

// OutstandingBalance is the unpaid patient share across the patient's bills.
func (s *Service) OutstandingBalance(ctx context.Context, patientID string) (Money, error) {
	if _, err := s.repos.Patients.GetByID(ctx, patientID); err != nil {
		return "", err
	}
	records, err := s.repos.Billing.ListByPatient(ctx, patientID)
	if err != nil {
		return "", err
	}
	return OutstandingBalance(records)
}

// -- Appointments --

func (s *Service) GetAppointments(ctx context.Context) ([]Appointment, error) {
	return s.repos.Appointments.List(ctx)
}

func (s *Service) GetAppointmentByID(ctx context.Context, id string) (Appointment, error) {
	return s.repos.Appointments.GetByID(ctx, id)
}

func (s *Service) GetAppointmentsByPatientID(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.repos.Appointments.ListByPatient(ctx, patientID)
}

func (s *Service) GetAppointmentsByDate(ctx context.Context, date string) ([]Appointment, error) {
	list, err := s.repos.Appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterAppointmentList(list, AppointmentFilter{View: ViewDay, Date: date})
}

func (s *Service) GetAppointmentsByDoctor(ctx context.Context, doctor string) ([]Appointment, error) {
	list, err := s.repos.Appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []Appointment{}
	for _, a := range list {
		if a.Doctor == doctor {
			out = append(out, a)
		}
	}
	return out, nil
}

// FilterAppointments applies a calendar filter. A dated view with no date
// anchors on today.
func (s *Service) FilterAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.Date == "" && f.View != "" && f.View != ViewAll {
		f.Date = s.today()
	}
	list, err := s.repos.Appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	out, err := FilterAppointmentList(list, f)
	if err != nil {
		fe := newFieldErrors("appointment filter")
		fe.add("view", "%s", err.Error())
		return nil, fe.err()
	}
	return out, nil
}

// scheduleAppointment normalizes the start time and derives the end time.
func scheduleAppointment(a *Appointment) {
	if t, err := NormalizeClock(a.Time); err == nil {
		a.Time = t
	}
	if a.Duration <= 0 || a.Duration >= minutesPerDay {
		return
	}
	if end, err := EndTime(a.Time, a.Duration); err == nil {
		a.EndTime = end
	}
}

func (s *Service) CreateAppointment(ctx context.Context, a Appointment) (Appointment, error) {
	var out Appointment
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.requirePatient(ctx, "appointment", a.PatientID)
		if err != nil {
			return err
		}
		a.ID = ""
		a.PatientName = p.FullName
		if a.Date == "" {
			a.Date = s.today()
		}
		if a.Duration == 0 {
			a.Duration = DefaultAppointmentMinutes
		}
		if a.Status == "" {
			a.Status = AppointmentScheduled
		}
		if a.Doctor == "" {
			a.Doctor = p.PreferredDoctor
		}
		a.EndTime = ""
		scheduleAppointment(&a)
		if err := validateAppointment(a); err != nil {
			return err
		}
		out, err = s.repos.Appointments.Create(ctx, a)
		return err
	})
	s.observe("appointment", "create", err)
	return out, err
}

func (s *Service) UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (Appointment, error) {
	out, err := s.repos.Appointments.Update(ctx, id, func(a *Appointment) error {
		patch.apply(a)
		if patch.touchesSchedule() {
			scheduleAppointment(a)
		}
		return validateAppointment(*a)
	})
	s.observe("appointment", "update", err)
	return out, err
}

func (s *Service) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	ok, err := s.repos.Appointments.Delete(ctx, id)
	s.observe("appointment", "delete", err)
	return ok, err
}

// -- Examinations --

func (s *Service) GetExaminations(ctx context.Context) ([]Examination, error) {
	return s.repos.Examinations.List(ctx)
}

func (s *Service) GetExaminationByID(ctx context.Context, id string) (Examination, error) {
	return s.repos.Examinations.GetByID(ctx, id)
}

func (s *Service) GetExaminationsByPatientID(ctx context.Context, patientID string) ([]Examination, error) {
	return s.repos.Examinations.ListByPatient(ctx, patientID)
}

func (s *Service) CreateExamination(ctx context.Context, e Examination) (Examination, error) {
	var out Examination
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.requirePatient(ctx, "examination", e.PatientID)
		if err != nil {
			return err
		}
		e.ID = ""
		e.PatientName = p.FullName
		if e.Date == "" {
			e.Date = s.today()
		}
		if t, err := NormalizeClock(e.Time); err == nil {
			e.Time = t
		}
		if e.Doctor == "" {
			e.Doctor = p.PreferredDoctor
		}
		if e.Status == "" {
			e.Status = ExamScheduled
		}
		if e.PreTestingStatus == "" {
			e.PreTestingStatus = PhaseNotStarted
		}
		if e.ExamStatus == "" {
			e.ExamStatus = PhaseNotStarted
		}
		if e.PrescriptionStatus == "" {
			e.PrescriptionStatus = PhaseNotStarted
		}
		if err := validateExamination(e); err != nil {
			return err
		}
		out, err = s.repos.Examinations.Create(ctx, e)
		return err
	})
	s.observe("examination", "create", err)
	return out, err
}

func (s *Service) UpdateExamination(ctx context.Context, id string, patch ExaminationPatch) (Examination, error) {
	out, err := s.repos.Examinations.Update(ctx, id, func(e *Examination) error {
		patch.apply(e)
		if patch.Time != nil {
			if t, err := NormalizeClock(e.Time); err == nil {
				e.Time = t
			}
		}
		return validateExamination(*e)
	})
	s.observe("examination", "update", err)
	return out, err
}

func (s *Service) DeleteExamination(ctx context.Context, id string) (bool, error) {
	ok, err := s.repos.Examinations.Delete(ctx, id)
	s.observe("examination", "delete", err)
	return ok, err
}

// -- Orders --

func (s *Service) GetOrders(ctx context.Context) ([]Order, error) {
	return s.repos.Orders.List(ctx)
}

func (s *Service) GetOrderByID(ctx context.Context, id string) (Order, error) {
	return s.repos.Orders.GetByID(ctx, id)
}

func (s *Service) GetOrdersByPatientID(ctx context.Context, patientID string) ([]Order, error) {
	return s.repos.Orders.ListByPatient(ctx, patientID)
}

// FilterOrders lists orders narrowed by patient, status and priority.
func (s *Service) FilterOrders(ctx context.Context, patientID, status, priority string) ([]Order, error) {
	var list []Order
	var err error
	if patientID != "" {
		list, err = s.repos.Orders.ListByPatient(ctx, patientID)
	} else {
		list, err = s.repos.Orders.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return FilterOrderList(list, status, priority), nil
}

// DeleteOrder removes the order. Its billing record is kept.
func (s *Service) DeleteOrder(ctx context.Context, id string) (bool, error) {
	ok, err := s.repos.Orders.Delete(ctx, id)
	s.observe("order", "delete", err)
	return ok, err
}

// LabOrderQueue returns orders in the manually arranged work order.
func (s *Service) LabOrderQueue(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.tx(ctx, func(ctx context.Context) error {
		ids, err := s.repos.Orders.Queue(ctx)
		if err != nil {
			return err
		}
		out = make([]Order, 0, len(ids))
		for _, id := range ids {
			o, err := s.repos.Orders.GetByID(ctx, id)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

func (s *Service) moveLabOrder(ctx context.Context, i, delta int) (bool, error) {
	var moved bool
	err := s.tx(ctx, func(ctx context.Context) error {
		ids, err := s.repos.Orders.Queue(ctx)
		if err != nil {
			return err
		}
		j, ok := moveTarget(len(ids), i, delta)
		if !ok {
			return nil
		}
		moved = true
		return s.repos.Orders.Swap(ctx, i, j)
	})
	return moved, err
}

// MoveLabOrderUp swaps queue position i with the one before it. Moving the
// first entry or an out-of-range index is a no-op that reports false.
func (s *Service) MoveLabOrderUp(ctx context.Context, i int) (bool, error) {
	return s.moveLabOrder(ctx, i, -1)
}

// MoveLabOrderDown swaps queue position i with the one after it.
func (s *Service) MoveLabOrderDown(ctx context.Context, i int) (bool, error) {
	return s.moveLabOrder(ctx, i, 1)
}

// -- Billing --

func (s *Service) GetBillingRecords(ctx context.Context) ([]BillingRecord, error) {
	return s.repos.Billing.List(ctx)
}

func (s *Service) GetBillingRecordByID(ctx context.Context, id string) (BillingRecord, error) {
	return s.repos.Billing.GetByID(ctx, id)
}

func (s *Service) GetBillingRecordsByPatientID(ctx context.Context, patientID string) ([]BillingRecord, error) {
	return s.repos.Billing.ListByPatient(ctx, patientID)
}

// FilterBilling lists billing records narrowed by patient and status.
func (s *Service) FilterBilling(ctx context.Context, patientID, status string) ([]BillingRecord, error) {
	var list []BillingRecord
	var err error
	if patientID != "" {
		list, err = s.repos.Billing.ListByPatient(ctx, patientID)
	} else {
		list, err = s.repos.Billing.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return FilterBillingList(list, status), nil
}

// fillBilling applies billing defaults. The patient share defaults to what
// insurance does not cover.
func (s *Service) fillBilling(b *BillingRecord) {
	if b.Date == "" {
		b.Date = s.today()
	}
	if b.Status == "" {
		b.Status = BillingDue
	}
	if b.Total == "" {
		b.Total = ZeroMoney
	}
	if b.Insurance == "" {
		b.Insurance = ZeroMoney
	}
	if b.Patient == "" {
		if share, err := orderBalance(b.Total, b.Insurance); err == nil {
			b.Patient = share
		}
	}
}

func (s *Service) CreateBillingRecord(ctx context.Context, b BillingRecord) (BillingRecord, error) {
	var out BillingRecord
	err := s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.requirePatient(ctx, "billing record", b.PatientID); err != nil {
			return err
		}
		b.ID = ""
		s.fillBilling(&b)
		if err := validateBilling(b); err != nil {
			return err
		}
		if err := s.checkRelated(ctx, b); err != nil {
			return err
		}
		var err error
		out, err = s.repos.Billing.Create(ctx, b)
		return err
	})
	s.observe("billing", "create", err)
	return out, err
}

// UpdateBillingRecord applies the patch. Amount changes on an order's bill
// are written back to the order in the same transaction, so the order price,
// insurance and balance always match the bill.
func (s *Service) UpdateBillingRecord(ctx context.Context, id string, patch BillingPatch) (BillingRecord, error) {
	var out BillingRecord
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repos.Billing.Update(ctx, id, func(b *BillingRecord) error {
			patch.apply(b)
			if patch.touchesAmounts() {
				b.Total = b.Total.Normalize()
				b.Insurance = b.Insurance.Normalize()
				b.Patient = b.Patient.Normalize()
			}
			return validateBilling(*b)
		})
		if err != nil {
			return err
		}
		if !patch.touchesAmounts() || out.RelatedEntityType != RelatedOrder {
			return nil
		}
		_, err = s.repos.Orders.Update(ctx, out.RelatedEntityID, func(o *Order) error {
			o.Price = out.Total
			o.Insurance = out.Insurance
			o.Balance = out.Patient
			return validateOrder(*o)
		})
		if errors.Is(err, ErrNotFound) {
			// The order was deleted; its bill stands alone.
			return nil
		}
		return err
	})
	s.observe("billing", "update", err)
	return out, err
}

func (s *Service) DeleteBillingRecord(ctx context.Context, id string) (bool, error) {
	ok, err := s.repos.Billing.Delete(ctx, id)
	s.observe("billing", "delete", err)
	return ok, err
}
