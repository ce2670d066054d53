package clinic

import "context"

type PatientRepository interface {
	List(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id string) (Patient, error)
	Create(ctx context.Context, p Patient) (Patient, error)
	Update(ctx context.Context, id string, mutate func(*Patient) error) (Patient, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type AppointmentRepository interface {
	List(ctx context.Context) ([]Appointment, error)
	GetByID(ctx context.Context, id string) (Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	Create(ctx context.Context, a Appointment) (Appointment, error)
	Update(ctx context.Context, id string, mutate func(*Appointment) error) (Appointment, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ExaminationRepository interface {
	List(ctx context.Context) ([]Examination, error)
	GetByID(ctx context.Context, id string) (Examination, error)
	ListByPatient(ctx context.Context, patientID string) ([]Examination, error)
	Create(ctx context.Context, e Examination) (Examination, error)
	Update(ctx context.Context, id string, mutate func(*Examination) error) (Examination, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type OrderRepository interface {
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	ListByPatient(ctx context.Context, patientID string) ([]Order, error)
	Create(ctx context.Context, o Order) (Order, error)
	Update(ctx context.Context, id string, mutate func(*Order) error) (Order, error)
	Delete(ctx context.Context, id string) (bool, error)
	// Queue returns order ids in the manually arranged work order.
	Queue(ctx context.Context) ([]string, error)
	// Swap exchanges the queue positions i and j.
	Swap(ctx context.Context, i, j int) error
}

type BillingRepository interface {
	List(ctx context.Context) ([]BillingRecord, error)
	GetByID(ctx context.Context, id string) (BillingRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]BillingRecord, error)
	Create(ctx context.Context, b BillingRecord) (BillingRecord, error)
	Update(ctx context.Context, id string, mutate func(*BillingRecord) error) (BillingRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// TxRunner runs fn as one all-or-nothing unit. Repository calls made with the
// ctx passed to fn join the transaction; if fn returns an error none of
// their writes become visible.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles every table of one store.
type Repositories struct {
	Patients     PatientRepository
	Appointments AppointmentRepository
	Examinations ExaminationRepository
	Orders       OrderRepository
	Billing      BillingRepository
	Tx           TxRunner
}
