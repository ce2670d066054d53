package clinic

// Patches are partial updates. A nil field is left untouched; a non-nil
// field replaces the stored value. Nested structs have their own patch type
// so a single insurance field can change without resending the rest.

// InsurancePatch updates individual insurance fields.
type InsurancePatch struct {
	Provider     *string `json:"provider,omitempty"`
	PolicyNumber *string `json:"policyNumber,omitempty"`
	GroupNumber  *string `json:"groupNumber,omitempty"`
	HolderName   *string `json:"holderName,omitempty"`
	CoverageType *string `json:"coverageType,omitempty"`
}

func (p *InsurancePatch) apply(ins *Insurance) {
	if p == nil {
		return
	}
	set(&ins.Provider, p.Provider)
	set(&ins.PolicyNumber, p.PolicyNumber)
	set(&ins.GroupNumber, p.GroupNumber)
	set(&ins.HolderName, p.HolderName)
	set(&ins.CoverageType, p.CoverageType)
}

// MedicalHistoryPatch replaces individual history lists.
type MedicalHistoryPatch struct {
	Conditions    *[]string `json:"conditions,omitempty"`
	Medications   *[]string `json:"medications,omitempty"`
	Allergies     *[]string `json:"allergies,omitempty"`
	FamilyHistory *[]string `json:"familyHistory,omitempty"`
}

func (p *MedicalHistoryPatch) apply(h *MedicalHistory) {
	if p == nil {
		return
	}
	set(&h.Conditions, p.Conditions)
	set(&h.Medications, p.Medications)
	set(&h.Allergies, p.Allergies)
	set(&h.FamilyHistory, p.FamilyHistory)
}

// PatientPatch is a partial patient update. Setting CurrentPrescription moves
// the previous current prescription onto the history list.
type PatientPatch struct {
	FirstName           *string              `json:"firstName,omitempty"`
	LastName            *string              `json:"lastName,omitempty"`
	DOB                 *string              `json:"dob,omitempty"`
	Gender              *string              `json:"gender,omitempty"`
	Email               *string              `json:"email,omitempty"`
	Phone               *string              `json:"phone,omitempty"`
	Address             *string              `json:"address,omitempty"`
	City                *string              `json:"city,omitempty"`
	State               *string              `json:"state,omitempty"`
	ZipCode             *string              `json:"zipCode,omitempty"`
	HealthcareNumber    *string              `json:"healthcareNumber,omitempty"`
	Status              *string              `json:"status,omitempty"`
	PreferredDoctor     *string              `json:"preferredDoctor,omitempty"`
	Insurance           *InsurancePatch      `json:"insurance,omitempty"`
	MedicalHistory      *MedicalHistoryPatch `json:"medicalHistory,omitempty"`
	CurrentPrescription *Prescription        `json:"currentPrescription,omitempty"`
}

func (p PatientPatch) touchesName() bool { return p.FirstName != nil || p.LastName != nil }

func (p PatientPatch) apply(pt *Patient) {
	set(&pt.FirstName, p.FirstName)
	set(&pt.LastName, p.LastName)
	set(&pt.DOB, p.DOB)
	set(&pt.Gender, p.Gender)
	set(&pt.Email, p.Email)
	set(&pt.Phone, p.Phone)
	set(&pt.Address, p.Address)
	set(&pt.City, p.City)
	set(&pt.State, p.State)
	set(&pt.ZipCode, p.ZipCode)
	set(&pt.HealthcareNumber, p.HealthcareNumber)
	set(&pt.Status, p.Status)
	set(&pt.PreferredDoctor, p.PreferredDoctor)
	p.Insurance.apply(&pt.Insurance)
	p.MedicalHistory.apply(&pt.MedicalHistory)
	if p.CurrentPrescription != nil {
		if pt.VisionHistory.Current != nil {
			pt.VisionHistory.Previous = append([]Prescription{*pt.VisionHistory.Current}, pt.VisionHistory.Previous...)
		}
		rx := *p.CurrentPrescription
		pt.VisionHistory.Current = &rx
	}
}

// AppointmentPatch is a partial appointment update.
type AppointmentPatch struct {
	Date      *string  `json:"date,omitempty"`
	Time      *string  `json:"time,omitempty"`
	Duration  *Minutes `json:"duration,omitempty"`
	Type      *string  `json:"type,omitempty"`
	Doctor    *string  `json:"doctor,omitempty"`
	Status    *string  `json:"status,omitempty"`
	Room      *string  `json:"room,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
	BillingID *string  `json:"billingId,omitempty"`
}

func (p AppointmentPatch) touchesSchedule() bool { return p.Time != nil || p.Duration != nil }

func (p AppointmentPatch) apply(a *Appointment) {
	set(&a.Date, p.Date)
	set(&a.Time, p.Time)
	set(&a.Duration, p.Duration)
	set(&a.Type, p.Type)
	set(&a.Doctor, p.Doctor)
	set(&a.Status, p.Status)
	set(&a.Room, p.Room)
	set(&a.Notes, p.Notes)
	set(&a.BillingID, p.BillingID)
}

// ExaminationPatch is a partial examination update.
type ExaminationPatch struct {
	Date               *string       `json:"date,omitempty"`
	Time               *string       `json:"time,omitempty"`
	Type               *string       `json:"type,omitempty"`
	Doctor             *string       `json:"doctor,omitempty"`
	Status             *string       `json:"status,omitempty"`
	PreTestingStatus   *string       `json:"preTestingStatus,omitempty"`
	ExamStatus         *string       `json:"examStatus,omitempty"`
	PrescriptionStatus *string       `json:"prescriptionStatus,omitempty"`
	Prescription       *Prescription `json:"prescription,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
}

func (p ExaminationPatch) apply(e *Examination) {
	set(&e.Date, p.Date)
	set(&e.Time, p.Time)
	set(&e.Type, p.Type)
	set(&e.Doctor, p.Doctor)
	set(&e.Status, p.Status)
	set(&e.PreTestingStatus, p.PreTestingStatus)
	set(&e.ExamStatus, p.ExamStatus)
	set(&e.PrescriptionStatus, p.PrescriptionStatus)
	set(&e.Notes, p.Notes)
	if p.Prescription != nil {
		rx := *p.Prescription
		e.Prescription = &rx
	}
}

// OrderPatch is a partial order update. Type cannot change after creation
// because the billing description and variant payload depend on it.
type OrderPatch struct {
	Status    *string             `json:"status,omitempty"`
	Price     *Money              `json:"price,omitempty"`
	Insurance *Money              `json:"insurance,omitempty"`
	Balance   *Money              `json:"balance,omitempty"`
	Priority  *string             `json:"priority,omitempty"`
	Lab       *string             `json:"lab,omitempty"`
	DueDate   *string             `json:"dueDate,omitempty"`
	Notes     *string             `json:"notes,omitempty"`
	Frame     *FrameDetails       `json:"frame,omitempty"`
	Lens      *LensDetails        `json:"lens,omitempty"`
	Contacts  *ContactLensDetails `json:"contacts,omitempty"`
}

func (p OrderPatch) apply(o *Order) {
	set(&o.Status, p.Status)
	set(&o.Price, p.Price)
	set(&o.Insurance, p.Insurance)
	set(&o.Balance, p.Balance)
	set(&o.Priority, p.Priority)
	set(&o.Lab, p.Lab)
	set(&o.DueDate, p.DueDate)
	set(&o.Notes, p.Notes)
	if p.Frame != nil {
		f := *p.Frame
		o.Frame = &f
	}
	if p.Lens != nil {
		l := *p.Lens
		l.Coatings = append([]string(nil), p.Lens.Coatings...)
		o.Lens = &l
	}
	if p.Contacts != nil {
		c := *p.Contacts
		o.Contacts = &c
	}
}

// BillingPatch is a partial billing record update.
type BillingPatch struct {
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	Total       *Money  `json:"total,omitempty"`
	Insurance   *Money  `json:"insurance,omitempty"`
	Patient     *Money  `json:"patient,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (p BillingPatch) apply(b *BillingRecord) {
	set(&b.Date, p.Date)
	set(&b.Description, p.Description)
	set(&b.Total, p.Total)
	set(&b.Insurance, p.Insurance)
	set(&b.Patient, p.Patient)
	set(&b.Status, p.Status)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (p OrderPatch) touchesAmounts() bool {
	return p.Price != nil || p.Insurance != nil || p.Balance != nil
}

func (p BillingPatch) touchesAmounts() bool {
	return p.Total != nil || p.Insurance != nil || p.Patient != nil
}
