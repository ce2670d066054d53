package clinic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Patient status values.
const (
	PatientActive   = "Active"
	PatientInactive = "Inactive"
	PatientNew      = "New"
)

// Appointment status values.
const (
	AppointmentScheduled  = "Scheduled"
	AppointmentCheckedIn  = "Checked In"
	AppointmentInProgress = "In Progress"
	AppointmentCompleted  = "Completed"
	AppointmentCancelled  = "Cancelled"
	AppointmentNoShow     = "No Show"
)

// Examination status values.
const (
	ExamScheduled  = "Scheduled"
	ExamWaiting    = "Waiting"
	ExamInProgress = "In Progress"
	ExamCompleted  = "Completed"
	ExamCancelled  = "Cancelled"
)

// Workflow phase values shared by the three examination sub-statuses.
const (
	PhaseNotStarted = "Not Started"
	PhaseInProgress = "In Progress"
	PhaseCompleted  = "Completed"
)

// Order types. The type decides which variant payload an order may carry.
const (
	OrderGlasses       = "Glasses"
	OrderContactLenses = "Contact Lenses"
	OrderAccessories   = "Accessories"
	OrderOther         = "Other"
)

// Order status values.
const (
	OrderOrdered        = "Ordered"
	OrderInProgress     = "In Progress"
	OrderReadyForPickup = "Ready for Pickup"
	OrderDispensed      = "Dispensed"
	OrderDelayed        = "Delayed"
)

// Order priority values.
const (
	PriorityNormal = "Normal"
	PriorityRush   = "Rush"
	PriorityHigh   = "High"
)

// Billing status values.
const (
	BillingDue              = "Due"
	BillingPaid             = "Paid"
	BillingPartial          = "Partial"
	BillingInsurancePending = "Insurance Pending"
)

// Entity types a billing record can point back to.
const (
	RelatedOrder       = "Order"
	RelatedVisit       = "Visit"
	RelatedExamination = "Examination"
)

var (
	validPatientStatuses = map[string]bool{
		PatientActive: true, PatientInactive: true, PatientNew: true,
	}
	validAppointmentStatuses = map[string]bool{
		AppointmentScheduled: true, AppointmentCheckedIn: true, AppointmentInProgress: true,
		AppointmentCompleted: true, AppointmentCancelled: true, AppointmentNoShow: true,
	}
	validExamStatuses = map[string]bool{
		ExamScheduled: true, ExamWaiting: true, ExamInProgress: true,
		ExamCompleted: true, ExamCancelled: true,
	}
	validPhases = map[string]bool{
		PhaseNotStarted: true, PhaseInProgress: true, PhaseCompleted: true,
	}
	validOrderTypes = map[string]bool{
		OrderGlasses: true, OrderContactLenses: true, OrderAccessories: true, OrderOther: true,
	}
	validOrderStatuses = map[string]bool{
		OrderOrdered: true, OrderInProgress: true, OrderReadyForPickup: true,
		OrderDispensed: true, OrderDelayed: true,
	}
	validPriorities = map[string]bool{
		PriorityNormal: true, PriorityRush: true, PriorityHigh: true,
	}
	validBillingStatuses = map[string]bool{
		BillingDue: true, BillingPaid: true, BillingPartial: true, BillingInsurancePending: true,
	}
	validRelatedTypes = map[string]bool{
		RelatedOrder: true, RelatedVisit: true, RelatedExamination: true,
	}
)

// Insurance is the single coverage record carried by a patient.
type Insurance struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policyNumber"`
	GroupNumber  string `json:"groupNumber"`
	HolderName   string `json:"holderName"`
	CoverageType string `json:"coverageType"`
}

// EyeRx is the refraction for one eye.
type EyeRx struct {
	Sphere   string `json:"sphere"`
	Cylinder string `json:"cylinder"`
	Axis     string `json:"axis"`
	Add      string `json:"add"`
}

// Prescription is a spectacle or contact lens prescription.
type Prescription struct {
	Date     string `json:"date"`
	Doctor   string `json:"doctor"`
	RightEye EyeRx  `json:"rightEye"`
	LeftEye  EyeRx  `json:"leftEye"`
	PD       string `json:"pd"`
	Notes    string `json:"notes"`
}

// VisionHistory holds the current prescription and the ones it replaced.
type VisionHistory struct {
	Current  *Prescription  `json:"current,omitempty"`
	Previous []Prescription `json:"previous"`
}

// MedicalHistory is the patient's self-reported medical background.
type MedicalHistory struct {
	Conditions    []string `json:"conditions"`
	Medications   []string `json:"medications"`
	Allergies     []string `json:"allergies"`
	FamilyHistory []string `json:"familyHistory"`
}

// Visit is a past clinic visit owned by the patient.
type Visit struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
	Doctor    string `json:"doctor"`
	BillingID string `json:"billingId,omitempty"`
}

// Document is metadata about a file attached to the patient chart.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Date string `json:"date"`
}

// Communication is a message sent to or received from the patient.
type Communication struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Channel string `json:"channel"`
	Subject string `json:"subject"`
}

// Note is a free-text chart note.
type Note struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Patient is the root clinical record. Orders and billing records live in
// their own tables and are joined by PatientID; see PatientRecord.
type Patient struct {
	ID               string          `json:"id"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	FullName         string          `json:"fullName"`
	DOB              string          `json:"dob"`
	Age              int             `json:"age"`
	Gender           string          `json:"gender"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	City             string          `json:"city"`
	State            string          `json:"state"`
	ZipCode          string          `json:"zipCode"`
	HealthcareNumber string          `json:"healthcareNumber"`
	Status           string          `json:"status"`
	PreferredDoctor  string          `json:"preferredDoctor"`
	Insurance        Insurance       `json:"insurance"`
	VisionHistory    VisionHistory   `json:"visionHistory"`
	MedicalHistory   MedicalHistory  `json:"medicalHistory"`
	Visits           []Visit         `json:"visits"`
	Documents        []Document      `json:"documents"`
	Communications   []Communication `json:"communications"`
	Notes            []Note          `json:"notes"`
}

// Minutes is a duration in whole minutes. It decodes from a JSON number or a
// numeric string so "30" and 30 are both accepted.
type Minutes int

// UnmarshalJSON implements json.Unmarshaler.
func (m *Minutes) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*m = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("duration must be a whole number of minutes, got %s", string(b))
	}
	*m = Minutes(n)
	return nil
}

// Appointment is a scheduled slot with a provider.
type Appointment struct {
	ID          string  `json:"id"`
	PatientID   string  `json:"patientId"`
	PatientName string  `json:"patientName"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	EndTime     string  `json:"endTime"`
	Duration    Minutes `json:"duration"`
	Type        string  `json:"type"`
	Doctor      string  `json:"doctor"`
	Status      string  `json:"status"`
	Room        string  `json:"room,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	BillingID   string  `json:"billingId,omitempty"`
}

// Examination is a clinical encounter with three independent workflow phases.
type Examination struct {
	ID                 string        `json:"id"`
	PatientID          string        `json:"patientId"`
	PatientName        string        `json:"patientName"`
	Date               string        `json:"date"`
	Time               string        `json:"time"`
	Type               string        `json:"type"`
	Doctor             string        `json:"doctor"`
	Status             string        `json:"status"`
	PreTestingStatus   string        `json:"preTestingStatus"`
	ExamStatus         string        `json:"examStatus"`
	PrescriptionStatus string        `json:"prescriptionStatus"`
	Prescription       *Prescription `json:"prescription,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	BillingID          string        `json:"billingId,omitempty"`
}

// FrameDetails is the frame portion of a glasses order.
type FrameDetails struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Color string `json:"color"`
	Size  string `json:"size"`
}

// LensDetails is the lens portion of a glasses order.
type LensDetails struct {
	Type     string   `json:"type"`
	Material string   `json:"material"`
	Coatings []string `json:"coatings"`
}

// ContactLensDetails is the payload of a contact lens order.
type ContactLensDetails struct {
	Brand    string `json:"brand"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	RightEye string `json:"rightEye"`
	LeftEye  string `json:"leftEye"`
	Wear     string `json:"wear"`
}

// Order is a lab order for optical goods. BillingID is always set once the
// order has been created through the service.
type Order struct {
	ID          string              `json:"id"`
	PatientID   string              `json:"patientId"`
	PatientName string              `json:"patientName"`
	Date        string              `json:"date"`
	Type        string              `json:"type"`
	Status      string              `json:"status"`
	Price       Money               `json:"price"`
	Insurance   Money               `json:"insurance"`
	Balance     Money               `json:"balance"`
	Priority    string              `json:"priority"`
	Lab         string              `json:"lab,omitempty"`
	DueDate     string              `json:"dueDate,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Frame       *FrameDetails       `json:"frame,omitempty"`
	Lens        *LensDetails        `json:"lens,omitempty"`
	Contacts    *ContactLensDetails `json:"contacts,omitempty"`
	BillingID   string              `json:"billingId"`
}

// BillingRecord is a financial transaction, optionally tied back to the
// order, visit or examination that produced it.
type BillingRecord struct {
	ID                string `json:"id"`
	PatientID         string `json:"patientId"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	Total             Money  `json:"total"`
	Insurance         Money  `json:"insurance"`
	Patient           Money  `json:"patient"`
	Status            string `json:"status"`
	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
}

// PatientRecord is the patient-scoped view assembled from the global tables.
type PatientRecord struct {
	Patient            Patient         `json:"patient"`
	Appointments       []Appointment   `json:"appointments"`
	Examinations       []Examination   `json:"examinations"`
	Orders             []Order         `json:"orders"`
	Billing            []BillingRecord `json:"billing"`
	OutstandingBalance Money           `json:"outstandingBalance"`
}
