package clinic

import "time"

const (
	drLee   = "Dr. Anna Lee"
	drKim   = "Dr. David Kim"
	drOrtiz = "Dr. Lucia Ortiz"
)

func samplePatient(id, first, last, dob, gender, email, phone, address, city, zip, hcn, status, doctor string, now time.Time) Patient {
	age, _ := Age(dob, now)
	p := Patient{
		ID: id, FirstName: first, LastName: last, FullName: FullName(first, last),
		DOB: dob, Age: age, Gender: gender, Email: email, Phone: phone,
		Address: address, City: city, State: "OR", ZipCode: zip,
		HealthcareNumber: hcn, Status: status, PreferredDoctor: doctor,
	}
	fillPatientCollections(&p)
	return p
}

// SampleData is the deterministic data set loaded into an empty store. Ages
// are computed against now.
func SampleData(now time.Time) Dataset {
	sarah := samplePatient("P-10041", "Sarah", "Johnson", "1985-03-12", "Female", "sarah.johnson@example.com",
		"(503) 555-0141", "123 Maple Street", "Portland", "97201", "HC-583920", PatientActive, drLee, now)
	sarah.Insurance = Insurance{Provider: "VSP", PolicyNumber: "VSP-220184", GroupNumber: "G-1001", HolderName: "Sarah Johnson", CoverageType: "Vision"}
	sarah.VisionHistory.Current = &Prescription{
		Date: "2025-01-15", Doctor: drLee,
		RightEye: EyeRx{Sphere: "-2.25", Cylinder: "-0.50", Axis: "180"},
		LeftEye:  EyeRx{Sphere: "-2.00", Cylinder: "-0.75", Axis: "175"},
		PD:       "63",
	}
	sarah.MedicalHistory.Conditions = []string{"Myopia"}
	sarah.MedicalHistory.Allergies = []string{"Penicillin"}
	sarah.Visits = []Visit{{ID: "V-1", Date: "2025-01-15", Reason: "Annual eye exam", Doctor: drLee}}

	robert := samplePatient("P-10042", "Robert", "Williams", "1958-11-02", "Male", "robert.williams@example.com",
		"(503) 555-0142", "45 Oak Avenue", "Salem", "97301", "HC-771245", PatientActive, drKim, now)
	robert.Insurance = Insurance{Provider: "EyeMed", PolicyNumber: "EM-993017", HolderName: "Robert Williams", CoverageType: "Vision"}
	robert.MedicalHistory.Conditions = []string{"Presbyopia", "Type 2 diabetes"}
	robert.MedicalHistory.Medications = []string{"Metformin"}
	robert.MedicalHistory.FamilyHistory = []string{"Glaucoma"}

	michael := samplePatient("P-10043", "Michael", "Chen", "1992-07-24", "Male", "michael.chen@example.com",
		"(503) 555-0143", "789 Pine Road", "Eugene", "97401", "HC-462118", PatientActive, drOrtiz, now)
	michael.Insurance = Insurance{Provider: "Davis Vision", PolicyNumber: "DV-118734", HolderName: "Michael Chen", CoverageType: "Vision"}
	michael.VisionHistory.Current = &Prescription{
		Date: "2025-02-03", Doctor: drOrtiz,
		RightEye: EyeRx{Sphere: "-4.50"},
		LeftEye:  EyeRx{Sphere: "-4.25", Cylinder: "-0.25", Axis: "90"},
		Notes:    "Daily disposable contacts",
	}

	emily := samplePatient("P-10044", "Emily", "Davis", "2001-01-30", "Female", "emily.davis@example.com",
		"(503) 555-0144", "12 Birch Lane", "Bend", "97701", "HC-905532", PatientNew, drLee, now)

	james := samplePatient("P-10045", "James", "Wilson", "1974-09-18", "Male", "james.wilson@example.com",
		"(503) 555-0145", "300 Cedar Court", "Medford", "97501", "HC-238816", PatientInactive, drKim, now)

	maria := samplePatient("P-10046", "Maria", "Garcia", "1967-05-05", "Female", "maria.garcia@example.com",
		"(503) 555-0146", "56 Elm Drive", "Corvallis", "97330", "HC-664409", PatientActive, drOrtiz, now)
	maria.MedicalHistory.Conditions = []string{"Early cataract"}

	appt := func(id string, p Patient, date, clock string, minutes Minutes, typ, doctor, status, room string) Appointment {
		end, _ := EndTime(clock, minutes)
		return Appointment{
			ID: id, PatientID: p.ID, PatientName: p.FullName, Date: date, Time: clock, EndTime: end,
			Duration: minutes, Type: typ, Doctor: doctor, Status: status, Room: room,
		}
	}
	appointments := []Appointment{
		appt("A-10001", sarah, "2025-06-09", "09:00", 30, "Annual Exam", drLee, AppointmentCompleted, "Exam 1"),
		appt("A-10002", robert, "2025-06-10", "10:30", 45, "Glaucoma Check", drKim, AppointmentCompleted, "Exam 2"),
		appt("A-10003", michael, "2025-06-14", "11:00", 30, "Contact Lens Fitting", drOrtiz, AppointmentScheduled, "Exam 1"),
		appt("A-10004", emily, "2025-06-15", "14:00", 60, "New Patient Exam", drLee, AppointmentScheduled, "Exam 3"),
		appt("A-10005", maria, "2025-06-20", "15:30", 30, "Cataract Consult", drOrtiz, AppointmentScheduled, "Exam 2"),
		appt("A-10006", james, "2025-05-28", "08:30", 30, "Follow-up", drKim, AppointmentNoShow, ""),
	}

	examinations := []Examination{
		{
			ID: "E-10001", PatientID: sarah.ID, PatientName: sarah.FullName, Date: "2025-06-09", Time: "09:00",
			Type: "Comprehensive", Doctor: drLee, Status: ExamCompleted,
			PreTestingStatus: PhaseCompleted, ExamStatus: PhaseCompleted, PrescriptionStatus: PhaseCompleted,
			Prescription: clonePrescription(sarah.VisionHistory.Current), BillingID: "B-10004",
		},
		{
			ID: "E-10002", PatientID: robert.ID, PatientName: robert.FullName, Date: "2025-06-10", Time: "10:30",
			Type: "Glaucoma Screening", Doctor: drKim, Status: ExamInProgress,
			PreTestingStatus: PhaseCompleted, ExamStatus: PhaseInProgress, PrescriptionStatus: PhaseNotStarted,
		},
		{
			ID: "E-10003", PatientID: michael.ID, PatientName: michael.FullName, Date: "2025-06-14", Time: "11:00",
			Type: "Contact Lens", Doctor: drOrtiz, Status: ExamScheduled,
			PreTestingStatus: PhaseNotStarted, ExamStatus: PhaseNotStarted, PrescriptionStatus: PhaseNotStarted,
		},
	}

	orders := []Order{
		{
			ID: "LO-10001", PatientID: sarah.ID, PatientName: sarah.FullName, Date: "2025-06-09",
			Type: OrderGlasses, Status: OrderInProgress, Price: "$350.00", Insurance: "$150.00", Balance: "$200.00",
			Priority: PriorityNormal, Lab: "Precision Optical Lab", DueDate: "2025-06-23",
			Frame: &FrameDetails{Brand: "Ray-Ban", Model: "RB5154", Color: "Tortoise", Size: "51-21-145"},
			Lens:  &LensDetails{Type: "Single Vision", Material: "Polycarbonate", Coatings: []string{"Anti-reflective", "Blue light"}},
			BillingID: "B-10001",
		},
		{
			ID: "LO-10002", PatientID: michael.ID, PatientName: michael.FullName, Date: "2025-06-02",
			Type: OrderContactLenses, Status: OrderReadyForPickup, Price: "$120.00", Insurance: "$0.00", Balance: "$120.00",
			Priority: PriorityRush, Lab: "ClearView Contacts",
			Contacts: &ContactLensDetails{Brand: "Acuvue Oasys", Type: "Daily", Quantity: 90, RightEye: "-4.50", LeftEye: "-4.25", Wear: "Daily"},
			BillingID: "B-10002",
		},
		{
			ID: "LO-10003", PatientID: robert.ID, PatientName: robert.FullName, Date: "2025-05-20",
			Type: OrderAccessories, Status: OrderDispensed, Price: "$25.00", Insurance: "$0.00", Balance: "$25.00",
			Priority: PriorityNormal, Notes: "Lens cleaning kit and case",
			BillingID: "B-10003",
		},
	}

	billing := make([]BillingRecord, 0, len(orders)+1)
	for _, o := range orders {
		b := billForOrder(o)
		b.ID = o.BillingID
		billing = append(billing, b)
	}
	billing[2].Status = BillingPaid
	billing = append(billing, BillingRecord{
		ID: "B-10004", PatientID: sarah.ID, Date: "2025-06-09", Description: "Comprehensive examination E-10001",
		Total: "$180.00", Insurance: "$140.00", Patient: "$40.00", Status: BillingPartial,
		RelatedEntityID: "E-10001", RelatedEntityType: RelatedExamination,
	})

	return Dataset{
		Patients:     []Patient{sarah, robert, michael, emily, james, maria},
		Appointments: appointments,
		Examinations: examinations,
		Orders:       orders,
		Billing:      billing,
	}
}
