package clinic

import (
	"context"
	"errors"
	"fmt"
)

func orderDescription(o Order) string {
	switch o.Type {
	case OrderGlasses:
		if o.Frame != nil && o.Frame.Brand != "" {
			return fmt.Sprintf("Glasses order %s (%s %s)", o.ID, o.Frame.Brand, o.Frame.Model)
		}
		return "Glasses order " + o.ID
	case OrderContactLenses:
		if o.Contacts != nil && o.Contacts.Brand != "" {
			return fmt.Sprintf("Contact lens order %s (%s)", o.ID, o.Contacts.Brand)
		}
		return "Contact lens order " + o.ID
	case OrderAccessories:
		return "Accessories order " + o.ID
	}
	return "Order " + o.ID
}

// billForOrder is the billing record that mirrors an order's amounts.
func billForOrder(o Order) BillingRecord {
	return BillingRecord{
		PatientID:         o.PatientID,
		Date:              o.Date,
		Description:       orderDescription(o),
		Total:             o.Price,
		Insurance:         o.Insurance,
		Patient:           o.Balance,
		Status:            BillingDue,
		RelatedEntityID:   o.ID,
		RelatedEntityType: RelatedOrder,
	}
}

func (s *Service) fillOrder(o *Order, p Patient) {
	o.PatientName = p.FullName
	if o.Date == "" {
		o.Date = s.today()
	}
	if o.Status == "" {
		o.Status = OrderOrdered
	}
	if o.Priority == "" {
		o.Priority = PriorityNormal
	}
	if o.Price == "" {
		o.Price = ZeroMoney
	}
	if o.Insurance == "" {
		o.Insurance = ZeroMoney
	}
	o.Price = o.Price.Normalize()
	o.Insurance = o.Insurance.Normalize()
	if o.Balance == "" {
		// Left empty on a bad amount; validation reports it.
		if bal, err := orderBalance(o.Price, o.Insurance); err == nil {
			o.Balance = bal
		}
	}
	o.Balance = o.Balance.Normalize()
}

// CreateOrder stores the order together with its billing record and wires
// both references. Either both rows are stored or neither is.
func (s *Service) CreateOrder(ctx context.Context, o Order) (Order, error) {
	var out Order
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.requirePatient(ctx, "order", o.PatientID)
		if err != nil {
			return err
		}
		o.ID = ""
		o.BillingID = ""
		s.fillOrder(&o, p)
		if err := validateOrder(o); err != nil {
			return err
		}
		created, err := s.repos.Orders.Create(ctx, o)
		if err != nil {
			return err
		}
		bill, err := s.repos.Billing.Create(ctx, billForOrder(created))
		if err != nil {
			return fmt.Errorf("create billing for order %s: %w", created.ID, err)
		}
		out, err = s.repos.Orders.Update(ctx, created.ID, func(o *Order) error {
			o.BillingID = bill.ID
			return nil
		})
		if err != nil {
			return err
		}
		s.log.Debug().Str("order_id", out.ID).Str("billing_id", bill.ID).Str("patient_id", out.PatientID).Msg("order billed")
		return nil
	})
	s.observe("order", "create", err)
	return out, err
}

// UpdateOrder applies the patch. A price or insurance change without an
// explicit balance recomputes the balance, and the linked billing record
// follows the order's amounts.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (Order, error) {
	var out Order
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repos.Orders.Update(ctx, id, func(o *Order) error {
			patch.apply(o)
			o.Price = o.Price.Normalize()
			o.Insurance = o.Insurance.Normalize()
			if patch.Balance == nil && (patch.Price != nil || patch.Insurance != nil) {
				if bal, err := orderBalance(o.Price, o.Insurance); err == nil {
					o.Balance = bal
				}
			}
			o.Balance = o.Balance.Normalize()
			return validateOrder(*o)
		})
		if err != nil {
			return err
		}
		if !patch.touchesAmounts() || out.BillingID == "" {
			return nil
		}
		_, err = s.repos.Billing.Update(ctx, out.BillingID, func(b *BillingRecord) error {
			b.Total = out.Price
			b.Insurance = out.Insurance
			b.Patient = out.Balance
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			// The bill was deleted on its own; the order keeps its reference.
			return nil
		}
		return err
	})
	s.observe("order", "update", err)
	return out, err
}

// LinkRequest bills an existing examination or visit.
type LinkRequest struct {
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Bill       BillingRecord `json:"bill"`
}

// LinkBilling creates a billing record for an examination or a visit
// (appointment) and stores its id on that entity, atomically.
func (s *Service) LinkBilling(ctx context.Context, req LinkRequest) (BillingRecord, error) {
	var out BillingRecord
	err := s.tx(ctx, func(ctx context.Context) error {
		f := newFieldErrors("billing link")
		f.required("entityId", req.EntityID)
		f.required("entityType", req.EntityType)
		if req.EntityType != "" && req.EntityType != RelatedExamination && req.EntityType != RelatedVisit {
			f.add("entityType", "must be %s or %s", RelatedExamination, RelatedVisit)
		}
		if err := f.err(); err != nil {
			return err
		}

		var patientID, existing, description string
		switch req.EntityType {
		case RelatedExamination:
			e, err := s.repos.Examinations.GetByID(ctx, req.EntityID)
			if err != nil {
				return err
			}
			patientID, existing = e.PatientID, e.BillingID
			description = fmt.Sprintf("%s examination %s", e.Type, e.ID)
		case RelatedVisit:
			a, err := s.repos.Appointments.GetByID(ctx, req.EntityID)
			if err != nil {
				return err
			}
			patientID, existing = a.PatientID, a.BillingID
			description = fmt.Sprintf("%s visit %s", a.Type, a.ID)
		}
		if existing != "" {
			f.add("entityId", "%s %s is already billed by %s", req.EntityType, req.EntityID, existing)
			return f.err()
		}

		bill := req.Bill
		bill.ID = ""
		bill.PatientID = patientID
		bill.RelatedEntityID = req.EntityID
		bill.RelatedEntityType = req.EntityType
		if bill.Description == "" {
			bill.Description = description
		}
		s.fillBilling(&bill)
		if err := validateBilling(bill); err != nil {
			return err
		}
		var err error
		if out, err = s.repos.Billing.Create(ctx, bill); err != nil {
			return err
		}

		switch req.EntityType {
		case RelatedExamination:
			_, err = s.repos.Examinations.Update(ctx, req.EntityID, func(e *Examination) error {
				e.BillingID = out.ID
				return nil
			})
		case RelatedVisit:
			_, err = s.repos.Appointments.Update(ctx, req.EntityID, func(a *Appointment) error {
				a.BillingID = out.ID
				return nil
			})
		}
		if err != nil {
			return err
		}
		s.log.Debug().Str("billing_id", out.ID).Str("entity_type", req.EntityType).Str("entity_id", req.EntityID).Msg("entity billed")
		return nil
	})
	s.observe("billing", "link", err)
	return out, err
}

// checkRelated rejects a billing record pointing at a row that does not
// exist or belongs to another patient. A Visit may be an appointment or one
// of the patient's recorded visits.
func (s *Service) checkRelated(ctx context.Context, b BillingRecord) error {
	if b.RelatedEntityID == "" {
		return nil
	}
	var owner string
	var err error
	switch b.RelatedEntityType {
	case RelatedOrder:
		var o Order
		o, err = s.repos.Orders.GetByID(ctx, b.RelatedEntityID)
		owner = o.PatientID
	case RelatedExamination:
		var e Examination
		e, err = s.repos.Examinations.GetByID(ctx, b.RelatedEntityID)
		owner = e.PatientID
	case RelatedVisit:
		var a Appointment
		a, err = s.repos.Appointments.GetByID(ctx, b.RelatedEntityID)
		owner = a.PatientID
		if errors.Is(err, ErrNotFound) {
			p, perr := s.repos.Patients.GetByID(ctx, b.PatientID)
			if perr != nil {
				return perr
			}
			for _, v := range p.Visits {
				if v.ID == b.RelatedEntityID {
					owner, err = p.ID, nil
					break
				}
			}
		}
	}
	f := newFieldErrors("billing record")
	if errors.Is(err, ErrNotFound) {
		f.add("relatedEntityId", "unknown %s %s", b.RelatedEntityType, b.RelatedEntityID)
		return f.err()
	}
	if err != nil {
		return err
	}
	if owner != b.PatientID {
		f.add("relatedEntityId", "%s %s belongs to patient %s", b.RelatedEntityType, b.RelatedEntityID, owner)
	}
	return f.err()
}
