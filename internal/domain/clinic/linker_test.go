package clinic

import (
	"context"
	"errors"
	"testing"

	"github.com/eyecare/clinic/internal/platform/snapshot"
)

func TestService_CreateOrder_BillsAtomically(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, Order{
		PatientID: "P-10042", Type: OrderGlasses, Price: "250", Insurance: "$100.00",
		Frame: &FrameDetails{Brand: "Oakley", Model: "OX8046"},
		Lens:  &LensDetails{Type: "Progressive", Material: "Trivex"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID != "LO-10004" || o.PatientName != "Robert Williams" {
		t.Errorf("unexpected order %s for %s", o.ID, o.PatientName)
	}
	if o.Price != "$250.00" || o.Balance != "$150.00" {
		t.Errorf("expected normalized price and derived balance, got %s / %s", o.Price, o.Balance)
	}
	if o.Status != OrderOrdered || o.Priority != PriorityNormal || o.Date != "2025-06-14" {
		t.Errorf("expected defaults, got %+v", o)
	}
	if o.BillingID != "B-10005" {
		t.Fatalf("expected billing id B-10005, got %s", o.BillingID)
	}

	b, err := svc.GetBillingRecordByID(ctx, o.BillingID)
	if err != nil {
		t.Fatalf("expected linked bill: %v", err)
	}
	if b.RelatedEntityID != o.ID || b.RelatedEntityType != RelatedOrder || b.PatientID != "P-10042" {
		t.Errorf("bill not linked back to order: %+v", b)
	}
	if b.Total != o.Price || b.Insurance != o.Insurance || b.Patient != o.Balance || b.Status != BillingDue {
		t.Errorf("bill amounts do not mirror the order: %+v", b)
	}
	if b.Description != "Glasses order LO-10004 (Oakley OX8046)" {
		t.Errorf("unexpected description %q", b.Description)
	}

	q, _ := svc.LabOrderQueue(ctx)
	if q[len(q)-1].ID != o.ID {
		t.Errorf("expected new order at the back of the queue, got %s", ids(q))
	}
}

func TestService_CreateOrder_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		order Order
		field string
	}{
		{"unknown patient", Order{PatientID: "P-99999", Type: OrderOther}, "patientId"},
		{"missing type", Order{PatientID: "P-10041"}, "type"},
		{"bad type", Order{PatientID: "P-10041", Type: "Hats"}, "type"},
		{"frame on contacts", Order{PatientID: "P-10041", Type: OrderContactLenses, Frame: &FrameDetails{Brand: "x"}}, "frame"},
		{"contacts on glasses", Order{PatientID: "P-10041", Type: OrderGlasses, Contacts: &ContactLensDetails{}}, "contacts"},
		{"negative quantity", Order{PatientID: "P-10041", Type: OrderContactLenses, Contacts: &ContactLensDetails{Quantity: -1}}, "contacts.quantity"},
		{"bad price", Order{PatientID: "P-10041", Type: OrderOther, Price: "free"}, "price"},
		{"bad priority", Order{PatientID: "P-10041", Type: OrderOther, Priority: "Whenever"}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.order)
			if !hasField(err, tt.field) {
				t.Errorf("expected %s field error, got %v", tt.field, err)
			}
		})
	}

	orders, _ := svc.GetOrders(ctx)
	bills, _ := svc.GetBillingRecords(ctx)
	if len(orders) != 3 || len(bills) != 4 {
		t.Errorf("rejected orders left rows behind: %d orders, %d bills", len(orders), len(bills))
	}
}

func TestService_CreateOrder_SaveFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Memory: snapshot.NewMemory()}
	svc := newTestServiceWith(t, seededStore(t, backend))

	backend.fail = true
	if _, err := svc.CreateOrder(ctx, Order{PatientID: "P-10041", Type: OrderAccessories, Price: "$15.00"}); err == nil {
		t.Fatal("expected save failure")
	}
	orders, _ := svc.GetOrders(ctx)
	bills, _ := svc.GetBillingRecords(ctx)
	q, _ := svc.LabOrderQueue(ctx)
	if len(orders) != 3 || len(bills) != 4 || len(q) != 3 {
		t.Errorf("failed create left rows behind: %d orders, %d bills, %d queued", len(orders), len(bills), len(q))
	}

	backend.fail = false
	o, err := svc.CreateOrder(ctx, Order{PatientID: "P-10041", Type: OrderAccessories, Price: "$15.00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID != "LO-10004" || o.BillingID != "B-10005" {
		t.Errorf("expected ids of the failed attempt to be reused, got %s / %s", o.ID, o.BillingID)
	}
}

func TestService_UpdateOrder_SyncsBill(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	price := Money("400")
	o, err := svc.UpdateOrder(ctx, "LO-10001", OrderPatch{Price: &price})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Price != "$400.00" || o.Balance != "$250.00" {
		t.Errorf("expected recomputed balance, got %s / %s", o.Price, o.Balance)
	}
	b, _ := svc.GetBillingRecordByID(ctx, "B-10001")
	if b.Total != "$400.00" || b.Insurance != "$150.00" || b.Patient != "$250.00" {
		t.Errorf("bill not synced: %+v", b)
	}

	balance := Money("$10.00")
	o, _ = svc.UpdateOrder(ctx, "LO-10001", OrderPatch{Balance: &balance})
	if o.Balance != "$10.00" {
		t.Errorf("expected explicit balance to win, got %s", o.Balance)
	}

	status := OrderReadyForPickup
	paid := BillingPaid
	if _, err := svc.UpdateBillingRecord(ctx, "B-10001", BillingPatch{Status: &paid}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateOrder(ctx, "LO-10001", OrderPatch{Status: &status}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ = svc.GetBillingRecordByID(ctx, "B-10001")
	if b.Status != BillingPaid || b.Patient != "$10.00" {
		t.Errorf("status-only order update touched the bill: %+v", b)
	}
}

func TestService_UpdateOrder_BillDeleted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.DeleteBillingRecord(ctx, "B-10002"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	price := Money("$95.00")
	o, err := svc.UpdateOrder(ctx, "LO-10002", OrderPatch{Price: &price})
	if err != nil {
		t.Fatalf("expected update to succeed without its bill: %v", err)
	}
	if o.BillingID != "B-10002" {
		t.Errorf("expected order to keep its billing reference, got %s", o.BillingID)
	}
}

func TestService_UpdateOrder_RejectsVariantMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateOrder(ctx, "LO-10002", OrderPatch{Frame: &FrameDetails{Brand: "Ray-Ban"}})
	if !hasField(err, "frame") {
		t.Fatalf("expected frame field error, got %v", err)
	}
	o, _ := svc.GetOrderByID(ctx, "LO-10002")
	if o.Frame != nil {
		t.Error("rejected patch was stored")
	}
}

func TestService_LinkBilling(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.LinkBilling(ctx, LinkRequest{
		EntityType: RelatedExamination, EntityID: "E-10002",
		Bill: BillingRecord{Total: "$150.00", Insurance: "$120.00"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.PatientID != "P-10042" || b.Patient != "$30.00" || b.RelatedEntityID != "E-10002" {
		t.Errorf("unexpected bill %+v", b)
	}
	if b.Description != "Glaucoma Screening examination E-10002" {
		t.Errorf("unexpected description %q", b.Description)
	}
	e, _ := svc.GetExaminationByID(ctx, "E-10002")
	if e.BillingID != b.ID {
		t.Errorf("expected examination to reference %s, got %s", b.ID, e.BillingID)
	}

	if _, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedExamination, EntityID: "E-10002"}); !hasField(err, "entityId") {
		t.Errorf("expected already billed error, got %v", err)
	}

	visit, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedVisit, EntityID: "A-10002", Bill: BillingRecord{Total: "$45.00"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := svc.GetAppointmentByID(ctx, "A-10002")
	if a.BillingID != visit.ID || visit.RelatedEntityType != RelatedVisit {
		t.Errorf("visit not linked: %+v / %+v", a, visit)
	}
}

func TestService_LinkBilling_Errors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedOrder, EntityID: "LO-10001"}); !hasField(err, "entityType") {
		t.Errorf("expected entityType field error, got %v", err)
	}
	if _, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedExamination}); !hasField(err, "entityId") {
		t.Errorf("expected entityId field error, got %v", err)
	}
	if _, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedExamination, EntityID: "E-99999"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.LinkBilling(ctx, LinkRequest{EntityType: RelatedExamination, EntityID: "E-10001"}); !hasField(err, "entityId") {
		t.Errorf("expected seeded bill to block a second link, got %v", err)
	}
	_, err := svc.LinkBilling(ctx, LinkRequest{
		EntityType: RelatedVisit, EntityID: "A-10003", Bill: BillingRecord{Total: "bad"},
	})
	if !hasField(err, "total") {
		t.Errorf("expected total field error, got %v", err)
	}
	a, _ := svc.GetAppointmentByID(ctx, "A-10003")
	if a.BillingID != "" {
		t.Errorf("failed link left a reference behind: %s", a.BillingID)
	}
}

func TestService_UpdateBillingRecord_WritesAmountsToOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	total, share := Money("1"), Money("$1.00")
	b, err := svc.UpdateBillingRecord(ctx, "B-10002", BillingPatch{Total: &total, Patient: &share})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Total != "$1.00" {
		t.Errorf("expected normalized total $1.00, got %s", b.Total)
	}
	o, err := svc.GetOrderByID(ctx, "LO-10002")
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if o.Price != b.Total || o.Insurance != b.Insurance || o.Balance != b.Patient {
		t.Errorf("order amounts %s/%s/%s drifted from bill %s/%s/%s",
			o.Price, o.Insurance, o.Balance, b.Total, b.Insurance, b.Patient)
	}
}

func TestService_UpdateBillingRecord_StatusLeavesOrderAlone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	before, _ := svc.GetOrderByID(ctx, "LO-10001")

	paid := BillingPaid
	if _, err := svc.UpdateBillingRecord(ctx, "B-10001", BillingPatch{Status: &paid}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, _ := svc.GetOrderByID(ctx, "LO-10001")
	if after.Price != before.Price || after.Balance != before.Balance {
		t.Errorf("status change touched order amounts: %+v", after)
	}
}

func TestService_UpdateBillingRecord_OrderDeleted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.DeleteOrder(ctx, "LO-10002"); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	total := Money("$99.00")
	b, err := svc.UpdateBillingRecord(ctx, "B-10002", BillingPatch{Total: &total})
	if err != nil {
		t.Fatalf("expected update of orphaned bill to succeed, got %v", err)
	}
	if b.Total != "$99.00" {
		t.Errorf("expected total $99.00, got %s", b.Total)
	}
}

func TestService_UpdateBillingRecord_InvalidAmountChangesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	total := Money("$92233720368547758.00")
	_, err := svc.UpdateBillingRecord(ctx, "B-10002", BillingPatch{Total: &total})
	if !hasField(err, "total") {
		t.Fatalf("expected total field error, got %v", err)
	}
	b, _ := svc.GetBillingRecordByID(ctx, "B-10002")
	o, _ := svc.GetOrderByID(ctx, "LO-10002")
	if b.Total != "$120.00" || o.Price != "$120.00" {
		t.Errorf("failed update was stored: bill %s order %s", b.Total, o.Price)
	}
}

func TestService_UpdateOrder_RejectsOverflowingPrice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	price := Money("$999999999999999999.00")
	_, err := svc.UpdateOrder(ctx, "LO-10003", OrderPatch{Price: &price})
	if !hasField(err, "price") {
		t.Fatalf("expected price field error, got %v", err)
	}
	o, _ := svc.GetOrderByID(ctx, "LO-10003")
	if o.Price != "$25.00" {
		t.Errorf("expected price unchanged, got %s", o.Price)
	}
}
