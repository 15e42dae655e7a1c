package core_test

import (
	"context"
	"errors"
	"testing"

	"makerdesk/internal/core"
)

func newInvoiceFixture(t *testing.T) (core.OrderService, core.InvoiceService, *core.Order, *core.OrderProduct, func()) {
	pool := setupTestDB(t)

	audit := core.NewAuditSink(pool)
	settings := core.NewSettingsService(pool, audit)
	orders := core.NewOrderService(pool, audit)
	invoices := core.NewInvoiceService(pool, settings, audit)

	order := createTestOrder(t, orders)
	p := addTestProduct(t, orders, order.ID, 10) // client value 1800.00 at the 80% default

	return orders, invoices, order, p, pool.Close
}

func TestInvoiceService_CreateSnapshotsAndClaims(t *testing.T) {
	orders, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	inv, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID:    order.ID,
		ProductIDs: []int{p.ID},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if inv.Status != core.InvoiceDraft {
		t.Errorf("status = %s, want draft", inv.Status)
	}
	if inv.Amount.StringFixed(2) != "1800.00" {
		t.Errorf("amount = %s, want 1800.00", inv.Amount.StringFixed(2))
	}
	if inv.InvoiceNumber == "" {
		t.Error("expected an assigned invoice number")
	}
	if len(inv.Items) != 1 {
		t.Fatalf("expected 1 invoice item, got %d", len(inv.Items))
	}
	if inv.Items[0].Amount.StringFixed(2) != "1800.00" {
		t.Errorf("item amount = %s, want 1800.00", inv.Items[0].Amount.StringFixed(2))
	}

	claimed, err := orders.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !claimed.Invoiced || claimed.InvoiceID == nil || *claimed.InvoiceID != inv.ID {
		t.Errorf("product not claimed by invoice: invoiced=%v invoice_id=%v", claimed.Invoiced, claimed.InvoiceID)
	}
}

func TestInvoiceService_NeverDoubleBills(t *testing.T) {
	_, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	if _, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	}); err != nil {
		t.Fatalf("first invoice failed: %v", err)
	}

	// The same product cannot be billed again while a non-voided invoice
	// claims it.
	_, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	})
	var guard *core.GuardError
	if !errors.As(err, &guard) {
		t.Fatalf("expected GuardError for double billing, got %v", err)
	}
}

func TestInvoiceService_RejectsRepeatedProductIDs(t *testing.T) {
	_, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	// A repeated ID in one request would snapshot the product twice and
	// double the amount; it must be rejected outright.
	_, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID, p.ID},
	})
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Fatalf("expected ValidationError for repeated product ID, got %v", err)
	}

	// The rejected request claims nothing: a clean retry still bills once.
	inv, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	})
	if err != nil {
		t.Fatalf("CreateInvoice after rejection failed: %v", err)
	}
	if inv.Amount.StringFixed(2) != "1800.00" {
		t.Errorf("amount = %s, want 1800.00", inv.Amount.StringFixed(2))
	}
	if len(inv.Items) != 1 {
		t.Errorf("expected 1 invoice item, got %d", len(inv.Items))
	}
}

func TestInvoiceService_VoidReleasesProducts(t *testing.T) {
	orders, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	inv, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID}, SendNow: true,
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if inv.Status != core.InvoiceSent || inv.SentAt == nil {
		t.Fatalf("send-now invoice should be sent with a timestamp, got %s %v", inv.Status, inv.SentAt)
	}

	// Reason is mandatory and must carry substance.
	_, err = invoices.VoidInvoice(ctx, testAdmin, inv.ID, "typo")
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Fatalf("expected ValidationError for short reason, got %v", err)
	}

	voided, err := invoices.VoidInvoice(ctx, testAdmin, inv.ID, "wrong quantity billed on line one")
	if err != nil {
		t.Fatalf("VoidInvoice failed: %v", err)
	}
	if voided.Status != core.InvoiceVoided || !voided.Voided {
		t.Errorf("status = %s voided=%v, want voided", voided.Status, voided.Voided)
	}

	// Products billed on it become eligible again.
	released, err := orders.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if released.Invoiced || released.InvoiceID != nil {
		t.Errorf("product still claimed after void: invoiced=%v invoice_id=%v", released.Invoiced, released.InvoiceID)
	}

	// Voiding twice is rejected.
	_, err = invoices.VoidInvoice(ctx, testAdmin, inv.ID, "voiding a second time now")
	if !errors.As(err, &val) {
		t.Errorf("expected ValidationError for double void, got %v", err)
	}

	// And the order can be re-billed in full.
	second, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	})
	if err != nil {
		t.Fatalf("re-billing after void failed: %v", err)
	}
	if second.Amount.StringFixed(2) != "1800.00" {
		t.Errorf("second invoice amount = %s, want 1800.00", second.Amount.StringFixed(2))
	}
}

func TestInvoiceService_ReconcileLifecycle(t *testing.T) {
	_, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	before, err := invoices.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if before.TotalValue.StringFixed(2) != "1800.00" {
		t.Errorf("TotalValue = %s, want 1800.00", before.TotalValue.StringFixed(2))
	}
	if before.ReadyToInvoice.StringFixed(2) != "1800.00" {
		t.Errorf("ReadyToInvoice = %s, want 1800.00", before.ReadyToInvoice.StringFixed(2))
	}
	if len(before.EligibleIDs) != 1 || before.EligibleIDs[0] != p.ID {
		t.Errorf("EligibleIDs = %v, want [%d]", before.EligibleIDs, p.ID)
	}

	// A draft invoice does not count as invoiced.
	inv, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	mid, err := invoices.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !mid.InvoicedAmount.IsZero() {
		t.Errorf("InvoicedAmount = %s with only a draft, want 0", mid.InvoicedAmount.StringFixed(2))
	}
	if len(mid.EligibleIDs) != 0 {
		t.Errorf("EligibleIDs = %v, want none while claimed", mid.EligibleIDs)
	}

	// Sending makes it count.
	if _, err := invoices.MarkSent(ctx, testAdmin, inv.ID, "client@example.com", ""); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	after, err := invoices.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if after.InvoicedAmount.StringFixed(2) != "1800.00" {
		t.Errorf("InvoicedAmount = %s, want 1800.00", after.InvoicedAmount.StringFixed(2))
	}
	if !after.ReadyToInvoice.IsZero() {
		t.Errorf("ReadyToInvoice = %s, want 0", after.ReadyToInvoice.StringFixed(2))
	}
}

func TestInvoiceService_PaidOnlyFromSent(t *testing.T) {
	_, invoices, order, p, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	inv, err := invoices.CreateInvoice(ctx, testAdmin, core.CreateInvoiceInput{
		OrderID: order.ID, ProductIDs: []int{p.ID},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	_, err = invoices.MarkPaid(ctx, testAdmin, inv.ID)
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Fatalf("expected ValidationError paying a draft, got %v", err)
	}

	if _, err := invoices.MarkSent(ctx, testAdmin, inv.ID, "client@example.com", ""); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	paid, err := invoices.MarkPaid(ctx, testAdmin, inv.ID)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if paid.Status != core.InvoicePaid || paid.PaidAt == nil {
		t.Errorf("status = %s paid_at=%v, want paid with a timestamp", paid.Status, paid.PaidAt)
	}
}

func TestInvoiceService_ReconcileUnknownOrder(t *testing.T) {
	_, invoices, _, _, closeDB := newInvoiceFixture(t)
	defer closeDB()
	ctx := context.Background()

	// An unknown order is an error, not an all-zero summary.
	_, err := invoices.Reconcile(ctx, 99999)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown order, got %v", err)
	}
}
