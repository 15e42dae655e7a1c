package core_test

import (
	"testing"
	"time"

	"makerdesk/internal/core"
)

// reconcileProduct builds a completed, priced product worth a known client
// total: unit 100.00 at the 80% default margin × qty, no sample or shipping.
func reconcileProduct(id int, qty int64) core.OrderProduct {
	return core.OrderProduct{
		ID:        id,
		OrderID:   1,
		Status:    core.ProductCompleted,
		Category:  core.CategoryStandard,
		UnitPrice: dec("100.00"),
		Items:     []core.OrderItem{{Quantity: qty}},
	}
}

func TestReconcileOrder_SentInvoicesOnly(t *testing.T) {
	defaults := testDefaults()
	products := []core.OrderProduct{reconcileProduct(1, 10)} // 1800.00

	invoices := []core.Invoice{
		{ID: 1, Status: core.InvoiceSent, Amount: dec("500.00")},
		{ID: 2, Status: core.InvoiceDraft, Amount: dec("9999.00")},
		{ID: 3, Status: core.InvoiceVoided, Amount: dec("9999.00")},
	}

	sum := core.ReconcileOrder(1, products, invoices, nil, defaults)
	if sum.TotalValue.StringFixed(2) != "1800.00" {
		t.Errorf("TotalValue = %s, want 1800.00", sum.TotalValue.StringFixed(2))
	}
	// Draft invoices have not gone out; voided ones were reversed.
	if sum.InvoicedAmount.StringFixed(2) != "500.00" {
		t.Errorf("InvoicedAmount = %s, want 500.00", sum.InvoicedAmount.StringFixed(2))
	}
	if sum.ReadyToInvoice.StringFixed(2) != "1300.00" {
		t.Errorf("ReadyToInvoice = %s, want 1300.00", sum.ReadyToInvoice.StringFixed(2))
	}
}

func TestReconcileOrder_NeverNegative(t *testing.T) {
	defaults := testDefaults()
	products := []core.OrderProduct{reconcileProduct(1, 1)} // 180.00

	// Over-invoiced: more sent than the current total value (prices dropped
	// after billing). Ready-to-invoice clamps at zero instead of going
	// negative.
	invoices := []core.Invoice{
		{ID: 1, Status: core.InvoiceSent, Amount: dec("400.00")},
	}

	sum := core.ReconcileOrder(1, products, invoices, nil, defaults)
	if !sum.ReadyToInvoice.IsZero() {
		t.Errorf("ReadyToInvoice = %s, want 0", sum.ReadyToInvoice.StringFixed(2))
	}
}

func TestReconcileOrder_DeletedProductsContributeNothing(t *testing.T) {
	defaults := testDefaults()
	now := time.Now()

	deleted := reconcileProduct(1, 10)
	deleted.DeletedAt = &now
	live := reconcileProduct(2, 5) // 900.00

	sum := core.ReconcileOrder(1, []core.OrderProduct{deleted, live}, nil, nil, defaults)
	if sum.TotalValue.StringFixed(2) != "900.00" {
		t.Errorf("TotalValue = %s, want 900.00", sum.TotalValue.StringFixed(2))
	}
	if len(sum.EligibleIDs) != 1 || sum.EligibleIDs[0] != 2 {
		t.Errorf("EligibleIDs = %v, want [2]", sum.EligibleIDs)
	}
}

func TestReconcileOrder_ClaimedProductsNotEligible(t *testing.T) {
	defaults := testDefaults()

	claimed := reconcileProduct(1, 10)
	claimed.Invoiced = true
	invID := 4
	claimed.InvoiceID = &invID
	open := reconcileProduct(2, 2) // 360.00

	sum := core.ReconcileOrder(1, []core.OrderProduct{claimed, open}, nil, nil, defaults)

	// Claimed products still count toward total value, but are not offered
	// for a second invoice.
	if sum.TotalValue.StringFixed(2) != "2160.00" {
		t.Errorf("TotalValue = %s, want 2160.00", sum.TotalValue.StringFixed(2))
	}
	if len(sum.EligibleIDs) != 1 || sum.EligibleIDs[0] != 2 {
		t.Errorf("EligibleIDs = %v, want [2]", sum.EligibleIDs)
	}
	if sum.UninvoicedValue.StringFixed(2) != "360.00" {
		t.Errorf("UninvoicedValue = %s, want 360.00", sum.UninvoicedValue.StringFixed(2))
	}
}

func TestInvoiceOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 7)

	tests := []struct {
		name string
		inv  core.Invoice
		want bool
	}{
		{"past due and unpaid", core.Invoice{Status: core.InvoiceSent, DueDate: &past}, true},
		{"past due but paid", core.Invoice{Status: core.InvoicePaid, DueDate: &past}, false},
		{"not yet due", core.Invoice{Status: core.InvoiceSent, DueDate: &future}, false},
		{"no due date", core.Invoice{Status: core.InvoiceSent}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.Overdue(now); got != tt.want {
				t.Errorf("Overdue() = %v, want %v", got, tt.want)
			}
		})
	}
}
