package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceSent   InvoiceStatus = "sent"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoided InvoiceStatus = "voided"
)

// Invoice bills one order for a selected set of its products.
// At most one non-voided invoice may claim a given order product at a time,
// enforced by the invoice_id pointer on order_products inside the create
// transaction rather than by a database constraint.
type Invoice struct {
	ID             int             `json:"id"`
	OrderID        int             `json:"order_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Status         InvoiceStatus   `json:"status"`
	DueDate        *time.Time      `json:"due_date,omitempty"`

	SentAt *time.Time `json:"sent_at,omitempty"`
	SentTo string     `json:"sent_to,omitempty"`
	PaidAt *time.Time `json:"paid_at,omitempty"`

	Voided     bool       `json:"voided"`
	VoidReason string     `json:"void_reason,omitempty"`
	VoidedBy   *int       `json:"voided_by,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`

	PaymentURL  string `json:"payment_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`

	Items     []InvoiceItem `json:"items,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Overdue is derived, never stored: recomputed on every read.
func (inv *Invoice) Overdue(now time.Time) bool {
	return inv.Status != InvoicePaid && inv.DueDate != nil && inv.DueDate.Before(now)
}

// InvoiceItem is a frozen snapshot of one billed order product taken at
// invoice-creation time. Later price changes never touch it.
type InvoiceItem struct {
	ID             int             `json:"id"`
	InvoiceID      int             `json:"invoice_id"`
	OrderProductID int             `json:"order_product_id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"` // already the line total, not a per-unit price
}

// ReconcileSummary is the per-order invoicing picture returned to callers
// before they decide what to bill.
type ReconcileSummary struct {
	OrderID         int             `json:"order_id"`
	TotalValue      decimal.Decimal `json:"total_value"`
	InvoicedAmount  decimal.Decimal `json:"invoiced_amount"`
	ReadyToInvoice  decimal.Decimal `json:"ready_to_invoice"`
	EligibleIDs     []int           `json:"eligible_product_ids"`
	UninvoicedValue decimal.Decimal `json:"uninvoiced_value"`
}
