package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// minVoidReasonLen guards against rubber-stamp voids.
const minVoidReasonLen = 10

// CreateInvoiceInput selects which eligible order products to bill and
// whether the invoice starts in draft or goes straight to sent.
type CreateInvoiceInput struct {
	OrderID    int
	ProductIDs []int
	SendNow    bool
	DueDate    *time.Time
	PaymentURL string
}

// InvoiceService is the reconciliation engine: it computes invoiceable
// amounts per order, materializes invoices from frozen snapshots, and keeps
// per-product invoicing flags consistent with the invoice lifecycle.
type InvoiceService interface {
	// Reconcile returns the order's invoicing picture. The eligibility
	// predicate is evaluated fresh on every call.
	Reconcile(ctx context.Context, orderID int) (*ReconcileSummary, error)

	// CreateInvoice snapshots the selected products into invoice items and
	// claims each one. Rejects any product already claimed by a non-voided
	// invoice.
	CreateInvoice(ctx context.Context, actor Actor, input CreateInvoiceInput) (*Invoice, error)

	// MarkSent records successful delivery: sent_at, sent_to, status=sent.
	// Callers must complete delivery first; a delivery failure means this is
	// never called and the invoice stays in draft.
	MarkSent(ctx context.Context, actor Actor, invoiceID int, sentTo, documentURL string) (*Invoice, error)

	// MarkPaid transitions sent → paid.
	MarkPaid(ctx context.Context, actor Actor, invoiceID int) (*Invoice, error)

	// VoidInvoice terminally cancels an invoice and releases every product
	// still pointing at it back to ready-to-invoice eligibility.
	VoidInvoice(ctx context.Context, actor Actor, invoiceID int, reason string) (*Invoice, error)

	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, orderID int) ([]Invoice, error)
}

type invoiceService struct {
	pool     *pgxpool.Pool
	settings SettingsService
	audit    AuditSink
}

func NewInvoiceService(pool *pgxpool.Pool, settings SettingsService, audit AuditSink) InvoiceService {
	return &invoiceService{pool: pool, settings: settings, audit: audit}
}

func (s *invoiceService) Reconcile(ctx context.Context, orderID int) (*ReconcileSummary, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check order %d: %w", orderID, err)
	}
	if !exists {
		return nil, notFound("order", orderID)
	}

	defaults, err := s.settings.Defaults(ctx)
	if err != nil {
		return nil, err
	}

	om, err := fetchOrderMargin(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}

	products, err := fetchOrderProducts(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, err
	}

	invoices, err := s.ListInvoices(ctx, orderID)
	if err != nil {
		return nil, err
	}

	summary := ReconcileOrder(orderID, products, invoices, om, defaults)
	return &summary, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, actor Actor, input CreateInvoiceInput) (*Invoice, error) {
	if len(input.ProductIDs) == 0 {
		return nil, &ValidationError{Field: "product_ids", Msg: "at least one product is required"}
	}
	seen := make(map[int]bool, len(input.ProductIDs))
	for _, id := range input.ProductIDs {
		if seen[id] {
			// A repeated ID would be snapshotted twice and double the amount.
			return nil, &ValidationError{Field: "product_ids",
				Msg: fmt.Sprintf("product %d appears more than once", id)}
		}
		seen[id] = true
	}

	defaults, err := s.settings.Defaults(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin invoice transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderNumber string
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(order_number, '') FROM orders WHERE id = $1 FOR UPDATE",
		input.OrderID).Scan(&orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order", input.OrderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", input.OrderID, err)
	}

	om, err := fetchOrderMargin(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}

	// Re-check every selected product under row locks: eligibility is never
	// trusted from an earlier read.
	total := decimal.Zero
	type snapshot struct {
		productID   int
		description string
		amount      decimal.Decimal
	}
	var snapshots []snapshot

	for _, productID := range input.ProductIDs {
		p, err := fetchProductForUpdate(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
		if p.OrderID != input.OrderID {
			return nil, &ValidationError{Field: "product_ids",
				Msg: fmt.Sprintf("product %d belongs to order %d, not %d", productID, p.OrderID, input.OrderID)}
		}
		if p.Deleted() {
			return nil, &ValidationError{Field: "product_ids",
				Msg: fmt.Sprintf("product %d is deleted", productID)}
		}
		if !Invoiceable(p) {
			return nil, &ValidationError{Field: "product_ids",
				Msg: fmt.Sprintf("product %d is not eligible for invoicing", productID)}
		}
		if p.Invoiced {
			// The pointer invariant: invoiced=true means a non-voided invoice
			// still claims this product.
			return nil, &GuardError{Msg: fmt.Sprintf(
				"product %d is already billed on invoice %d; void that invoice first", productID, deref(p.InvoiceID))}
		}

		amount := ClientLineTotal(p, om, defaults)
		snapshots = append(snapshots, snapshot{
			productID:   productID,
			description: fmt.Sprintf("%s × %d", p.ProductName, p.TotalQuantity()),
			amount:      amount,
		})
		total = total.Add(amount)
	}

	status := InvoiceDraft
	if input.SendNow {
		status = InvoiceSent
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (order_id, idempotency_key, amount, status, due_date, payment_url, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $4 = 'sent' THEN NOW() END)
		RETURNING id
	`, input.OrderID, uuid.NewString(), total, status, input.DueDate, input.PaymentURL).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE invoices SET invoice_number = 'INV-' || lpad(id::text, 6, '0') WHERE id = $1", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign invoice number: %w", err)
	}

	for _, snap := range snapshots {
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, order_product_id, description, amount)
			VALUES ($1, $2, $3, $4)
		`, invoiceID, snap.productID, snap.description, snap.amount)
		if err != nil {
			return nil, fmt.Errorf("failed to insert invoice item for product %d: %w", snap.productID, err)
		}
		_, err = tx.Exec(ctx,
			"UPDATE order_products SET invoiced = true, invoice_id = $1, updated_at = NOW() WHERE id = $2",
			invoiceID, snap.productID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim product %d for invoice %d: %w", snap.productID, invoiceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}

	s.audit.Record(ctx, actor, "create_invoice", "invoice", invoiceID, nil,
		map[string]any{"order_id": input.OrderID, "amount": total.String(), "status": status})
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) MarkSent(ctx context.Context, actor Actor, invoiceID int, sentTo, documentURL string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status InvoiceStatus
	err = tx.QueryRow(ctx, "SELECT status FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("invoice", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if status == InvoiceVoided || status == InvoicePaid {
		return nil, &ValidationError{Field: "status",
			Msg: fmt.Sprintf("invoice %d is %s and cannot be sent", invoiceID, status)}
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'sent', sent_at = COALESCE(sent_at, NOW()), sent_to = $1,
		    document_url = COALESCE(NULLIF($2, ''), document_url)
		WHERE id = $3
	`, sentTo, documentURL, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invoice %d sent: %w", invoiceID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit send: %w", err)
	}

	s.audit.Record(ctx, actor, "send_invoice", "invoice", invoiceID,
		map[string]any{"status": status}, map[string]any{"status": InvoiceSent, "sent_to": sentTo})
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) MarkPaid(ctx context.Context, actor Actor, invoiceID int) (*Invoice, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE invoices SET status = 'paid', paid_at = NOW() WHERE id = $1 AND status = 'sent'", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invoice %d paid: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		inv, err := s.GetInvoice(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		return nil, &ValidationError{Field: "status",
			Msg: fmt.Sprintf("invoice %d is %s; only sent invoices can be paid", invoiceID, inv.Status)}
	}

	s.audit.Record(ctx, actor, "pay_invoice", "invoice", invoiceID,
		map[string]any{"status": InvoiceSent}, map[string]any{"status": InvoicePaid})
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) VoidInvoice(ctx context.Context, actor Actor, invoiceID int, reason string) (*Invoice, error) {
	if len(strings.TrimSpace(reason)) < minVoidReasonLen {
		return nil, &ValidationError{Field: "reason",
			Msg: fmt.Sprintf("void reason must be at least %d characters", minVoidReasonLen)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin void transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status InvoiceStatus
	err = tx.QueryRow(ctx, "SELECT status FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("invoice", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if status == InvoiceVoided {
		return nil, &ValidationError{Field: "status", Msg: fmt.Sprintf("invoice %d is already voided", invoiceID)}
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET voided = true, status = 'voided', void_reason = $1, voided_by = $2, voided_at = NOW()
		WHERE id = $3
	`, reason, actor.ID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to void invoice %d: %w", invoiceID, err)
	}

	// Release every product still pointing at this invoice. The whole void
	// runs in one transaction, so a failure here rolls the void back too —
	// but it is still reported as a ConsistencyError and logged loudly,
	// because the caller asked for a reversal that did not happen.
	_, err = tx.Exec(ctx, `
		UPDATE order_products
		SET invoiced = false, invoice_id = NULL, updated_at = NOW()
		WHERE invoice_id = $1
	`, invoiceID)
	if err != nil {
		cerr := &ConsistencyError{Op: "void_invoice",
			Err: fmt.Errorf("invoice %d voided but product unlink failed: %w", invoiceID, err)}
		log.Printf("ERROR: %v — manual reconciliation required if any product still claims invoice %d", cerr, invoiceID)
		return nil, cerr
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit void: %w", err)
	}

	s.audit.Record(ctx, actor, "void_invoice", "invoice", invoiceID,
		map[string]any{"status": status},
		map[string]any{"status": InvoiceVoided, "void_reason": reason})
	return s.GetInvoice(ctx, invoiceID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const invoiceColumns = `
	i.id, i.order_id, COALESCE(i.invoice_number, ''), COALESCE(i.idempotency_key, ''),
	i.amount, i.status, i.due_date,
	i.sent_at, COALESCE(i.sent_to, ''), i.paid_at,
	i.voided, COALESCE(i.void_reason, ''), i.voided_by, i.voided_at,
	COALESCE(i.payment_url, ''), COALESCE(i.document_url, ''), i.created_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.InvoiceNumber, &inv.IdempotencyKey,
		&inv.Amount, &inv.Status, &inv.DueDate,
		&inv.SentAt, &inv.SentTo, &inv.PaidAt,
		&inv.Voided, &inv.VoidReason, &inv.VoidedBy, &inv.VoidedAt,
		&inv.PaymentURL, &inv.DocumentURL, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.id = $1", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("invoice", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, order_product_id, description, amount
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice %d items: %w", invoiceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.OrderProductID, &it.Description, &it.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, orderID int) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+invoiceColumns+" FROM invoices i WHERE i.order_id = $1 ORDER BY i.id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order %d invoices: %w", orderID, err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

func fetchOrderMargin(ctx context.Context, q pgxQuerier, orderID int) (*OrderMargin, error) {
	var om OrderMargin
	err := q.QueryRow(ctx, `
		SELECT order_id, product_margin_percent, shipping_margin_percent
		FROM order_margin_overrides
		WHERE order_id = $1
	`, orderID).Scan(&om.OrderID, &om.ProductMarginPercent, &om.ShippingMarginPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch order %d margin: %w", orderID, err)
	}
	return &om, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
