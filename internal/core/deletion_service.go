package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MediaStore is the external object store holding product attachments.
// Implementations live outside core; deletion treats store failures as
// best-effort (logged, never blocking the database-level soft delete —
// media orphaning is an accepted, documented trade-off).
type MediaStore interface {
	Delete(ctx context.Context, objectKey string) error
}

// DeletionService removes order products from every financial and reporting
// aggregate without destroying history, and offers a narrow authorized
// restore path.
type DeletionService interface {
	// DeleteProduct soft-deletes a product. Deleting an invoiced product
	// requires the elevated role; everyone else gets a GuardError telling
	// them to void the invoice first.
	DeleteProduct(ctx context.Context, actor Actor, productID int, reason string) error

	// RestoreProduct clears the soft-delete triple. Permitted only to
	// explicitly allow-listed identities — the allow-list is re-read from
	// the database on every call, never cached. Restoring does not rejoin
	// any invoice created before the deletion.
	RestoreProduct(ctx context.Context, actor Actor, productID int) (*OrderProduct, error)

	// ListDeleted returns soft-deleted products with their deletion reasons,
	// for audit and restore tooling.
	ListDeleted(ctx context.Context) ([]OrderProduct, error)
}

type deletionService struct {
	pool  *pgxpool.Pool
	media MediaStore
	audit AuditSink
}

func NewDeletionService(pool *pgxpool.Pool, media MediaStore, audit AuditSink) DeletionService {
	return &deletionService{pool: pool, media: media, audit: audit}
}

func (s *deletionService) DeleteProduct(ctx context.Context, actor Actor, productID int, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Msg: "deletion reason is required"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := fetchProductForUpdate(ctx, tx, productID)
	if err != nil {
		return err
	}
	if p.Deleted() {
		return &ValidationError{Field: "product", Msg: fmt.Sprintf("product %d is already deleted", productID)}
	}
	if p.Invoiced && !actor.Elevated() {
		return &GuardError{Msg: fmt.Sprintf(
			"product %d is billed on invoice %d; void the invoice before deleting, or ask a super admin", productID, deref(p.InvoiceID))}
	}

	media, err := fetchMediaRefs(ctx, tx, productID)
	if err != nil {
		return err
	}

	// Detach media from the object store first, best-effort: a storage
	// failure is logged but never blocks the soft delete.
	for _, m := range media {
		if err := s.media.Delete(ctx, m.ObjectKey); err != nil {
			log.Printf("warning: media %s for product %d not removed from object store: %v", m.ObjectKey, productID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_products
		SET deleted_at = NOW(), deleted_by = $1, deletion_reason = $2, updated_at = NOW()
		WHERE id = $3
	`, actor.ID, reason, productID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete product %d: %w", productID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	if p.Invoiced {
		log.Printf("warning: product %d deleted by elevated actor %d while billed on invoice %d — that invoice may need review",
			productID, actor.ID, deref(p.InvoiceID))
	}
	s.audit.Record(ctx, actor, "delete_product", "order_product", productID,
		map[string]any{"invoiced": p.Invoiced, "invoice_id": p.InvoiceID},
		map[string]any{"deletion_reason": reason})
	return nil
}

func (s *deletionService) RestoreProduct(ctx context.Context, actor Actor, productID int) (*OrderProduct, error) {
	// Allow-listing is per identity, not per role, and is re-validated here
	// on every call.
	var canRestore bool
	err := s.pool.QueryRow(ctx,
		"SELECT can_restore FROM users WHERE id = $1", actor.ID).Scan(&canRestore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &PermissionError{Msg: "unknown identity; restore denied"}
		}
		return nil, fmt.Errorf("failed to check restore allow-list: %w", err)
	}
	if !canRestore {
		return nil, &PermissionError{Msg: "identity is not allow-listed for restore"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := fetchProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Deleted() {
		return nil, &ValidationError{Field: "product", Msg: fmt.Sprintf("product %d is not deleted", productID)}
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_products
		SET deleted_at = NULL, deleted_by = NULL, deletion_reason = NULL, updated_at = NOW()
		WHERE id = $1
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore product %d: %w", productID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}

	s.audit.Record(ctx, actor, "restore_product", "order_product", productID,
		map[string]any{"deletion_reason": p.DeletionReason}, nil)
	return fetchProduct(ctx, s.pool, productID)
}

func (s *deletionService) ListDeleted(ctx context.Context) ([]OrderProduct, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+productColumns+" FROM order_products p WHERE p.deleted_at IS NOT NULL ORDER BY p.deleted_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted products: %w", err)
	}
	defer rows.Close()

	var products []OrderProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deleted product: %w", err)
		}
		products = append(products, *p)
	}
	return products, nil
}

func fetchMediaRefs(ctx context.Context, q pgxQuerier, productID int) ([]MediaRef, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_product_id, object_key, filename
		FROM order_media
		WHERE order_product_id = $1
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media for product %d: %w", productID, err)
	}
	defer rows.Close()

	var refs []MediaRef
	for rows.Next() {
		var m MediaRef
		if err := rows.Scan(&m.ID, &m.OrderProductID, &m.ObjectKey, &m.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan media ref: %w", err)
		}
		refs = append(refs, m)
	}
	return refs, nil
}
