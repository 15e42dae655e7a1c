package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ProductInput describes a new order product line with its variant items.
type ProductInput struct {
	ProductName      string
	Category         ProductCategory
	UnitPrice        decimal.Decimal
	SampleFee        decimal.Decimal
	AirShippingCost  decimal.Decimal
	BoatShippingCost decimal.Decimal
	SelectedShipping ShippingMethod
	Items            []ItemInput
}

// ItemInput is one size/color variant with a quantity.
type ItemInput struct {
	Size     string
	Color    string
	Quantity int64
	Note     string
}

// PricingUpdate carries the manufacturer-completed fields of a product.
// Nil pointers leave a field untouched.
type PricingUpdate struct {
	UnitPrice             *decimal.Decimal
	SampleFee             *decimal.Decimal
	AirShippingCost       *decimal.Decimal
	BoatShippingCost      *decimal.Decimal
	ClientUnitPrice       *decimal.Decimal
	ClientShippingPrice   *decimal.Decimal
	ClientSampleFee       *decimal.Decimal
	MarginPercent         *decimal.Decimal
	ShippingMarginPercent *decimal.Decimal
	SelectedShipping      *ShippingMethod
	ETA                   *time.Time
}

// OrderService manages orders and products through the multi-party workflow:
// admin-gated order status transitions, routing-gated product transitions,
// and the claimable lock that lets the manufacturer complete pricing fields
// without the admin editing underneath.
type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, clientID, manufacturerID int, sampleFee decimal.Decimal) (*Order, error)
	AddProduct(ctx context.Context, actor Actor, orderID int, input ProductInput) (*OrderProduct, error)

	SetOrderStatus(ctx context.Context, actor Actor, orderID int, to OrderStatus) (*Order, error)
	SetProductStatus(ctx context.Context, actor Actor, productID int, to ProductStatus) (*OrderProduct, error)
	RouteProduct(ctx context.Context, actor Actor, productID int, to Role) (*OrderProduct, error)
	ClaimLock(ctx context.Context, actor Actor, productID int) (*OrderProduct, error)
	ReleaseLock(ctx context.Context, actor Actor, productID int) (*OrderProduct, error)
	UpdateProductPricing(ctx context.Context, actor Actor, productID int, upd PricingUpdate) (*OrderProduct, error)
	SetOrderMargin(ctx context.Context, actor Actor, orderID int, productPct, shippingPct decimal.Decimal) (*Order, error)

	// AddMedia registers an attachment already uploaded to the object store.
	AddMedia(ctx context.Context, actor Actor, productID int, objectKey, filename string) (*MediaRef, error)
	ListMedia(ctx context.Context, productID int) ([]MediaRef, error)

	GetOrder(ctx context.Context, orderID int) (*Order, error)
	ListOrders(ctx context.Context, status *OrderStatus) ([]Order, error)
	GetProduct(ctx context.Context, productID int) (*OrderProduct, error)
}

type orderService struct {
	pool  *pgxpool.Pool
	audit AuditSink
}

func NewOrderService(pool *pgxpool.Pool, audit AuditSink) OrderService {
	return &orderService{pool: pool, audit: audit}
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, clientID, manufacturerID int, sampleFee decimal.Decimal) (*Order, error) {
	if sampleFee.IsNegative() {
		return nil, &ValidationError{Field: "sample_fee", Msg: "must not be negative"}
	}

	var orderID int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO orders (status, client_id, manufacturer_id, sample_fee)
		VALUES ('draft', $1, $2, $3)
		RETURNING id
	`, clientID, manufacturerID, sampleFee).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		"UPDATE orders SET order_number = 'ORD-' || lpad(id::text, 6, '0') WHERE id = $1", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign order number: %w", err)
	}

	s.audit.Record(ctx, actor, "create_order", "order", orderID, nil,
		map[string]any{"status": StatusDraft, "client_id": clientID})
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) AddProduct(ctx context.Context, actor Actor, orderID int, input ProductInput) (*OrderProduct, error) {
	if input.ProductName == "" {
		return nil, &ValidationError{Field: "product_name", Msg: "is required"}
	}
	if len(input.Items) == 0 {
		return nil, &ValidationError{Field: "items", Msg: "at least one variant item is required"}
	}
	for i, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Msg: "must be positive"}
		}
	}
	if input.Category == "" {
		input.Category = CategoryStandard
	}
	if input.SelectedShipping == "" {
		input.SelectedShipping = ShippingNone
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status OrderStatus
	err = tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if status.Terminal() {
		return nil, &ValidationError{Field: "order", Msg: fmt.Sprintf("order %d is %s; no products may be added", orderID, status)}
	}

	var productID int
	err = tx.QueryRow(ctx, `
		INSERT INTO order_products
			(order_id, product_name, category, unit_price, sample_fee,
			 air_shipping_cost, boat_shipping_cost, selected_shipping_method,
			 routed_to, product_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'admin', 'draft')
		RETURNING id
	`, orderID, input.ProductName, input.Category, input.UnitPrice, input.SampleFee,
		input.AirShippingCost, input.BoatShippingCost, input.SelectedShipping).Scan(&productID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order product: %w", err)
	}

	for i, it := range input.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_product_id, size, color, quantity, note)
			VALUES ($1, $2, $3, $4, $5)
		`, productID, it.Size, it.Color, it.Quantity, it.Note)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	s.audit.Record(ctx, actor, "add_product", "order_product", productID, nil,
		map[string]any{"order_id": orderID, "product_name": input.ProductName})
	return s.GetProduct(ctx, productID)
}

// SetOrderStatus transitions the order-level state machine. Order status is
// admin territory: manufacturer and client act through product routing only.
func (s *orderService) SetOrderStatus(ctx context.Context, actor Actor, orderID int, to OrderStatus) (*Order, error) {
	if actorRoutingRole(actor.Role) != RoleAdmin {
		return nil, &PermissionError{Msg: "only the admin role may change order status"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var from OrderStatus
	err = tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if !CanTransitionOrder(from, to) {
		return nil, &ValidationError{Field: "status",
			Msg: fmt.Sprintf("cannot transition order from %s to %s", from, to)}
	}

	if _, err = tx.Exec(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", to, orderID); err != nil {
		return nil, fmt.Errorf("failed to update order %d status: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	s.audit.Record(ctx, actor, "order_status", "order", orderID,
		map[string]any{"status": from}, map[string]any{"status": to})
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) SetProductStatus(ctx context.Context, actor Actor, productID int, to ProductStatus) (*OrderProduct, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := fetchProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.Deleted() {
		return nil, notFound("order product", productID)
	}
	if err := CheckProductTransition(p, actor, to); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx,
		"UPDATE order_products SET product_status = $1, updated_at = NOW() WHERE id = $2",
		to, productID); err != nil {
		return nil, fmt.Errorf("failed to update product %d status: %w", productID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	s.audit.Record(ctx, actor, "product_status", "order_product", productID,
		map[string]any{"product_status": p.Status}, map[string]any{"product_status": to})
	return s.GetProduct(ctx, productID)
}

// RouteProduct reassigns which party currently holds the product. Routing is
// exclusively an admin action.
func (s *orderService) RouteProduct(ctx context.Context, actor Actor, productID int, to Role) (*OrderProduct, error) {
	if actorRoutingRole(actor.Role) != RoleAdmin {
		return nil, &PermissionError{Msg: "only the admin role may change routing"}
	}
	switch to {
	case RoleAdmin, RoleManufacturer, RoleClient:
	default:
		return nil, &ValidationError{Field: "routed_to", Msg: fmt.Sprintf("invalid routing target %q", to)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := fetchProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.Deleted() {
		return nil, notFound("order product", productID)
	}

	if _, err = tx.Exec(ctx,
		"UPDATE order_products SET routed_to = $1, updated_at = NOW() WHERE id = $2",
		to, productID); err != nil {
		return nil, fmt.Errorf("failed to route product %d: %w", productID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit routing change: %w", err)
	}

	s.audit.Record(ctx, actor, "route_product", "order_product", productID,
		map[string]any{"routed_to": p.RoutedTo}, map[string]any{"routed_to": to})
	return s.GetProduct(ctx, productID)
}

// ClaimLock takes the product lock for the actor's routing role. The claim is
// a conditional update — WHERE locked_by IS NULL — so two concurrent claimers
// fail deterministically instead of racing an advisory flag.
func (s *orderService) ClaimLock(ctx context.Context, actor Actor, productID int) (*OrderProduct, error) {
	role := actorRoutingRole(actor.Role)

	tag, err := s.pool.Exec(ctx, `
		UPDATE order_products SET locked_by = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND locked_by IS NULL AND routed_to = $1
	`, role, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim lock on product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		p, err := s.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.LockedBy != nil {
			return nil, &PermissionError{Msg: fmt.Sprintf("product %d is already locked by %s", productID, *p.LockedBy)}
		}
		return nil, &PermissionError{Msg: fmt.Sprintf("product %d is routed to %s; %s may not lock it", productID, p.RoutedTo, role)}
	}

	s.audit.Record(ctx, actor, "lock_product", "order_product", productID,
		nil, map[string]any{"locked_by": role})
	return s.GetProduct(ctx, productID)
}

func (s *orderService) ReleaseLock(ctx context.Context, actor Actor, productID int) (*OrderProduct, error) {
	role := actorRoutingRole(actor.Role)

	tag, err := s.pool.Exec(ctx, `
		UPDATE order_products SET locked_by = NULL, updated_at = NOW()
		WHERE id = $2 AND locked_by = $1
	`, role, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to release lock on product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		p, err := s.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.LockedBy == nil {
			return p, nil // already unlocked
		}
		return nil, &PermissionError{Msg: fmt.Sprintf("product %d is locked by %s, not %s", productID, *p.LockedBy, role)}
	}

	s.audit.Record(ctx, actor, "unlock_product", "order_product", productID,
		map[string]any{"locked_by": role}, nil)
	return s.GetProduct(ctx, productID)
}

func (s *orderService) UpdateProductPricing(ctx context.Context, actor Actor, productID int, upd PricingUpdate) (*OrderProduct, error) {
	if upd.MarginPercent != nil {
		if err := ValidateMarginPercent("margin_percent", *upd.MarginPercent); err != nil {
			return nil, err
		}
	}
	if upd.ShippingMarginPercent != nil {
		if err := ValidateMarginPercent("shipping_margin_percent", *upd.ShippingMarginPercent); err != nil {
			return nil, err
		}
	}
	if upd.SelectedShipping != nil {
		switch *upd.SelectedShipping {
		case ShippingNone, ShippingAir, ShippingBoat:
		default:
			return nil, &ValidationError{Field: "selected_shipping_method",
				Msg: fmt.Sprintf("invalid shipping method %q", *upd.SelectedShipping)}
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := fetchProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.Deleted() {
		return nil, notFound("order product", productID)
	}
	if err := CheckProductEdit(p, actor); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_products SET
			unit_price              = COALESCE($1, unit_price),
			sample_fee              = COALESCE($2, sample_fee),
			air_shipping_cost       = COALESCE($3, air_shipping_cost),
			boat_shipping_cost      = COALESCE($4, boat_shipping_cost),
			client_unit_price       = COALESCE($5, client_unit_price),
			client_shipping_price   = COALESCE($6, client_shipping_price),
			client_sample_fee       = COALESCE($7, client_sample_fee),
			margin_percent          = COALESCE($8, margin_percent),
			shipping_margin_percent = COALESCE($9, shipping_margin_percent),
			selected_shipping_method = COALESCE($10, selected_shipping_method),
			eta                     = COALESCE($11, eta),
			updated_at              = NOW()
		WHERE id = $12
	`, upd.UnitPrice, upd.SampleFee, upd.AirShippingCost, upd.BoatShippingCost,
		upd.ClientUnitPrice, upd.ClientShippingPrice, upd.ClientSampleFee,
		upd.MarginPercent, upd.ShippingMarginPercent, upd.SelectedShipping, upd.ETA,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d pricing: %w", productID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit pricing update: %w", err)
	}

	s.audit.Record(ctx, actor, "update_pricing", "order_product", productID,
		map[string]any{"unit_price": p.UnitPrice.String()}, nil)
	return s.GetProduct(ctx, productID)
}

func (s *orderService) SetOrderMargin(ctx context.Context, actor Actor, orderID int, productPct, shippingPct decimal.Decimal) (*Order, error) {
	if actorRoutingRole(actor.Role) != RoleAdmin {
		return nil, &PermissionError{Msg: "only the admin role may set order margins"}
	}
	if err := ValidateMarginPercent("product_margin_percent", productPct); err != nil {
		return nil, err
	}
	if err := ValidateMarginPercent("shipping_margin_percent", shippingPct); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_margin_overrides (order_id, product_margin_percent, shipping_margin_percent)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO UPDATE
			SET product_margin_percent = EXCLUDED.product_margin_percent,
			    shipping_margin_percent = EXCLUDED.shipping_margin_percent
	`, orderID, productPct, shippingPct)
	if err != nil {
		return nil, fmt.Errorf("failed to set order %d margin: %w", orderID, err)
	}

	s.audit.Record(ctx, actor, "order_margin", "order", orderID, nil,
		map[string]any{"product_margin_percent": productPct.String(), "shipping_margin_percent": shippingPct.String()})
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) AddMedia(ctx context.Context, actor Actor, productID int, objectKey, filename string) (*MediaRef, error) {
	if objectKey == "" {
		return nil, &ValidationError{Field: "object_key", Msg: "is required"}
	}
	if filename == "" {
		return nil, &ValidationError{Field: "filename", Msg: "is required"}
	}

	p, err := fetchProduct(ctx, s.pool, productID)
	if err != nil {
		return nil, err
	}
	if p.Deleted() {
		return nil, notFound("order product", productID)
	}
	if err := CheckProductEdit(p, actor); err != nil {
		return nil, err
	}

	var ref MediaRef
	err = s.pool.QueryRow(ctx, `
		INSERT INTO order_media (order_product_id, object_key, filename)
		VALUES ($1, $2, $3)
		RETURNING id, order_product_id, object_key, filename
	`, productID, objectKey, filename).Scan(&ref.ID, &ref.OrderProductID, &ref.ObjectKey, &ref.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to insert media reference: %w", err)
	}

	s.audit.Record(ctx, actor, "add_media", "order_product", productID, nil,
		map[string]any{"object_key": objectKey, "filename": filename})
	return &ref, nil
}

func (s *orderService) ListMedia(ctx context.Context, productID int) ([]MediaRef, error) {
	if _, err := fetchProduct(ctx, s.pool, productID); err != nil {
		return nil, err
	}
	return fetchMediaRefs(ctx, s.pool, productID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `
	o.id, COALESCE(o.order_number, ''), o.status, o.client_id, c.name,
	o.manufacturer_id, o.sample_fee, o.created_at, o.updated_at,
	m.order_id, m.product_margin_percent, m.shipping_margin_percent`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var marginOrderID *int
	var productPct, shippingPct *decimal.Decimal
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.ClientID, &o.ClientName,
		&o.ManufacturerID, &o.SampleFee, &o.CreatedAt, &o.UpdatedAt,
		&marginOrderID, &productPct, &shippingPct,
	)
	if err != nil {
		return nil, err
	}
	if marginOrderID != nil {
		o.Margin = &OrderMargin{
			OrderID:               *marginOrderID,
			ProductMarginPercent:  *productPct,
			ShippingMarginPercent: *shippingPct,
		}
	}
	return &o, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		LEFT JOIN order_margin_overrides m ON m.order_id = o.id
		WHERE o.id = $1
	`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	products, err := fetchOrderProducts(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, err
	}
	o.Products = products
	return o, nil
}

func (s *orderService) ListOrders(ctx context.Context, status *OrderStatus) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		LEFT JOIN order_margin_overrides m ON m.order_id = o.id`
	var args []any
	if status != nil {
		query += " WHERE o.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY o.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (s *orderService) GetProduct(ctx context.Context, productID int) (*OrderProduct, error) {
	return fetchProduct(ctx, s.pool, productID)
}

// ── Shared row helpers ───────────────────────────────────────────────────────

const productColumns = `
	p.id, p.order_id, p.product_name, p.category,
	p.unit_price, p.sample_fee, p.air_shipping_cost, p.boat_shipping_cost,
	p.client_unit_price, p.client_shipping_price, p.client_sample_fee,
	p.margin_percent, p.shipping_margin_percent,
	p.selected_shipping_method, p.routed_to, p.locked_by, p.product_status,
	p.invoiced, p.invoice_id,
	p.deleted_at, p.deleted_by, p.deletion_reason,
	p.eta, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*OrderProduct, error) {
	var p OrderProduct
	err := row.Scan(
		&p.ID, &p.OrderID, &p.ProductName, &p.Category,
		&p.UnitPrice, &p.SampleFee, &p.AirShippingCost, &p.BoatShippingCost,
		&p.ClientUnitPrice, &p.ClientShippingPrice, &p.ClientSampleFee,
		&p.MarginPercent, &p.ShippingMarginPercent,
		&p.SelectedShipping, &p.RoutedTo, &p.LockedBy, &p.Status,
		&p.Invoiced, &p.InvoiceID,
		&p.DeletedAt, &p.DeletedBy, &p.DeletionReason,
		&p.ETA, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func fetchProduct(ctx context.Context, q pgxQuerier, productID int) (*OrderProduct, error) {
	p, err := scanProduct(q.QueryRow(ctx,
		"SELECT "+productColumns+" FROM order_products p WHERE p.id = $1", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order product", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	items, err := fetchItems(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func fetchProductForUpdate(ctx context.Context, tx pgx.Tx, productID int) (*OrderProduct, error) {
	p, err := scanProduct(tx.QueryRow(ctx,
		"SELECT "+productColumns+" FROM order_products p WHERE p.id = $1 FOR UPDATE", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order product", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	items, err := fetchItems(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

// fetchOrderProducts returns an order's products with their items.
// includeDeleted keeps soft-deleted rows in the result; every financial and
// reporting path passes false.
func fetchOrderProducts(ctx context.Context, q pgxQuerier, orderID int, includeDeleted bool) ([]OrderProduct, error) {
	query := "SELECT " + productColumns + " FROM order_products p WHERE p.order_id = $1"
	if !includeDeleted {
		query += " AND p.deleted_at IS NULL"
	}
	query += " ORDER BY p.id"

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order %d products: %w", orderID, err)
	}
	defer rows.Close()

	var products []OrderProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	rows.Close()

	for i := range products {
		items, err := fetchItems(ctx, q, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Items = items
	}
	return products, nil
}

func fetchItems(ctx context.Context, q pgxQuerier, productID int) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_product_id, size, color, quantity, note
		FROM order_items
		WHERE order_product_id = $1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items for product %d: %w", productID, err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderProductID, &it.Size, &it.Color, &it.Quantity, &it.Note); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, nil
}
