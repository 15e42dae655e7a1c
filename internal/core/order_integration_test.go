package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE audit_entries, invoice_items, order_media, order_items,
			order_products, invoices, order_margin_overrides, orders,
			users, manufacturers, clients, settings CASCADE;

		INSERT INTO clients (id, name, email) VALUES (1, 'Test Client', 'client@example.com');
		INSERT INTO manufacturers (id, name) VALUES (1, 'Test Factory');

		INSERT INTO users (id, name, role, can_restore) VALUES
		(1, 'Admin', 'admin', false),
		(2, 'Root', 'super_admin', false),
		(3, 'Restorer', 'admin', true);

		UPDATE settings_version SET version = version + 1 WHERE id = 1;
		INSERT INTO settings (key, value) VALUES
		('default_margin_percentage', 80),
		('default_shipping_margin_percentage', 50),
		('default_sample_margin_percentage', 20),
		('clothing_product_fee', 6.00),
		('clothing_sample_fee', 3.00),
		('accessory_margin_percentage', 100);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

var (
	testAdmin        = core.Actor{ID: 1, Name: "Admin", Role: core.RoleAdmin}
	testSuperAdmin   = core.Actor{ID: 2, Name: "Root", Role: core.RoleSuperAdmin}
	testRestorer     = core.Actor{ID: 3, Name: "Restorer", Role: core.RoleAdmin}
	testManufacturer = core.Actor{ID: 10, Name: "Factory", Role: core.RoleManufacturer}
)

func createTestOrder(t *testing.T, orders core.OrderService) *core.Order {
	t.Helper()
	ctx := context.Background()
	order, err := orders.CreateOrder(ctx, testAdmin, 1, 1, decimal.Zero)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return order
}

func addTestProduct(t *testing.T, orders core.OrderService, orderID int, qty int64) *core.OrderProduct {
	t.Helper()
	ctx := context.Background()
	p, err := orders.AddProduct(ctx, testAdmin, orderID, core.ProductInput{
		ProductName: "Widget",
		Category:    core.CategoryStandard,
		UnitPrice:   dec("100.00"),
		Items:       []core.ItemInput{{Size: "M", Color: "black", Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("AddProduct failed: %v", err)
	}
	return p
}

func TestOrderService_CreateAndNumber(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)

	order := createTestOrder(t, orders)
	if order.Status != core.StatusDraft {
		t.Errorf("new order status = %s, want draft", order.Status)
	}
	if order.OrderNumber == "" {
		t.Error("expected an assigned order number")
	}
	if order.ClientName != "Test Client" {
		t.Errorf("ClientName = %q, want Test Client", order.ClientName)
	}
}

func TestOrderService_StatusIsAdminOnly(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)
	ctx := context.Background()

	order := createTestOrder(t, orders)

	_, err := orders.SetOrderStatus(ctx, testManufacturer, order.ID, core.StatusSubmitted)
	var perm *core.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError for manufacturer, got %v", err)
	}

	updated, err := orders.SetOrderStatus(ctx, testAdmin, order.ID, core.StatusSubmitted)
	if err != nil {
		t.Fatalf("admin transition failed: %v", err)
	}
	if updated.Status != core.StatusSubmitted {
		t.Errorf("status = %s, want submitted", updated.Status)
	}

	// Illegal edge
	_, err = orders.SetOrderStatus(ctx, testAdmin, order.ID, core.StatusCompleted)
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Errorf("expected ValidationError for illegal edge, got %v", err)
	}
}

func TestOrderService_RoutingGatesProductTransitions(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)
	ctx := context.Background()

	order := createTestOrder(t, orders)
	p := addTestProduct(t, orders, order.ID, 10)

	// New products start routed to admin; the manufacturer cannot act yet.
	_, err := orders.SetProductStatus(ctx, testManufacturer, p.ID, core.ProductSubmitted)
	var perm *core.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError before routing, got %v", err)
	}

	if _, err := orders.SetProductStatus(ctx, testAdmin, p.ID, core.ProductSubmitted); err != nil {
		t.Fatalf("admin transition failed: %v", err)
	}

	// Route to the manufacturer; only admins may route.
	_, err = orders.RouteProduct(ctx, testManufacturer, p.ID, core.RoleManufacturer)
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError for non-admin routing, got %v", err)
	}
	routed, err := orders.RouteProduct(ctx, testAdmin, p.ID, core.RoleManufacturer)
	if err != nil {
		t.Fatalf("RouteProduct failed: %v", err)
	}
	if routed.RoutedTo != core.RoleManufacturer {
		t.Errorf("RoutedTo = %s, want manufacturer", routed.RoutedTo)
	}

	// Now the manufacturer holds it and the admin does not.
	if _, err := orders.SetProductStatus(ctx, testManufacturer, p.ID, core.ProductManufacturerProcessed); err != nil {
		t.Fatalf("manufacturer transition failed: %v", err)
	}
	_, err = orders.SetProductStatus(ctx, testAdmin, p.ID, core.ProductSubmittedToClient)
	if !errors.As(err, &perm) {
		t.Errorf("expected PermissionError for admin without routing, got %v", err)
	}
}

func TestOrderService_LockClaimAndRelease(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)
	ctx := context.Background()

	order := createTestOrder(t, orders)
	p := addTestProduct(t, orders, order.ID, 10)

	if _, err := orders.RouteProduct(ctx, testAdmin, p.ID, core.RoleManufacturer); err != nil {
		t.Fatalf("RouteProduct failed: %v", err)
	}

	// Only the holder of routing may claim the lock.
	_, err := orders.ClaimLock(ctx, testAdmin, p.ID)
	var perm *core.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError for non-holder claim, got %v", err)
	}

	locked, err := orders.ClaimLock(ctx, testManufacturer, p.ID)
	if err != nil {
		t.Fatalf("ClaimLock failed: %v", err)
	}
	if locked.LockedBy == nil || *locked.LockedBy != core.RoleManufacturer {
		t.Fatalf("LockedBy = %v, want manufacturer", locked.LockedBy)
	}

	// The lock blocks pricing edits by everyone else, including the admin.
	newPrice := dec("55.00")
	_, err = orders.UpdateProductPricing(ctx, testAdmin, p.ID, core.PricingUpdate{UnitPrice: &newPrice})
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError for locked edit, got %v", err)
	}

	// The holder edits freely while locked.
	updated, err := orders.UpdateProductPricing(ctx, testManufacturer, p.ID, core.PricingUpdate{UnitPrice: &newPrice})
	if err != nil {
		t.Fatalf("holder edit failed: %v", err)
	}
	if updated.UnitPrice.StringFixed(2) != "55.00" {
		t.Errorf("UnitPrice = %s, want 55.00", updated.UnitPrice.StringFixed(2))
	}

	// Only the holder may release.
	_, err = orders.ReleaseLock(ctx, testAdmin, p.ID)
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError releasing another party's lock, got %v", err)
	}
	released, err := orders.ReleaseLock(ctx, testManufacturer, p.ID)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if released.LockedBy != nil {
		t.Errorf("LockedBy = %v, want nil after release", released.LockedBy)
	}
}

func TestOrderService_MarginOverrideRecord(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)
	ctx := context.Background()

	order := createTestOrder(t, orders)

	updated, err := orders.SetOrderMargin(ctx, testAdmin, order.ID, dec("40"), dec("30"))
	if err != nil {
		t.Fatalf("SetOrderMargin failed: %v", err)
	}
	if updated.Margin == nil || updated.Margin.ProductMarginPercent.StringFixed(0) != "40" {
		t.Fatalf("Margin = %+v, want product margin 40", updated.Margin)
	}

	// Out-of-range values are rejected, never clamped.
	_, err = orders.SetOrderMargin(ctx, testAdmin, order.ID, dec("501"), dec("30"))
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Errorf("expected ValidationError for 501%%, got %v", err)
	}
}

func TestOrderService_MediaReferences(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	orders := core.NewOrderService(pool, audit)
	ctx := context.Background()

	order := createTestOrder(t, orders)
	product := addTestProduct(t, orders, order.ID, 1)

	_, err := orders.AddMedia(ctx, testAdmin, product.ID, "", "design.png")
	var val *core.ValidationError
	if !errors.As(err, &val) {
		t.Fatalf("expected ValidationError for blank object key, got %v", err)
	}

	ref, err := orders.AddMedia(ctx, testAdmin, product.ID, "orders/1/design.png", "design.png")
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	if ref.OrderProductID != product.ID {
		t.Errorf("OrderProductID = %d, want %d", ref.OrderProductID, product.ID)
	}

	refs, err := orders.ListMedia(ctx, product.ID)
	if err != nil {
		t.Fatalf("ListMedia failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ObjectKey != "orders/1/design.png" {
		t.Fatalf("refs = %+v, want one ref with the stored key", refs)
	}

	// A claimed product rejects attachment by anyone but the lock holder.
	routed, err := orders.RouteProduct(ctx, testAdmin, product.ID, core.RoleManufacturer)
	if err != nil {
		t.Fatalf("RouteProduct failed: %v", err)
	}
	if _, err := orders.ClaimLock(ctx, testManufacturer, routed.ID); err != nil {
		t.Fatalf("ClaimLock failed: %v", err)
	}
	_, err = orders.AddMedia(ctx, testAdmin, product.ID, "orders/1/revised.png", "revised.png")
	var perm *core.PermissionError
	if !errors.As(err, &perm) {
		t.Errorf("expected PermissionError while locked, got %v", err)
	}
}
