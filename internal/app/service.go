package app

import (
	"context"

	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
)

// ApplicationService is the single interface the web adapter calls. It
// decouples presentation from business logic; implementations contain no
// response formatting of any kind.
type ApplicationService interface {
	// Orders and workflow
	CreateOrder(ctx context.Context, actor core.Actor, req CreateOrderRequest) (*core.Order, error)
	AddProduct(ctx context.Context, actor core.Actor, req AddProductRequest) (*core.OrderProduct, error)
	GetOrder(ctx context.Context, orderID int) (*core.Order, error)
	ListOrders(ctx context.Context, status *core.OrderStatus) ([]core.Order, error)
	SetOrderStatus(ctx context.Context, actor core.Actor, orderID int, to core.OrderStatus) (*core.Order, error)
	SetProductStatus(ctx context.Context, actor core.Actor, productID int, to core.ProductStatus) (*core.OrderProduct, error)
	RouteProduct(ctx context.Context, actor core.Actor, productID int, to core.Role) (*core.OrderProduct, error)
	ClaimLock(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error)
	ReleaseLock(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error)
	UpdateProductPricing(ctx context.Context, actor core.Actor, productID int, upd core.PricingUpdate) (*core.OrderProduct, error)
	SetOrderMargin(ctx context.Context, actor core.Actor, req OrderMarginRequest) (*core.Order, error)
	AddProductMedia(ctx context.Context, actor core.Actor, productID int, objectKey, filename string) (*core.MediaRef, error)
	ListProductMedia(ctx context.Context, productID int) ([]core.MediaRef, error)

	// Invoicing
	Reconcile(ctx context.Context, orderID int) (*core.ReconcileSummary, error)
	CreateInvoice(ctx context.Context, actor core.Actor, req CreateInvoiceRequest) (*core.Invoice, error)
	// SendInvoice renders the PDF, delivers by the requested method, and only
	// then marks the invoice sent. A delivery failure leaves the invoice
	// untouched; there is no "sent but not delivered" state.
	SendInvoice(ctx context.Context, actor core.Actor, req SendInvoiceRequest) (*SendInvoiceResult, error)
	VoidInvoice(ctx context.Context, actor core.Actor, invoiceID int, reason string) (*core.Invoice, error)
	MarkInvoicePaid(ctx context.Context, actor core.Actor, invoiceID int) (*core.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int) (*InvoiceView, error)
	ListInvoices(ctx context.Context, orderID int) ([]InvoiceView, error)

	// Soft delete / restore
	DeleteProduct(ctx context.Context, actor core.Actor, productID int, reason string) error
	RestoreProduct(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error)
	ListDeletedProducts(ctx context.Context) ([]core.OrderProduct, error)

	// Settings
	GetSettings(ctx context.Context) (map[string]decimal.Decimal, error)
	UpdateSetting(ctx context.Context, actor core.Actor, key string, value decimal.Decimal) error
}
