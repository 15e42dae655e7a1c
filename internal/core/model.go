package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies which party an actor belongs to.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
	RoleManufacturer Role = "manufacturer"
	RoleClient       Role = "client"
)

// Actor is the authenticated identity performing an operation.
// ID and Name feed the audit trail; Role gates routing and guards.
type Actor struct {
	ID   int
	Name string
	Role Role
}

// Elevated reports whether the actor may bypass destructive-action guards.
func (a Actor) Elevated() bool { return a.Role == RoleSuperAdmin }

// ShippingMethod selects which manufacturer shipping cost is charged to the
// client. Only the selected method's cost ever reaches an invoice.
type ShippingMethod string

const (
	ShippingNone ShippingMethod = "none"
	ShippingAir  ShippingMethod = "air"
	ShippingBoat ShippingMethod = "boat"
)

// ProductCategory switches the margin resolver between percentage mode and
// per-unit flat-fee mode.
type ProductCategory string

const (
	CategoryStandard  ProductCategory = "standard"
	CategoryClothing  ProductCategory = "clothing"
	CategoryAccessory ProductCategory = "accessory"
)

// Order is a client's manufacturing request. Orders are never physically
// deleted; cancellation is the terminal rejected status.
type Order struct {
	ID             int             `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Status         OrderStatus     `json:"status"`
	ClientID       int             `json:"client_id"`
	ClientName     string          `json:"client_name"` // joined from clients
	ManufacturerID int             `json:"manufacturer_id"`
	SampleFee      decimal.Decimal `json:"sample_fee"`
	Margin         *OrderMargin    `json:"margin,omitempty"`
	Products       []OrderProduct  `json:"products,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderMargin is the zero-or-one per-order percentage override record.
type OrderMargin struct {
	OrderID               int             `json:"order_id"`
	ProductMarginPercent  decimal.Decimal `json:"product_margin_percent"`
	ShippingMarginPercent decimal.Decimal `json:"shipping_margin_percent"`
}

// OrderProduct is one catalog product line within an order, with its own
// pricing, status, routing, and invoicing state.
//
// Manufacturer-side costs (UnitPrice, SampleFee, AirShippingCost,
// BoatShippingCost) are what the factory charges. Client-side fields
// (ClientUnitPrice, ClientShippingPrice, ClientSampleFee) are derived by the
// margin resolver and persisted once computed — a non-nil persisted value is
// treated as a finalized override, not recomputed live.
type OrderProduct struct {
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	ProductName string          `json:"product_name"`
	Category    ProductCategory `json:"category"`

	UnitPrice        decimal.Decimal `json:"unit_price"`
	SampleFee        decimal.Decimal `json:"sample_fee"`
	AirShippingCost  decimal.Decimal `json:"air_shipping_cost"`
	BoatShippingCost decimal.Decimal `json:"boat_shipping_cost"`

	ClientUnitPrice     *decimal.Decimal `json:"client_unit_price,omitempty"`
	ClientShippingPrice *decimal.Decimal `json:"client_shipping_price,omitempty"`
	ClientSampleFee     *decimal.Decimal `json:"client_sample_fee,omitempty"`

	// Per-product margin overrides; nil falls through to order then global.
	MarginPercent         *decimal.Decimal `json:"margin_percent,omitempty"`
	ShippingMarginPercent *decimal.Decimal `json:"shipping_margin_percent,omitempty"`

	SelectedShipping ShippingMethod `json:"selected_shipping_method"`
	RoutedTo         Role           `json:"routed_to"`
	LockedBy         *Role          `json:"locked_by,omitempty"`
	Status           ProductStatus  `json:"product_status"`

	Invoiced  bool `json:"invoiced"`
	InvoiceID *int `json:"invoice_id,omitempty"`

	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *int       `json:"deleted_by,omitempty"`
	DeletionReason *string    `json:"deletion_reason,omitempty"`

	ETA   *time.Time  `json:"eta,omitempty"`
	Items []OrderItem `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deleted reports whether the product is soft-deleted.
func (p *OrderProduct) Deleted() bool { return p.DeletedAt != nil }

// TotalQuantity sums item quantities; it is the multiplier in every price
// computation.
func (p *OrderProduct) TotalQuantity() int64 {
	var total int64
	for _, it := range p.Items {
		total += it.Quantity
	}
	return total
}

// OrderItem is one variant combination (size/color) within an order product.
type OrderItem struct {
	ID             int    `json:"id"`
	OrderProductID int    `json:"order_product_id"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	Quantity       int64  `json:"quantity"`
	Note           string `json:"note"`
}

// MediaRef points at an attachment in the external object store.
type MediaRef struct {
	ID             int    `json:"id"`
	OrderProductID int    `json:"order_product_id"`
	ObjectKey      string `json:"object_key"`
	Filename       string `json:"filename"`
}
