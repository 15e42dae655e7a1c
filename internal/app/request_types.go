package app

import (
	"time"

	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
)

// CreateOrderRequest is the input for creating a new draft order.
type CreateOrderRequest struct {
	ClientID       int
	ManufacturerID int
	SampleFee      decimal.Decimal
}

// AddProductRequest adds one product line with its variant items to an order.
type AddProductRequest struct {
	OrderID int
	Product core.ProductInput
}

// CreateInvoiceRequest selects eligible products of an order to bill.
type CreateInvoiceRequest struct {
	OrderID    int
	ProductIDs []int
	SendNow    bool
	DueDate    *time.Time
	PaymentURL string
}

// DeliveryMethod selects how an invoice goes out.
type DeliveryMethod string

const (
	DeliverEmail DeliveryMethod = "email"
	DeliverSMS   DeliveryMethod = "sms"
	DeliverBoth  DeliveryMethod = "both"
)

// SendInvoiceRequest is the delivery contract for an existing invoice.
type SendInvoiceRequest struct {
	InvoiceID  int
	Method     DeliveryMethod
	To         []string
	CC         []string
	Phone      string
	PaymentURL string
	Message    string
}

// OrderMarginRequest sets the per-order margin override record.
type OrderMarginRequest struct {
	OrderID               int
	ProductMarginPercent  decimal.Decimal
	ShippingMarginPercent decimal.Decimal
}
