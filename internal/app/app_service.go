package app

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
	"makerdesk/internal/notify"
)

type appService struct {
	orders   core.OrderService
	invoices core.InvoiceService
	deletion core.DeletionService
	settings core.SettingsService

	mailer   notify.Mailer
	sms      notify.SMSSender
	renderer notify.PDFRenderer
}

// NewAppService constructs an appService that satisfies ApplicationService.
// mailer, sms, and renderer may be nil when the corresponding collaborator is
// not configured; sends requiring them fail with ServiceUnavailableError.
func NewAppService(
	orders core.OrderService,
	invoices core.InvoiceService,
	deletion core.DeletionService,
	settings core.SettingsService,
	mailer notify.Mailer,
	sms notify.SMSSender,
	renderer notify.PDFRenderer,
) ApplicationService {
	return &appService{
		orders:   orders,
		invoices: invoices,
		deletion: deletion,
		settings: settings,
		mailer:   mailer,
		sms:      sms,
		renderer: renderer,
	}
}

// ── Orders and workflow ──────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, actor core.Actor, req CreateOrderRequest) (*core.Order, error) {
	return s.orders.CreateOrder(ctx, actor, req.ClientID, req.ManufacturerID, req.SampleFee)
}

func (s *appService) AddProduct(ctx context.Context, actor core.Actor, req AddProductRequest) (*core.OrderProduct, error) {
	return s.orders.AddProduct(ctx, actor, req.OrderID, req.Product)
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*core.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *appService) ListOrders(ctx context.Context, status *core.OrderStatus) ([]core.Order, error) {
	return s.orders.ListOrders(ctx, status)
}

func (s *appService) SetOrderStatus(ctx context.Context, actor core.Actor, orderID int, to core.OrderStatus) (*core.Order, error) {
	return s.orders.SetOrderStatus(ctx, actor, orderID, to)
}

func (s *appService) SetProductStatus(ctx context.Context, actor core.Actor, productID int, to core.ProductStatus) (*core.OrderProduct, error) {
	return s.orders.SetProductStatus(ctx, actor, productID, to)
}

func (s *appService) RouteProduct(ctx context.Context, actor core.Actor, productID int, to core.Role) (*core.OrderProduct, error) {
	return s.orders.RouteProduct(ctx, actor, productID, to)
}

func (s *appService) ClaimLock(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error) {
	return s.orders.ClaimLock(ctx, actor, productID)
}

func (s *appService) ReleaseLock(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error) {
	return s.orders.ReleaseLock(ctx, actor, productID)
}

func (s *appService) UpdateProductPricing(ctx context.Context, actor core.Actor, productID int, upd core.PricingUpdate) (*core.OrderProduct, error) {
	return s.orders.UpdateProductPricing(ctx, actor, productID, upd)
}

func (s *appService) AddProductMedia(ctx context.Context, actor core.Actor, productID int, objectKey, filename string) (*core.MediaRef, error) {
	return s.orders.AddMedia(ctx, actor, productID, objectKey, filename)
}

func (s *appService) ListProductMedia(ctx context.Context, productID int) ([]core.MediaRef, error) {
	return s.orders.ListMedia(ctx, productID)
}

func (s *appService) SetOrderMargin(ctx context.Context, actor core.Actor, req OrderMarginRequest) (*core.Order, error) {
	return s.orders.SetOrderMargin(ctx, actor, req.OrderID, req.ProductMarginPercent, req.ShippingMarginPercent)
}

// ── Invoicing ────────────────────────────────────────────────────────────────

func (s *appService) Reconcile(ctx context.Context, orderID int) (*core.ReconcileSummary, error) {
	return s.invoices.Reconcile(ctx, orderID)
}

func (s *appService) CreateInvoice(ctx context.Context, actor core.Actor, req CreateInvoiceRequest) (*core.Invoice, error) {
	return s.invoices.CreateInvoice(ctx, actor, core.CreateInvoiceInput{
		OrderID:    req.OrderID,
		ProductIDs: req.ProductIDs,
		SendNow:    req.SendNow,
		DueDate:    req.DueDate,
		PaymentURL: req.PaymentURL,
	})
}

func (s *appService) SendInvoice(ctx context.Context, actor core.Actor, req SendInvoiceRequest) (*SendInvoiceResult, error) {
	switch req.Method {
	case DeliverEmail, DeliverSMS, DeliverBoth:
	default:
		return nil, &core.ValidationError{Field: "method",
			Msg: fmt.Sprintf("must be email, sms, or both; got %q", req.Method)}
	}
	wantEmail := req.Method == DeliverEmail || req.Method == DeliverBoth
	wantSMS := req.Method == DeliverSMS || req.Method == DeliverBoth
	if wantEmail && len(req.To) == 0 {
		return nil, &core.ValidationError{Field: "to", Msg: "at least one email recipient is required"}
	}
	if wantSMS && req.Phone == "" {
		return nil, &core.ValidationError{Field: "phone", Msg: "phone is required for sms delivery"}
	}

	inv, err := s.invoices.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Voided {
		return nil, &core.ValidationError{Field: "invoice", Msg: fmt.Sprintf("invoice %d is voided", inv.ID)}
	}

	result := &SendInvoiceResult{}

	var pdf []byte
	if wantEmail {
		if s.mailer == nil || s.renderer == nil {
			return nil, &core.ServiceUnavailableError{Service: "email",
				Err: fmt.Errorf("mailer or pdf renderer not configured")}
		}
		pdf, err = s.renderer.Render(ctx, inv)
		if err != nil {
			return nil, &core.ServiceUnavailableError{Service: "pdf", Err: err}
		}

		body := invoiceEmailBody(inv, req.PaymentURL, req.Message)
		emailID, err := s.mailer.Send(ctx, notify.EmailMessage{
			To:         req.To,
			CC:         req.CC,
			Subject:    fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
			BodyHTML:   body,
			Attachment: pdf,
			AttachName: fmt.Sprintf("%s.pdf", inv.InvoiceNumber),
		})
		if err != nil {
			// Delivery failed: the invoice is NOT marked sent.
			return nil, &core.ServiceUnavailableError{Service: "email", Err: err}
		}
		result.EmailID = emailID
	}

	if wantSMS {
		if s.sms == nil {
			return nil, &core.ServiceUnavailableError{Service: "sms",
				Err: fmt.Errorf("sms provider not configured")}
		}
		text := fmt.Sprintf("Invoice %s for %s is ready.", inv.InvoiceNumber, inv.Amount.StringFixed(2))
		if req.PaymentURL != "" {
			text += " Pay at " + req.PaymentURL
		}
		smsResult, err := s.sms.Send(ctx, req.Phone, text)
		if err != nil {
			result.SMSResult = smsResult
			return nil, &core.ServiceUnavailableError{Service: "sms", Err: err}
		}
		result.SMSResult = smsResult
	}

	sentTo := strings.Join(req.To, ", ")
	if sentTo == "" {
		sentTo = req.Phone
	}
	updated, err := s.invoices.MarkSent(ctx, actor, inv.ID, sentTo, "")
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.Message = fmt.Sprintf("invoice %s delivered via %s", inv.InvoiceNumber, req.Method)
	result.Invoice = updated
	return result, nil
}

func (s *appService) VoidInvoice(ctx context.Context, actor core.Actor, invoiceID int, reason string) (*core.Invoice, error) {
	return s.invoices.VoidInvoice(ctx, actor, invoiceID, reason)
}

func (s *appService) MarkInvoicePaid(ctx context.Context, actor core.Actor, invoiceID int) (*core.Invoice, error) {
	return s.invoices.MarkPaid(ctx, actor, invoiceID)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*InvoiceView, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &InvoiceView{Invoice: *inv, Overdue: inv.Overdue(time.Now())}, nil
}

func (s *appService) ListInvoices(ctx context.Context, orderID int) ([]InvoiceView, error) {
	invoices, err := s.invoices.ListInvoices(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	views := make([]InvoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, InvoiceView{Invoice: invoices[i], Overdue: invoices[i].Overdue(now)})
	}
	return views, nil
}

// ── Soft delete / restore ────────────────────────────────────────────────────

func (s *appService) DeleteProduct(ctx context.Context, actor core.Actor, productID int, reason string) error {
	return s.deletion.DeleteProduct(ctx, actor, productID, reason)
}

func (s *appService) RestoreProduct(ctx context.Context, actor core.Actor, productID int) (*core.OrderProduct, error) {
	return s.deletion.RestoreProduct(ctx, actor, productID)
}

func (s *appService) ListDeletedProducts(ctx context.Context) ([]core.OrderProduct, error) {
	return s.deletion.ListDeleted(ctx)
}

// ── Settings ─────────────────────────────────────────────────────────────────

func (s *appService) GetSettings(ctx context.Context) (map[string]decimal.Decimal, error) {
	return s.settings.All(ctx)
}

func (s *appService) UpdateSetting(ctx context.Context, actor core.Actor, key string, value decimal.Decimal) error {
	return s.settings.Set(ctx, actor, key, value)
}

func invoiceEmailBody(inv *core.Invoice, paymentURL, message string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Please find attached invoice <strong>%s</strong> for %s.</p>",
		html.EscapeString(inv.InvoiceNumber), inv.Amount.StringFixed(2))
	if message != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(message))
	}
	if paymentURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Pay this invoice online</a></p>`, html.EscapeString(paymentURL))
	}
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "<p>Due date: %s</p>", inv.DueDate.Format("2006-01-02"))
	}
	b.WriteString("</body></html>")
	return b.String()
}
