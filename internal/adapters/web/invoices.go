package web

import (
	"net/http"
	"time"

	"makerdesk/internal/app"
)

// listInvoices handles GET /api/orders/{id}/invoices.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoices, err := h.svc.ListInvoices(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, invoices)
}

// createInvoice handles POST /api/invoices.
// Body: { order_id, product_ids, send_now?, due_date?, payment_url? }
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID    int    `json:"order_id"`
		ProductIDs []int  `json:"product_ids"`
		SendNow    bool   `json:"send_now"`
		DueDate    string `json:"due_date"`
		PaymentURL string `json:"payment_url"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.OrderID == 0 {
		writeError(w, r, "order_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.CreateInvoiceRequest{
		OrderID:    body.OrderID,
		ProductIDs: body.ProductIDs,
		SendNow:    body.SendNow,
		PaymentURL: body.PaymentURL,
	}
	if body.DueDate != "" {
		due, err := time.Parse("2006-01-02", body.DueDate)
		if err != nil {
			writeError(w, r, "invalid due_date, expected YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.DueDate = &due
	}

	invoice, err := h.svc.CreateInvoice(r.Context(), actor(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, invoice)
}

// getInvoice handles GET /api/invoices/{id}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoice, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, invoice)
}

// sendInvoice handles POST /api/invoices/{id}/send.
// Body: { method, to, cc?, phone?, payment_url?, message? }
func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Method     string   `json:"method"`
		To         []string `json:"to"`
		CC         []string `json:"cc"`
		Phone      string   `json:"phone"`
		PaymentURL string   `json:"payment_url"`
		Message    string   `json:"message"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.SendInvoice(r.Context(), actor(r), app.SendInvoiceRequest{
		InvoiceID:  id,
		Method:     app.DeliveryMethod(body.Method),
		To:         body.To,
		CC:         body.CC,
		Phone:      body.Phone,
		PaymentURL: body.PaymentURL,
		Message:    body.Message,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// voidInvoice handles POST /api/invoices/{id}/void. Body: { reason }.
func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	invoice, err := h.svc.VoidInvoice(r.Context(), actor(r), id, body.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, invoice)
}

// markInvoicePaid handles POST /api/invoices/{id}/paid.
func (h *Handler) markInvoicePaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoice, err := h.svc.MarkInvoicePaid(r.Context(), actor(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, invoice)
}
