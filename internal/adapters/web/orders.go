package web

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"makerdesk/internal/app"
	"makerdesk/internal/core"
)

// listOrders handles GET /api/orders?status=.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var statusPtr *core.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := core.OrderStatus(s)
		statusPtr = &status
	}

	orders, err := h.svc.ListOrders(r.Context(), statusPtr)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

// createOrder handles POST /api/orders.
// Body: { client_id, manufacturer_id, sample_fee? }
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID       int    `json:"client_id"`
		ManufacturerID int    `json:"manufacturer_id"`
		SampleFee      string `json:"sample_fee"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ClientID == 0 || body.ManufacturerID == 0 {
		writeError(w, r, "client_id and manufacturer_id are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	sampleFee := decimal.Zero
	if body.SampleFee != "" {
		var err error
		sampleFee, err = decimal.NewFromString(body.SampleFee)
		if err != nil {
			writeError(w, r, "invalid sample_fee", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), actor(r), app.CreateOrderRequest{
		ClientID:       body.ClientID,
		ManufacturerID: body.ManufacturerID,
		SampleFee:      sampleFee,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, order)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// setOrderStatus handles POST /api/orders/{id}/status. Body: { status }.
func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	order, err := h.svc.SetOrderStatus(r.Context(), actor(r), id, core.OrderStatus(body.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// setOrderMargin handles POST /api/orders/{id}/margin.
// Body: { product_margin_percent, shipping_margin_percent }.
func (h *Handler) setOrderMargin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		ProductMarginPercent  string `json:"product_margin_percent"`
		ShippingMarginPercent string `json:"shipping_margin_percent"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	productPct, err := decimal.NewFromString(body.ProductMarginPercent)
	if err != nil {
		writeError(w, r, "invalid product_margin_percent", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	shippingPct, err := decimal.NewFromString(body.ShippingMarginPercent)
	if err != nil {
		writeError(w, r, "invalid shipping_margin_percent", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	order, err := h.svc.SetOrderMargin(r.Context(), actor(r), app.OrderMarginRequest{
		OrderID:               id,
		ProductMarginPercent:  productPct,
		ShippingMarginPercent: shippingPct,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// addProduct handles POST /api/orders/{id}/products.
// Body: { product_name, category?, unit_price?, sample_fee?, air_shipping_cost?,
// boat_shipping_cost?, selected_shipping_method?, items: [{size, color, quantity, note?}] }
func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		ProductName      string `json:"product_name"`
		Category         string `json:"category"`
		UnitPrice        string `json:"unit_price"`
		SampleFee        string `json:"sample_fee"`
		AirShippingCost  string `json:"air_shipping_cost"`
		BoatShippingCost string `json:"boat_shipping_cost"`
		SelectedShipping string `json:"selected_shipping_method"`
		Items            []struct {
			Size     string `json:"size"`
			Color    string `json:"color"`
			Quantity int64  `json:"quantity"`
			Note     string `json:"note"`
		} `json:"items"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	input := core.ProductInput{
		ProductName:      body.ProductName,
		Category:         core.ProductCategory(body.Category),
		SelectedShipping: core.ShippingMethod(body.SelectedShipping),
	}
	for name, pair := range map[string]struct {
		raw  string
		dest *decimal.Decimal
	}{
		"unit_price":         {body.UnitPrice, &input.UnitPrice},
		"sample_fee":         {body.SampleFee, &input.SampleFee},
		"air_shipping_cost":  {body.AirShippingCost, &input.AirShippingCost},
		"boat_shipping_cost": {body.BoatShippingCost, &input.BoatShippingCost},
	} {
		if pair.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(pair.raw)
		if err != nil {
			writeError(w, r, fmt.Sprintf("invalid %s", name), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		*pair.dest = v
	}
	for _, it := range body.Items {
		input.Items = append(input.Items, core.ItemInput{
			Size: it.Size, Color: it.Color, Quantity: it.Quantity, Note: it.Note,
		})
	}

	product, err := h.svc.AddProduct(r.Context(), actor(r), app.AddProductRequest{OrderID: id, Product: input})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, product)
}

// reconcile handles GET /api/orders/{id}/reconcile.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, summary)
}
