package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
)

// setProductStatus handles POST /api/products/{id}/status. Body: { status }.
func (h *Handler) setProductStatus(w http.ResponseWriter, r *http.Request) {
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
	product, err := h.svc.SetProductStatus(r.Context(), actor(r), id, core.ProductStatus(body.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// routeProduct handles POST /api/products/{id}/route. Body: { to }.
func (h *Handler) routeProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		To string `json:"to"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	product, err := h.svc.RouteProduct(r.Context(), actor(r), id, core.Role(body.To))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// claimLock handles POST /api/products/{id}/lock.
func (h *Handler) claimLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.svc.ClaimLock(r.Context(), actor(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// releaseLock handles POST /api/products/{id}/unlock.
func (h *Handler) releaseLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.svc.ReleaseLock(r.Context(), actor(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// updatePricing handles PATCH /api/products/{id}/pricing. Every field is
// optional; absent fields are left untouched.
func (h *Handler) updatePricing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		UnitPrice             *string `json:"unit_price"`
		SampleFee             *string `json:"sample_fee"`
		AirShippingCost       *string `json:"air_shipping_cost"`
		BoatShippingCost      *string `json:"boat_shipping_cost"`
		ClientUnitPrice       *string `json:"client_unit_price"`
		ClientShippingPrice   *string `json:"client_shipping_price"`
		ClientSampleFee       *string `json:"client_sample_fee"`
		MarginPercent         *string `json:"margin_percent"`
		ShippingMarginPercent *string `json:"shipping_margin_percent"`
		SelectedShipping      *string `json:"selected_shipping_method"`
		ETA                   *string `json:"eta"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	var upd core.PricingUpdate
	for name, pair := range map[string]struct {
		raw  *string
		dest **decimal.Decimal
	}{
		"unit_price":              {body.UnitPrice, &upd.UnitPrice},
		"sample_fee":              {body.SampleFee, &upd.SampleFee},
		"air_shipping_cost":       {body.AirShippingCost, &upd.AirShippingCost},
		"boat_shipping_cost":      {body.BoatShippingCost, &upd.BoatShippingCost},
		"client_unit_price":       {body.ClientUnitPrice, &upd.ClientUnitPrice},
		"client_shipping_price":   {body.ClientShippingPrice, &upd.ClientShippingPrice},
		"client_sample_fee":       {body.ClientSampleFee, &upd.ClientSampleFee},
		"margin_percent":          {body.MarginPercent, &upd.MarginPercent},
		"shipping_margin_percent": {body.ShippingMarginPercent, &upd.ShippingMarginPercent},
	} {
		if pair.raw == nil {
			continue
		}
		v, err := decimal.NewFromString(*pair.raw)
		if err != nil {
			writeError(w, r, fmt.Sprintf("invalid %s", name), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		*pair.dest = &v
	}
	if body.SelectedShipping != nil {
		m := core.ShippingMethod(*body.SelectedShipping)
		upd.SelectedShipping = &m
	}
	if body.ETA != nil {
		t, err := time.Parse(time.RFC3339, *body.ETA)
		if err != nil {
			writeError(w, r, "invalid eta, expected RFC 3339", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		upd.ETA = &t
	}

	product, err := h.svc.UpdateProductPricing(r.Context(), actor(r), id, upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// addProductMedia handles POST /api/products/{id}/media. Body: { object_key,
// filename }. The object itself is uploaded to storage out of band; this only
// records the reference.
func (h *Handler) addProductMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		ObjectKey string `json:"object_key"`
		Filename  string `json:"filename"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ref, err := h.svc.AddProductMedia(r.Context(), actor(r), id, body.ObjectKey, body.Filename)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, ref)
}

// listProductMedia handles GET /api/products/{id}/media.
func (h *Handler) listProductMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	refs, err := h.svc.ListProductMedia(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, refs)
}

// deleteProduct handles DELETE /api/products/{id}. Body: { reason }.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.DeleteProduct(r.Context(), actor(r), id, body.Reason); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

// restoreProduct handles POST /api/products/{id}/restore.
func (h *Handler) restoreProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.svc.RestoreProduct(r.Context(), actor(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// listDeletedProducts handles GET /api/products/deleted.
func (h *Handler) listDeletedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListDeletedProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, products)
}
