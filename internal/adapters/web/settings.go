package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// getSettings handles GET /api/settings.
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

// updateSetting handles PUT /api/settings/{key}. Body: { value }.
func (h *Handler) updateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	value, err := decimal.NewFromString(body.Value)
	if err != nil {
		writeError(w, r, "invalid value", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.UpdateSetting(r.Context(), actor(r), key, value); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{key: value.String()})
}
