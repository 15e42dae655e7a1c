package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"makerdesk/internal/app"
	"makerdesk/internal/core"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
// Authentication itself is an external collaborator; the gateway in front of
// this service injects the verified actor identity as X-Actor-* headers.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(RequestTimeout(30 * time.Second))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Orders and workflow
		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Post("/api/orders/{id}/status", h.setOrderStatus)
		r.Post("/api/orders/{id}/margin", h.setOrderMargin)
		r.Post("/api/orders/{id}/products", h.addProduct)
		r.Get("/api/orders/{id}/invoices", h.listInvoices)
		r.Get("/api/orders/{id}/reconcile", h.reconcile)

		// Products
		r.Post("/api/products/{id}/status", h.setProductStatus)
		r.Post("/api/products/{id}/route", h.routeProduct)
		r.Post("/api/products/{id}/lock", h.claimLock)
		r.Post("/api/products/{id}/unlock", h.releaseLock)
		r.Patch("/api/products/{id}/pricing", h.updatePricing)
		r.Post("/api/products/{id}/media", h.addProductMedia)
		r.Get("/api/products/{id}/media", h.listProductMedia)
		r.Delete("/api/products/{id}", h.deleteProduct)
		r.Post("/api/products/{id}/restore", h.restoreProduct)
		r.Get("/api/products/deleted", h.listDeletedProducts)

		// Invoices
		r.Post("/api/invoices", h.createInvoice)
		r.Get("/api/invoices/{id}", h.getInvoice)
		r.Post("/api/invoices/{id}/send", h.sendInvoice)
		r.Post("/api/invoices/{id}/void", h.voidInvoice)
		r.Post("/api/invoices/{id}/paid", h.markInvoicePaid)

		// Settings
		r.Get("/api/settings", h.getSettings)
		r.Put("/api/settings/{key}", h.updateSetting)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// actor reads the verified identity headers injected by the gateway.
func actor(r *http.Request) core.Actor {
	id, _ := strconv.Atoi(r.Header.Get("X-Actor-ID"))
	role := core.Role(r.Header.Get("X-Actor-Role"))
	if role == "" {
		role = core.RoleAdmin
	}
	return core.Actor{
		ID:   id,
		Name: r.Header.Get("X-Actor-Name"),
		Role: role,
	}
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id in path", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
