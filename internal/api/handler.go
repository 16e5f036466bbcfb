package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"clinic/m/internal/audit"
	"clinic/m/internal/inventory"
	"clinic/m/internal/notify"
)

// Deps bundles what the HTTP layer needs.
type Deps struct {
	DB            *sqlx.DB
	Secret        string
	TokenTTL      time.Duration
	Inventory     *inventory.Service
	Audit         *audit.Store
	Notifications *notify.Store
	Logger        zerolog.Logger
	CORSOrigins   []string
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db            *sqlx.DB
	secret        string
	tokenTTL      time.Duration
	inventory     *inventory.Service
	audit         *audit.Store
	notifications *notify.Store
	log           zerolog.Logger
	corsOrigins   []string
}

// New constructs a Handler.
func New(d Deps) *Handler {
	ttl := d.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		db:            d.DB,
		secret:        d.Secret,
		tokenTTL:      ttl,
		inventory:     d.Inventory,
		audit:         d.Audit,
		notifications: d.Notifications,
		log:           d.Logger,
		corsOrigins:   origins,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(recoverer(h.log))

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/drugs", h.listDrugs)
			r.Post("/drugs", h.createDrug)
			r.Get("/drugs/expiring", h.expiringDrugs)
			r.Get("/drugs/{id}", h.getDrug)
			r.Put("/drugs/{id}", h.updateDrug)
			r.Post("/drugs/{id}/restock", h.restockDrug)
			r.Get("/drugs/{id}/restocks", h.drugRestocks)
			r.Get("/low-stock", h.lowStock)
			r.Get("/categories", h.listCategories)
			r.Get("/forms", h.listForms)
			r.Post("/pricing/quote", h.quotePrice)
			r.Post("/prescriptions/quantity", h.prescriptionQuantity)
			r.Get("/restocks", h.listRestocks)
			r.Post("/restocks/{id}/approve", h.approveRestock)
			r.Post("/restocks/{id}/reject", h.rejectRestock)
		})

		pr.Get("/audit", h.listAudit)

		pr.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Post("/{id}/read", h.markNotificationRead)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":                    "ok",
		"restock_approval_required": h.inventory.ApprovalRequired(),
	})
}
