package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clinic/m/domain"
	"clinic/m/internal/inventory"
	"clinic/m/internal/pricing"
)

// Drug Handlers

func (h *Handler) listDrugs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))
	drugs, err := h.inventory.ListDrugs(r.Context(), inventory.DrugFilter{
		Query:           strings.TrimSpace(q.Get("q")),
		IncludeInactive: includeInactive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, drugs)
}

type createDrugRequest struct {
	Basic   *inventory.DrugBasics  `json:"basic"`
	Pricing *inventory.DrugPricing `json:"pricing"`
}

func (h *Handler) createDrug(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	var req createDrugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := inventory.NewDrugBuilder()
	if req.Basic != nil {
		b.WithBasics(*req.Basic)
	}
	if req.Pricing != nil {
		b.WithPricing(*req.Pricing)
	}
	cmd, err := b.Build()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	drug, err := h.inventory.CreateDrug(r.Context(), actorFromContext(r), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, drug)
}

func (h *Handler) getDrug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	drug, err := h.inventory.GetDrug(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, drug)
}

func (h *Handler) updateDrug(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	var req inventory.UpdateDrugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	drug, err := h.inventory.UpdateDrug(r.Context(), actorFromContext(r), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, drug)
}

// restockDrug returns the updated drug, or 202 with the pending event when
// the restock awaits approval.
func (h *Handler) restockDrug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	var req inventory.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.inventory.Restock(r.Context(), actorFromContext(r), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Pending {
		respondJSON(w, http.StatusAccepted, res)
		return
	}
	respondJSON(w, http.StatusOK, res.Drug)
}

func (h *Handler) drugRestocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	events, err := h.inventory.ListRestocks(r.Context(), inventory.RestockFilter{DrugID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Monitors

func (h *Handler) expiringDrugs(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}
	drugs, err := h.inventory.Expiring(r.Context(), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, drugs)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.inventory.LowStock(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, drugs)
}

// Reference data

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) listForms(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.Forms(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Calculators

type quoteResponse struct {
	Quote   pricing.Quote   `json:"quote"`
	Display pricing.Display `json:"display"`
}

func (h *Handler) quotePrice(w http.ResponseWriter, r *http.Request) {
	var in pricing.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.inventory.Quote(in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quoteResponse{Quote: q, Display: q.Display()})
}

type prescriptionRequest struct {
	Dose        float64 `json:"dose"`
	TimesPerDay int64   `json:"times_per_day"`
	Days        int64   `json:"days"`
}

func (h *Handler) prescriptionQuantity(w http.ResponseWriter, r *http.Request) {
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	qty, err := pricing.PrescriptionQuantity(req.Dose, req.TimesPerDay, req.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"quantity": qty})
}

// Restock review

func (h *Handler) listRestocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.RestockFilter{Status: domain.RestockStatus(q.Get("status"))}
	if f.Status != "" && f.Status != domain.RestockPending && f.Status != domain.RestockApproved && f.Status != domain.RestockRejected {
		respondError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}
	if raw := q.Get("drug_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid drug_id")
			return
		}
		f.DrugID = id
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = n
		}
	}
	events, err := h.inventory.ListRestocks(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) approveRestock(w http.ResponseWriter, r *http.Request) {
	res, err := h.inventory.ApproveRestock(r.Context(), actorFromContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) rejectRestock(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	res, err := h.inventory.RejectRestock(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), payload.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
