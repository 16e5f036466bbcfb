package inventory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
	"clinic/m/internal/audit"
	"clinic/m/internal/notify"
	"clinic/m/internal/pricing"
)

// Actor is the authenticated staff member behind a call.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

type Options struct {
	// ApprovalRequired gates restocks by non-admins behind an admin review.
	ApprovalRequired bool
	Now              func() time.Time
}

// DrugView is a drug together with everything derived from it.
type DrugView struct {
	domain.Drug
	Prices          pricing.Quote   `json:"prices"`
	DisplayPrices   pricing.Display `json:"display_prices"`
	LowStock        bool            `json:"low_stock"`
	Expired         bool            `json:"expired"`
	ExpiryStatus    ExpiryStatus    `json:"expiry_status"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
}

func NewDrugView(d domain.Drug, now time.Time) DrugView {
	q := pricing.Compute(pricing.FromDrug(d))
	v := DrugView{
		Drug:          d,
		Prices:        q,
		DisplayPrices: q.Display(),
		LowStock:      IsLowStock(d),
		Expired:       IsExpired(d, now),
		ExpiryStatus:  ExpiryStatusOf(d, now),
	}
	if days, ok := DaysUntilExpiry(d, now); ok {
		v.DaysUntilExpiry = &days
	}
	return v
}

// RestockRequest is one submitted restock form. SaleQuantity is accepted for
// compatibility with clients that preview it, but the stored value is always
// derived from the drug's units per purchase.
type RestockRequest struct {
	PurchaseQuantity int64   `json:"purchase_quantity"`
	BatchNumber      string  `json:"batch_number"`
	ExpiryDate       string  `json:"expiry_date"`
	Notes            *string `json:"notes,omitempty"`
	SaleQuantity     *int64  `json:"sale_quantity,omitempty"`
}

func (r RestockRequest) validate() (time.Time, error) {
	v := &apperr.ValidationError{}
	if r.PurchaseQuantity < 1 {
		v.Add("purchase_quantity", "must be at least 1")
	}
	if strings.TrimSpace(r.BatchNumber) == "" {
		v.Add("batch_number", "is required")
	}
	var exp time.Time
	if strings.TrimSpace(r.ExpiryDate) == "" {
		v.Add("expiry_date", "is required")
	} else if t, err := ParseDate(r.ExpiryDate); err != nil {
		v.Add("expiry_date", "must be a date (YYYY-MM-DD)")
	} else {
		exp = t
	}
	return exp, v.OrNil()
}

// RestockResult is returned by every restock operation. Drug reflects the
// stock after the operation; Pending is true when no stock was added yet.
type RestockResult struct {
	Drug    DrugView            `json:"drug"`
	Event   domain.RestockEvent `json:"restock"`
	Pending bool                `json:"pending"`
}

// UpdateDrugRequest replaces the editable fields of a drug. Stock cannot be
// edited; it only moves through restocks.
type UpdateDrugRequest struct {
	Basic   DrugBasics  `json:"basic"`
	Pricing DrugPricing `json:"pricing"`
	Active  *bool       `json:"active,omitempty"`
}

type Service struct {
	repo             Repository
	audit            audit.Recorder
	notifier         notify.Notifier
	log              zerolog.Logger
	approvalRequired bool
	now              func() time.Time
}

func NewService(repo Repository, rec audit.Recorder, n notify.Notifier, logger zerolog.Logger, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:             repo,
		audit:            rec,
		notifier:         n,
		log:              logger.With().Str("component", "inventory").Logger(),
		approvalRequired: opts.ApprovalRequired,
		now:              now,
	}
}

func (s *Service) ApprovalRequired() bool {
	return s.approvalRequired
}

// -- Drugs --

func (s *Service) ListDrugs(ctx context.Context, f DrugFilter) ([]DrugView, error) {
	drugs, err := s.repo.ListDrugs(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.views(drugs), nil
}

func (s *Service) GetDrug(ctx context.Context, id int64) (*DrugView, error) {
	d, err := s.repo.GetDrug(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewDrugView(*d, s.now())
	return &v, nil
}

func (s *Service) CreateDrug(ctx context.Context, actor Actor, cmd CreateDrugCommand) (*DrugView, error) {
	if !cmd.valid() {
		return nil, apperr.Invalid("drug", "must be built from basic and pricing details")
	}
	d := cmd.Drug()
	if err := s.checkReferences(ctx, d); err != nil {
		return nil, err
	}
	now := s.now()
	d.Stock = 0
	d.Active = true
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.repo.InsertDrug(ctx, &d); err != nil {
		return nil, err
	}

	s.record(ctx, actor, "create", "drug", strconv.FormatInt(d.ID, 10), map[string]any{
		"name":               d.Name,
		"purchase_price":     d.PurchasePrice,
		"units_per_purchase": d.UnitsPerPurchase,
	})
	v := NewDrugView(d, now)
	return &v, nil
}

func (s *Service) UpdateDrug(ctx context.Context, actor Actor, id int64, req UpdateDrugRequest) (*DrugView, error) {
	cmd, err := NewDrugBuilder().WithBasics(req.Basic).WithPricing(req.Pricing).Build()
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetDrug(ctx, id)
	if err != nil {
		return nil, err
	}
	d := cmd.Drug()
	if err := s.checkReferences(ctx, d); err != nil {
		return nil, err
	}
	d.ID = existing.ID
	d.Stock = existing.Stock
	d.CreatedAt = existing.CreatedAt
	d.Active = existing.Active
	if req.Active != nil {
		d.Active = *req.Active
	}
	d.UpdatedAt = s.now()
	if err := s.repo.UpdateDrug(ctx, &d); err != nil {
		return nil, err
	}

	s.record(ctx, actor, "update", "drug", strconv.FormatInt(d.ID, 10), changedFields(*existing, d))
	v := NewDrugView(d, s.now())
	return &v, nil
}

func (s *Service) checkReferences(ctx context.Context, d domain.Drug) error {
	ok, err := s.repo.CategoryExists(ctx, d.Category)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("category %q", d.Category)
	}
	for _, form := range []string{d.PurchaseForm, d.SaleForm} {
		ok, err := s.repo.FormExists(ctx, form)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("form %q", form)
		}
	}
	return nil
}

// -- Monitors --

func (s *Service) LowStock(ctx context.Context) ([]DrugView, error) {
	return s.ListDrugs(ctx, DrugFilter{LowStockOnly: true})
}

// Expiring lists active drugs expiring within days (expired ones included),
// soonest first.
func (s *Service) Expiring(ctx context.Context, days int) ([]DrugView, error) {
	if days <= 0 {
		days = WarningWindowDays
	}
	drugs, err := s.repo.ListDrugs(ctx, DrugFilter{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []DrugView{}
	for _, d := range drugs {
		if left, ok := DaysUntilExpiry(d, now); ok && left <= days {
			out = append(out, NewDrugView(d, now))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(*out[j].ExpiryDate)
	})
	return out, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) Forms(ctx context.Context) ([]domain.Form, error) {
	return s.repo.ListForms(ctx)
}

// -- Restock workflow --

// Restock validates a restock form and either commits it immediately or,
// when approval is required and the actor is not an admin, files it as
// pending without touching stock.
func (s *Service) Restock(ctx context.Context, actor Actor, drugID int64, req RestockRequest) (*RestockResult, error) {
	expiry, err := req.validate()
	if err != nil {
		return nil, err
	}
	ev := domain.RestockEvent{
		ID:               uuid.NewString(),
		DrugID:           drugID,
		PurchaseQuantity: req.PurchaseQuantity,
		BatchNumber:      strings.TrimSpace(req.BatchNumber),
		ExpiryDate:       expiry,
		Notes:            trimmedOrNil(req.Notes),
		RequestedBy:      actor.UserID,
		CreatedAt:        s.now(),
	}
	if s.approvalRequired && !actor.IsAdmin() {
		return s.fileRestock(ctx, actor, ev)
	}
	return s.commitRestock(ctx, actor, ev)
}

func (s *Service) commitRestock(ctx context.Context, actor Actor, ev domain.RestockEvent) (*RestockResult, error) {
	err := s.repo.InTx(ctx, func(tx Repository) error {
		if err := s.applyRestock(ctx, tx, actor, &ev); err != nil {
			return err
		}
		return tx.InsertRestock(ctx, &ev)
	})
	if err != nil {
		return nil, err
	}
	return s.afterApply(ctx, actor, ev, "restock")
}

// applyRestock increments the ledger and stamps ev as approved with the
// conversion factor the increment actually used.
func (s *Service) applyRestock(ctx context.Context, tx Repository, actor Actor, ev *domain.RestockEvent) error {
	now := s.now()
	_, units, err := tx.IncrementStock(ctx, ev.DrugID, ev.PurchaseQuantity, now)
	if err != nil {
		return err
	}
	reviewer := actor.UserID
	ev.UnitsPerPurchase = units
	ev.SaleQuantity = ev.PurchaseQuantity * units
	ev.Status = domain.RestockApproved
	ev.ReviewedBy = &reviewer
	ev.ReviewedAt = &now
	return nil
}

func (s *Service) afterApply(ctx context.Context, actor Actor, ev domain.RestockEvent, action string) (*RestockResult, error) {
	d, err := s.repo.GetDrug(ctx, ev.DrugID)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("restock_id", ev.ID).
		Int64("drug_id", ev.DrugID).
		Int64("sale_quantity", ev.SaleQuantity).
		Int64("stock", d.Stock).
		Msg("restock applied")

	s.record(ctx, actor, action, "restock", ev.ID, map[string]any{
		"drug_id":           ev.DrugID,
		"purchase_quantity": ev.PurchaseQuantity,
		"sale_quantity":     ev.SaleQuantity,
		"batch_number":      ev.BatchNumber,
		"stock":             d.Stock,
	})
	if ev.RequestedBy != actor.UserID {
		s.send(ctx, domain.Notification{
			Type:        domain.NotifyRestockApproved,
			Message:     notify.Describe(domain.NotifyRestockApproved, d.Name, ev.SaleQuantity),
			DrugID:      &ev.DrugID,
			RestockID:   &ev.ID,
			RecipientID: &ev.RequestedBy,
		})
	}
	if IsLowStock(*d) {
		role := domain.RoleAdmin
		s.send(ctx, domain.Notification{
			Type:          domain.NotifyLowStock,
			Message:       notify.Describe(domain.NotifyLowStock, d.Name, 0),
			DrugID:        &ev.DrugID,
			RecipientRole: &role,
		})
	}
	return &RestockResult{Drug: NewDrugView(*d, s.now()), Event: ev}, nil
}

func (s *Service) fileRestock(ctx context.Context, actor Actor, ev domain.RestockEvent) (*RestockResult, error) {
	d, err := s.repo.GetDrug(ctx, ev.DrugID)
	if err != nil {
		return nil, err
	}
	ev.UnitsPerPurchase = d.UnitsPerPurchase
	ev.SaleQuantity = d.SaleUnits(ev.PurchaseQuantity)
	ev.Status = domain.RestockPending
	if err := s.repo.InsertRestock(ctx, &ev); err != nil {
		return nil, err
	}

	s.log.Info().Str("restock_id", ev.ID).Int64("drug_id", ev.DrugID).Msg("restock awaiting approval")
	s.record(ctx, actor, "restock_request", "restock", ev.ID, map[string]any{
		"drug_id":           ev.DrugID,
		"purchase_quantity": ev.PurchaseQuantity,
		"sale_quantity":     ev.SaleQuantity,
		"batch_number":      ev.BatchNumber,
	})
	role := domain.RoleAdmin
	s.send(ctx, domain.Notification{
		Type:          domain.NotifyRestockPending,
		Message:       notify.Describe(domain.NotifyRestockPending, d.Name, ev.SaleQuantity),
		DrugID:        &ev.DrugID,
		RestockID:     &ev.ID,
		RecipientRole: &role,
	})
	return &RestockResult{Drug: NewDrugView(*d, s.now()), Event: ev, Pending: true}, nil
}

// ApproveRestock applies a pending restock using the drug's units per
// purchase at approval time.
func (s *Service) ApproveRestock(ctx context.Context, actor Actor, id string) (*RestockResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	var ev *domain.RestockEvent
	err := s.repo.InTx(ctx, func(tx Repository) error {
		var err error
		ev, err = tx.GetRestock(ctx, id)
		if err != nil {
			return err
		}
		if ev.Status != domain.RestockPending {
			return apperr.Conflict("restock %s is %s", id, ev.Status)
		}
		if err := s.applyRestock(ctx, tx, actor, ev); err != nil {
			return err
		}
		return tx.ReviewRestock(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return s.afterApply(ctx, actor, *ev, "restock_approve")
}

func (s *Service) RejectRestock(ctx context.Context, actor Actor, id, reason string) (*RestockResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	ev, err := s.repo.GetRestock(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Status != domain.RestockPending {
		return nil, apperr.Conflict("restock %s is %s", id, ev.Status)
	}
	now := s.now()
	reviewer := actor.UserID
	ev.Status = domain.RestockRejected
	ev.ReviewedBy = &reviewer
	ev.ReviewedAt = &now
	ev.ReviewReason = trimmedOrNil(&reason)
	if err := s.repo.ReviewRestock(ctx, ev); err != nil {
		return nil, err
	}

	d, err := s.repo.GetDrug(ctx, ev.DrugID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "restock_reject", "restock", ev.ID, map[string]any{
		"drug_id": ev.DrugID,
		"reason":  reason,
	})
	s.send(ctx, domain.Notification{
		Type:        domain.NotifyRestockRejected,
		Message:     notify.Describe(domain.NotifyRestockRejected, d.Name, ev.SaleQuantity),
		DrugID:      &ev.DrugID,
		RestockID:   &ev.ID,
		RecipientID: &ev.RequestedBy,
	})
	return &RestockResult{Drug: NewDrugView(*d, now), Event: *ev}, nil
}

func (s *Service) ListRestocks(ctx context.Context, f RestockFilter) ([]domain.RestockEvent, error) {
	if f.DrugID > 0 {
		if _, err := s.repo.GetDrug(ctx, f.DrugID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListRestocks(ctx, f)
}

// -- Pricing --

// Quote validates pricing inputs and prices one sale unit.
func (s *Service) Quote(in pricing.Input) (pricing.Quote, error) {
	if err := pricing.Validate(in); err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Compute(in), nil
}

// -- helpers --

func (s *Service) views(drugs []domain.Drug) []DrugView {
	now := s.now()
	out := make([]DrugView, len(drugs))
	for i, d := range drugs {
		out[i] = NewDrugView(d, now)
	}
	return out
}

// record writes an audit entry; failures are logged and never returned.
func (s *Service) record(ctx context.Context, actor Actor, action, entity, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	rec := domain.AuditRecord{
		ID:         uuid.NewString(),
		ActionType: action,
		EntityType: entity,
		EntityID:   entityID,
		Details:    string(raw),
		CreatedAt:  s.now(),
	}
	if actor.UserID > 0 {
		uid := actor.UserID
		rec.ActorID = &uid
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("entity_id", entityID).Msg("failed to record audit entry")
	}
}

func (s *Service) send(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("type", n.Type).Msg("failed to deliver notification")
	}
}

func changedFields(before, after domain.Drug) map[string]any {
	changes := map[string]any{}
	add := func(name string, a, b any) {
		if a != b {
			changes[name] = map[string]any{"from": a, "to": b}
		}
	}
	add("name", before.Name, after.Name)
	add("category", before.Category, after.Category)
	add("strength", before.Strength, after.Strength)
	add("unit", before.Unit, after.Unit)
	add("purchase_form", before.PurchaseForm, after.PurchaseForm)
	add("purchase_price", before.PurchasePrice, after.PurchasePrice)
	add("units_per_purchase", before.UnitsPerPurchase, after.UnitsPerPurchase)
	add("sale_form", before.SaleForm, after.SaleForm)
	add("pos_markup", before.PosMarkup, after.PosMarkup)
	add("prescription_markup", before.PrescriptionMarkup, after.PrescriptionMarkup)
	add("min_stock", before.MinStock, after.MinStock)
	add("active", before.Active, after.Active)
	add("expiry_date", dateString(before.ExpiryDate), dateString(after.ExpiryDate))
	return changes
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
