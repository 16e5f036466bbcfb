package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
	"clinic/m/internal/audit"
	"clinic/m/internal/database"
	"clinic/m/internal/migrations"
)

var (
	admin      = Actor{UserID: 1, Role: domain.RoleAdmin}
	pharmacist = Actor{UserID: 2, Role: domain.RolePharmacist}
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	for _, c := range []string{"Analgesic", "Antibiotic"} {
		db.MustExec(`INSERT INTO categories (name) VALUES (?)`, c)
	}
	for _, f := range []string{"Box", "Bottle", "Tablet", "ml"} {
		db.MustExec(`INSERT INTO forms (name) VALUES (?)`, f)
	}
	return db
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Type)
	}
	return out
}

type fixture struct {
	db       *sqlx.DB
	repo     Repository
	svc      *Service
	audits   *[]domain.AuditRecord
	notifier *recordingNotifier
}

func newFixture(t *testing.T, approval bool) *fixture {
	t.Helper()
	db := newTestDB(t)
	repo := NewSQLRepository(db)
	var (
		mu      sync.Mutex
		records []domain.AuditRecord
	)
	rec := audit.RecorderFunc(func(_ context.Context, r domain.AuditRecord) error {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, r)
		return nil
	})
	n := &recordingNotifier{}
	svc := NewService(repo, rec, n, zerolog.Nop(), Options{
		ApprovalRequired: approval,
		Now:              func() time.Time { return refNow },
	})
	return &fixture{db: db, repo: repo, svc: svc, audits: &records, notifier: n}
}

func validBasics() DrugBasics {
	return DrugBasics{Name: "Paracetamol", Category: "Analgesic", Strength: "500", Unit: "mg"}
}

func validPricing() DrugPricing {
	return DrugPricing{
		PurchaseForm:       "Box",
		PurchasePrice:      100,
		UnitsPerPurchase:   100,
		SaleForm:           "Tablet",
		PosMarkup:          0.20,
		PrescriptionMarkup: 0.10,
		MinStock:           50,
		ExpiryDate:         "2027-01-31",
	}
}

func (f *fixture) createDrug(t *testing.T) *DrugView {
	t.Helper()
	cmd, err := NewDrugBuilder().WithBasics(validBasics()).WithPricing(validPricing()).Build()
	require.NoError(t, err)
	v, err := f.svc.CreateDrug(context.Background(), admin, cmd)
	require.NoError(t, err)
	return v
}

func restockReq(qty int64) RestockRequest {
	return RestockRequest{PurchaseQuantity: qty, BatchNumber: "B-001", ExpiryDate: "2027-06-30"}
}

func TestService_CreateDrug(t *testing.T) {
	f := newFixture(t, false)
	v := f.createDrug(t)

	assert.NotZero(t, v.ID)
	assert.Zero(t, v.Stock)
	assert.True(t, v.Active)
	assert.InDelta(t, 1.00, v.Prices.UnitCost, 1e-9)
	assert.InDelta(t, 1.20, v.Prices.PosPrice, 1e-9)
	assert.InDelta(t, 1.10, v.Prices.PrescriptionPrice, 1e-9)
	assert.Equal(t, "1.20", v.DisplayPrices.PosPrice)
	assert.True(t, v.LowStock, "stock 0 is below min 50")

	got, err := f.svc.GetDrug(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", got.Name)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, "2027-01-31", got.ExpiryDate.Format("2006-01-02"))

	require.Len(t, *f.audits, 1)
	assert.Equal(t, "create", (*f.audits)[0].ActionType)
	assert.Equal(t, "drug", (*f.audits)[0].EntityType)
}

func TestService_CreateDrug_UnknownReference(t *testing.T) {
	f := newFixture(t, false)
	b := validBasics()
	b.Category = "Vaccine"
	cmd, err := NewDrugBuilder().WithBasics(b).WithPricing(validPricing()).Build()
	require.NoError(t, err)

	_, err = f.svc.CreateDrug(context.Background(), admin, cmd)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	p := validPricing()
	p.SaleForm = "Lozenge"
	cmd, err = NewDrugBuilder().WithBasics(validBasics()).WithPricing(p).Build()
	require.NoError(t, err)
	_, err = f.svc.CreateDrug(context.Background(), admin, cmd)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_CreateDrug_RejectsUnbuiltCommand(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.CreateDrug(context.Background(), admin, CreateDrugCommand{})
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)
}

func TestService_Restock_Immediate(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)

	res, err := f.svc.Restock(context.Background(), pharmacist, d.ID, restockReq(5))
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.EqualValues(t, 500, res.Drug.Stock)
	assert.EqualValues(t, 500, res.Event.SaleQuantity)
	assert.EqualValues(t, 100, res.Event.UnitsPerPurchase)
	assert.Equal(t, domain.RestockApproved, res.Event.Status)

	events, err := f.svc.ListRestocks(context.Background(), RestockFilter{DrugID: d.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.EqualValues(t, 500, events[0].SaleQuantity)
	assert.Equal(t, "B-001", events[0].BatchNumber)
	assert.Equal(t, "2027-06-30", events[0].ExpiryDate.Format("2006-01-02"))
}

func TestService_Restock_UsesCurrentUnitsNotClientValue(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)

	p := validPricing()
	p.UnitsPerPurchase = 30
	_, err := f.svc.UpdateDrug(context.Background(), admin, d.ID, UpdateDrugRequest{Basic: validBasics(), Pricing: p})
	require.NoError(t, err)

	stale := int64(200)
	req := restockReq(2)
	req.SaleQuantity = &stale
	res, err := f.svc.Restock(context.Background(), pharmacist, d.ID, req)
	require.NoError(t, err)
	assert.EqualValues(t, 60, res.Drug.Stock)
	assert.EqualValues(t, 60, res.Event.SaleQuantity)
}

func TestService_Restock_Validation(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)

	_, err := f.svc.Restock(context.Background(), pharmacist, d.ID, RestockRequest{PurchaseQuantity: 0, ExpiryDate: "soon"})
	v, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "purchase_quantity")
	assert.Contains(t, v.Fields, "batch_number")
	assert.Contains(t, v.Fields, "expiry_date")

	got, err := f.svc.GetDrug(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
	events, err := f.svc.ListRestocks(context.Background(), RestockFilter{DrugID: d.ID})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_Restock_UnknownDrug(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Restock(context.Background(), pharmacist, 999, restockReq(1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var count int
	require.NoError(t, f.db.Get(&count, `SELECT COUNT(*) FROM restock_events`))
	assert.Zero(t, count)
}

func TestService_Restock_Concurrent(t *testing.T) {
	f := newFixture(t, false)
	cmd, err := NewDrugBuilder().WithBasics(validBasics()).WithPricing(DrugPricing{
		PurchaseForm: "Box", PurchasePrice: 10, UnitsPerPurchase: 10, SaleForm: "Tablet",
	}).Build()
	require.NoError(t, err)
	d, err := f.svc.CreateDrug(context.Background(), admin, cmd)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Restock(context.Background(), pharmacist, d.ID, restockReq(1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetDrug(context.Background(), d.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workers*10, got.Stock)
}

type failingRepo struct {
	Repository
}

func (r failingRepo) InsertRestock(context.Context, *domain.RestockEvent) error {
	return apperr.Persistence("insert restock event", errors.New("disk full"))
}

func (r failingRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	return r.Repository.InTx(ctx, func(tx Repository) error {
		return fn(failingRepo{Repository: tx})
	})
}

func TestService_Restock_RollsBackOnEventFailure(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)

	svc := NewService(failingRepo{Repository: f.repo}, nil, nil, zerolog.Nop(), Options{Now: func() time.Time { return refNow }})
	_, err := svc.Restock(context.Background(), pharmacist, d.ID, restockReq(3))
	require.ErrorIs(t, err, apperr.ErrPersistence)

	got, err := f.svc.GetDrug(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock, "stock increment must be rolled back")
}

func TestService_Restock_AuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)

	broken := audit.RecorderFunc(func(context.Context, domain.AuditRecord) error {
		return errors.New("audit store down")
	})
	svc := NewService(f.repo, broken, nil, zerolog.Nop(), Options{Now: func() time.Time { return refNow }})
	res, err := svc.Restock(context.Background(), pharmacist, d.ID, restockReq(1))
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.Drug.Stock)
}

func TestService_Restock_ApprovalFlow(t *testing.T) {
	f := newFixture(t, true)
	d := f.createDrug(t)
	ctx := context.Background()

	res, err := f.svc.Restock(ctx, pharmacist, d.ID, restockReq(2))
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, domain.RestockPending, res.Event.Status)
	assert.EqualValues(t, 200, res.Event.SaleQuantity)
	assert.Zero(t, res.Drug.Stock)

	pending, err := f.svc.ListRestocks(ctx, RestockFilter{Status: domain.RestockPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.svc.ApproveRestock(ctx, pharmacist, res.Event.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	approved, err := f.svc.ApproveRestock(ctx, admin, res.Event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 200, approved.Drug.Stock)
	assert.Equal(t, domain.RestockApproved, approved.Event.Status)
	require.NotNil(t, approved.Event.ReviewedBy)
	assert.EqualValues(t, admin.UserID, *approved.Event.ReviewedBy)

	_, err = f.svc.ApproveRestock(ctx, admin, res.Event.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := f.svc.GetDrug(ctx, d.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 200, got.Stock)

	assert.Contains(t, f.notifier.types(), domain.NotifyRestockPending)
	assert.Contains(t, f.notifier.types(), domain.NotifyRestockApproved)
}

func TestService_Restock_AdminBypassesApproval(t *testing.T) {
	f := newFixture(t, true)
	d := f.createDrug(t)

	res, err := f.svc.Restock(context.Background(), admin, d.ID, restockReq(1))
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.EqualValues(t, 100, res.Drug.Stock)
}

func TestService_RejectRestock(t *testing.T) {
	f := newFixture(t, true)
	d := f.createDrug(t)
	ctx := context.Background()

	res, err := f.svc.Restock(ctx, pharmacist, d.ID, restockReq(4))
	require.NoError(t, err)

	rejected, err := f.svc.RejectRestock(ctx, admin, res.Event.ID, "wrong supplier")
	require.NoError(t, err)
	assert.Equal(t, domain.RestockRejected, rejected.Event.Status)
	require.NotNil(t, rejected.Event.ReviewReason)
	assert.Equal(t, "wrong supplier", *rejected.Event.ReviewReason)
	assert.Zero(t, rejected.Drug.Stock)

	_, err = f.svc.ApproveRestock(ctx, admin, res.Event.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, f.notifier.types(), domain.NotifyRestockRejected)

	_, err = f.svc.RejectRestock(ctx, admin, "missing", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_UpdateDrug_KeepsStock(t *testing.T) {
	f := newFixture(t, false)
	d := f.createDrug(t)
	ctx := context.Background()

	_, err := f.svc.Restock(ctx, pharmacist, d.ID, restockReq(1))
	require.NoError(t, err)

	inactive := false
	p := validPricing()
	p.PurchasePrice = 250
	b := validBasics()
	b.Name = "Paracetamol Forte"
	updated, err := f.svc.UpdateDrug(ctx, admin, d.ID, UpdateDrugRequest{Basic: b, Pricing: p, Active: &inactive})
	require.NoError(t, err)
	assert.EqualValues(t, 100, updated.Stock)
	assert.False(t, updated.Active)
	assert.InDelta(t, 2.5, updated.Prices.UnitCost, 1e-9)

	list, err := f.svc.ListDrugs(ctx, DrugFilter{})
	require.NoError(t, err)
	assert.Empty(t, list, "inactive drugs are hidden by default")

	list, err = f.svc.ListDrugs(ctx, DrugFilter{IncludeInactive: true, Query: "forte"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	last := (*f.audits)[len(*f.audits)-1]
	assert.Equal(t, "update", last.ActionType)
	assert.Contains(t, last.Details, "purchase_price")

	_, err = f.svc.UpdateDrug(ctx, admin, 404, UpdateDrugRequest{Basic: b, Pricing: p})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Monitors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	mk := func(name, expiry string, minStock int64) *DrugView {
		b := validBasics()
		b.Name = name
		p := validPricing()
		p.ExpiryDate = expiry
		p.MinStock = minStock
		cmd, err := NewDrugBuilder().WithBasics(b).WithPricing(p).Build()
		require.NoError(t, err)
		v, err := f.svc.CreateDrug(ctx, admin, cmd)
		require.NoError(t, err)
		return v
	}
	// refNow is 2026-03-10.
	expired := mk("Amoxicillin", "2026-03-01", 0)
	critical := mk("Ibuprofen", "2026-04-09", 0)
	good := mk("Cetirizine", "2026-12-31", 0)
	low := mk("Metformin", "", 100)

	for _, id := range []int64{expired.ID, critical.ID, good.ID, low.ID} {
		_, err := f.svc.Restock(ctx, admin, id, restockReq(1))
		require.NoError(t, err)
	}

	expiring, err := f.svc.Expiring(ctx, 90)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, expired.ID, expiring[0].ID)
	assert.Equal(t, ExpiryExpired, expiring[0].ExpiryStatus)
	assert.True(t, expiring[0].Expired)
	assert.Equal(t, critical.ID, expiring[1].ID)
	assert.Equal(t, ExpiryCritical, expiring[1].ExpiryStatus)

	lowList, err := f.svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, lowList, 1)
	assert.Equal(t, low.ID, lowList[0].ID)
	assert.EqualValues(t, 100, lowList[0].Stock)
	assert.Contains(t, f.notifier.types(), domain.NotifyLowStock)
}

func TestService_ReferenceData(t *testing.T) {
	f := newFixture(t, false)
	cats, err := f.svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
	forms, err := f.svc.Forms(context.Background())
	require.NoError(t, err)
	assert.Len(t, forms, 4)
}

func TestService_Quote(t *testing.T) {
	f := newFixture(t, false)
	q, err := f.svc.Quote(validPricing().Input())
	require.NoError(t, err)
	assert.InDelta(t, 1.2, q.PosPrice, 1e-9)

	_, err = f.svc.Quote(DrugPricing{UnitsPerPurchase: 0}.Input())
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)
}
