package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
)

const drugCols = `id, name, category, strength, unit, purchase_form, purchase_price,
	units_per_purchase, sale_form, pos_markup, prescription_markup, stock, min_stock,
	expiry_date, active, created_at, updated_at`

const restockCols = `id, drug_id, purchase_quantity, units_per_purchase, sale_quantity,
	batch_number, expiry_date, notes, status, requested_by, reviewed_by, review_reason,
	created_at, reviewed_at`

type sqlRepo struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewSQLRepository stores inventory in db (SQLite or Postgres through sqlx).
func NewSQLRepository(db *sqlx.DB) Repository {
	return &sqlRepo{db: db, q: db}
}

func (r *sqlRepo) rebind(query string) string {
	return r.db.Rebind(query)
}

func (r *sqlRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	if _, ok := r.q.(*sqlx.Tx); ok {
		return fn(r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin transaction", err)
	}
	if err := fn(&sqlRepo{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit transaction", err)
	}
	return nil
}

func (r *sqlRepo) ListDrugs(ctx context.Context, f DrugFilter) ([]domain.Drug, error) {
	var (
		clauses []string
		args    []any
	)
	if !f.IncludeInactive {
		clauses = append(clauses, "active")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(category) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	if f.LowStockOnly {
		clauses = append(clauses, "stock <= min_stock")
	}
	query := `SELECT ` + drugCols + ` FROM drugs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	drugs := []domain.Drug{}
	if err := sqlx.SelectContext(ctx, r.q, &drugs, r.rebind(query), args...); err != nil {
		return nil, apperr.Persistence("list drugs", err)
	}
	return drugs, nil
}

func (r *sqlRepo) GetDrug(ctx context.Context, id int64) (*domain.Drug, error) {
	var d domain.Drug
	err := sqlx.GetContext(ctx, r.q, &d, r.rebind(`SELECT `+drugCols+` FROM drugs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("drug %d", id)
	}
	if err != nil {
		return nil, apperr.Persistence("load drug", err)
	}
	return &d, nil
}

func (r *sqlRepo) InsertDrug(ctx context.Context, d *domain.Drug) error {
	row := r.q.QueryRowxContext(ctx, r.rebind(`INSERT INTO drugs (name, category, strength, unit,
		purchase_form, purchase_price, units_per_purchase, sale_form, pos_markup, prescription_markup,
		stock, min_stock, expiry_date, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		d.Name, d.Category, d.Strength, d.Unit,
		d.PurchaseForm, d.PurchasePrice, d.UnitsPerPurchase, d.SaleForm, d.PosMarkup, d.PrescriptionMarkup,
		d.Stock, d.MinStock, d.ExpiryDate, d.Active, d.CreatedAt, d.UpdatedAt)
	if err := row.Scan(&d.ID); err != nil {
		return apperr.Persistence("insert drug", err)
	}
	return nil
}

// UpdateDrug writes every editable column. Stock is owned by the ledger and
// is deliberately absent.
func (r *sqlRepo) UpdateDrug(ctx context.Context, d *domain.Drug) error {
	res, err := r.q.ExecContext(ctx, r.rebind(`UPDATE drugs SET name = ?, category = ?, strength = ?, unit = ?,
		purchase_form = ?, purchase_price = ?, units_per_purchase = ?, sale_form = ?, pos_markup = ?,
		prescription_markup = ?, min_stock = ?, expiry_date = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		d.Name, d.Category, d.Strength, d.Unit,
		d.PurchaseForm, d.PurchasePrice, d.UnitsPerPurchase, d.SaleForm, d.PosMarkup,
		d.PrescriptionMarkup, d.MinStock, d.ExpiryDate, d.Active, d.UpdatedAt, d.ID)
	if err != nil {
		return apperr.Persistence("update drug", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("drug %d", d.ID)
	}
	return nil
}

func (r *sqlRepo) IncrementStock(ctx context.Context, drugID, purchaseQuantity int64, at time.Time) (int64, int64, error) {
	var stock, units int64
	err := r.q.QueryRowxContext(ctx, r.rebind(`UPDATE drugs
		SET stock = stock + (? * units_per_purchase), updated_at = ?
		WHERE id = ? RETURNING stock, units_per_purchase`),
		purchaseQuantity, at, drugID).Scan(&stock, &units)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, apperr.NotFound("drug %d", drugID)
	}
	if err != nil {
		return 0, 0, apperr.Persistence("increment stock", err)
	}
	return stock, units, nil
}

func (r *sqlRepo) InsertRestock(ctx context.Context, ev *domain.RestockEvent) error {
	_, err := r.q.ExecContext(ctx, r.rebind(`INSERT INTO restock_events (`+restockCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.DrugID, ev.PurchaseQuantity, ev.UnitsPerPurchase, ev.SaleQuantity,
		ev.BatchNumber, ev.ExpiryDate, ev.Notes, ev.Status, ev.RequestedBy, ev.ReviewedBy, ev.ReviewReason,
		ev.CreatedAt, ev.ReviewedAt)
	if err != nil {
		return apperr.Persistence("insert restock event", err)
	}
	return nil
}

func (r *sqlRepo) GetRestock(ctx context.Context, id string) (*domain.RestockEvent, error) {
	var ev domain.RestockEvent
	err := sqlx.GetContext(ctx, r.q, &ev, r.rebind(`SELECT `+restockCols+` FROM restock_events WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("restock %s", id)
	}
	if err != nil {
		return nil, apperr.Persistence("load restock event", err)
	}
	return &ev, nil
}

func (r *sqlRepo) ReviewRestock(ctx context.Context, ev *domain.RestockEvent) error {
	res, err := r.q.ExecContext(ctx, r.rebind(`UPDATE restock_events
		SET status = ?, units_per_purchase = ?, sale_quantity = ?, reviewed_by = ?, review_reason = ?, reviewed_at = ?
		WHERE id = ? AND status = ?`),
		ev.Status, ev.UnitsPerPurchase, ev.SaleQuantity, ev.ReviewedBy, ev.ReviewReason, ev.ReviewedAt,
		ev.ID, domain.RestockPending)
	if err != nil {
		return apperr.Persistence("review restock event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("review restock event", err)
	}
	if n == 0 {
		return apperr.Conflict("restock %s is not pending", ev.ID)
	}
	return nil
}

func (r *sqlRepo) ListRestocks(ctx context.Context, f RestockFilter) ([]domain.RestockEvent, error) {
	var (
		clauses []string
		args    []any
	)
	if f.DrugID > 0 {
		clauses = append(clauses, "drug_id = ?")
		args = append(args, f.DrugID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + restockCols + ` FROM restock_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	events := []domain.RestockEvent{}
	if err := sqlx.SelectContext(ctx, r.q, &events, r.rebind(query), args...); err != nil {
		return nil, apperr.Persistence("list restock events", err)
	}
	return events, nil
}

func (r *sqlRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT id, name FROM categories ORDER BY name`); err != nil {
		return nil, apperr.Persistence("list categories", err)
	}
	return out, nil
}

func (r *sqlRepo) ListForms(ctx context.Context) ([]domain.Form, error) {
	out := []domain.Form{}
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT id, name FROM forms ORDER BY name`); err != nil {
		return nil, apperr.Persistence("list forms", err)
	}
	return out, nil
}

func (r *sqlRepo) CategoryExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, "categories", name)
}

func (r *sqlRepo) FormExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, "forms", name)
}

func (r *sqlRepo) exists(ctx context.Context, table, name string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, r.rebind(`SELECT COUNT(*) FROM `+table+` WHERE LOWER(name) = LOWER(?)`), name)
	if err != nil {
		return false, apperr.Persistence("lookup "+table, err)
	}
	return n > 0, nil
}
