package inventory

import (
	"context"
	"time"

	"clinic/m/domain"
)

// DrugFilter narrows ListDrugs.
type DrugFilter struct {
	Query           string
	IncludeInactive bool
	LowStockOnly    bool
}

// RestockFilter narrows ListRestocks. Zero values mean "any".
type RestockFilter struct {
	DrugID int64
	Status domain.RestockStatus
	Limit  int
}

// Repository is the persistence the inventory core needs.
type Repository interface {
	ListDrugs(ctx context.Context, f DrugFilter) ([]domain.Drug, error)
	GetDrug(ctx context.Context, id int64) (*domain.Drug, error)
	InsertDrug(ctx context.Context, d *domain.Drug) error
	UpdateDrug(ctx context.Context, d *domain.Drug) error

	// IncrementStock adds purchaseQuantity × the drug's current
	// units_per_purchase to its stock in one statement and returns the new
	// stock and the factor used.
	IncrementStock(ctx context.Context, drugID, purchaseQuantity int64, at time.Time) (stock, unitsPerPurchase int64, err error)

	InsertRestock(ctx context.Context, ev *domain.RestockEvent) error
	GetRestock(ctx context.Context, id string) (*domain.RestockEvent, error)
	// ReviewRestock moves a pending event to ev.Status; it fails with
	// ErrConflict when the event is no longer pending.
	ReviewRestock(ctx context.Context, ev *domain.RestockEvent) error
	ListRestocks(ctx context.Context, f RestockFilter) ([]domain.RestockEvent, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListForms(ctx context.Context) ([]domain.Form, error)
	CategoryExists(ctx context.Context, name string) (bool, error)
	FormExists(ctx context.Context, name string) (bool, error)

	// InTx runs fn against a transactional view of the repository; fn's
	// error rolls everything back.
	InTx(ctx context.Context, fn func(Repository) error) error
}
