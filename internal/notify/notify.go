// Package notify delivers inventory notifications (restock approvals, low
// stock) to staff: persisted for the in-app inbox and optionally published
// to Kafka.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store keeps notifications in the notifications table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Notify(ctx context.Context, n domain.Notification) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO notifications
		(id, type, message, drug_id, restock_id, recipient_role, recipient_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.Type, n.Message, n.DrugID, n.RestockID, n.RecipientRole, n.RecipientID, n.Read, n.CreatedAt)
	if err != nil {
		return apperr.Persistence("insert notification", err)
	}
	return nil
}

// ListFor returns notifications addressed to the user directly or to role.
func (s *Store) ListFor(ctx context.Context, userID int64, role string, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT id, type, message, drug_id, restock_id, recipient_role, recipient_id, is_read, created_at
		FROM notifications WHERE (recipient_id = ? OR recipient_role = ? OR (recipient_id IS NULL AND recipient_role IS NULL))`
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC LIMIT 200"

	out := []domain.Notification{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), userID, role); err != nil {
		return nil, apperr.Persistence("list notifications", err)
	}
	return out, nil
}

// MarkRead flags one notification visible to the user as read.
func (s *Store) MarkRead(ctx context.Context, id string, userID int64, role string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE notifications SET is_read = ?
		WHERE id = ? AND (recipient_id = ? OR recipient_role = ? OR (recipient_id IS NULL AND recipient_role IS NULL))`),
		true, id, userID, role)
	if err != nil {
		return apperr.Persistence("mark notification read", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("notification %s", id)
	}
	return nil
}

// Describe renders a short human message for a notification type.
func Describe(kind, drugName string, saleQuantity int64) string {
	name := strings.TrimSpace(drugName)
	switch kind {
	case domain.NotifyRestockPending:
		return fmt.Sprintf("Restock of %d units of %s is awaiting approval", saleQuantity, name)
	case domain.NotifyRestockApproved:
		return fmt.Sprintf("Restock of %d units of %s was approved", saleQuantity, name)
	case domain.NotifyRestockRejected:
		return fmt.Sprintf("Restock of %d units of %s was rejected", saleQuantity, name)
	case domain.NotifyLowStock:
		return fmt.Sprintf("%s is low on stock", name)
	}
	return name
}
