// Package audit persists who changed what in the inventory.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
)

// Recorder accepts audit records. Callers treat failures as non-fatal.
type Recorder interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
}

// RecorderFunc is a function adapter for Recorder.
type RecorderFunc func(ctx context.Context, rec domain.AuditRecord) error

func (f RecorderFunc) Record(ctx context.Context, rec domain.AuditRecord) error {
	return f(ctx, rec)
}

type Filter struct {
	EntityType string
	EntityID   string
	Limit      int
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Details == "" {
		rec.Details = "{}"
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO audit_logs (id, action_type, entity_type, entity_id, details, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.ActionType, rec.EntityType, rec.EntityID, rec.Details, rec.ActorID, rec.CreatedAt)
	if err != nil {
		return apperr.Persistence("insert audit record", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]domain.AuditRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	query := `SELECT id, action_type, entity_type, entity_id, details, actor_id, created_at FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	records := []domain.AuditRecord{}
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, apperr.Persistence("list audit records", err)
	}
	return records, nil
}
