package domain

import "time"

type AuditRecord struct {
	ID         string    `db:"id" json:"id"`
	ActionType string    `db:"action_type" json:"action_type"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Details    string    `db:"details" json:"details"`
	ActorID    *int64    `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
