package migrations

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required by the inventory backend.
// The same statements serve SQLite and Postgres; only the identity column differs.
func Run(db *sqlx.DB) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() != "sqlite" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id {{serial}},
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS categories (
            id {{serial}},
            name TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS forms (
            id {{serial}},
            name TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS drugs (
            id {{serial}},
            name TEXT NOT NULL,
            category TEXT NOT NULL,
            strength TEXT NOT NULL DEFAULT '',
            unit TEXT NOT NULL DEFAULT '',
            purchase_form TEXT NOT NULL,
            purchase_price DOUBLE PRECISION NOT NULL CHECK (purchase_price >= 0),
            units_per_purchase INTEGER NOT NULL CHECK (units_per_purchase >= 1),
            sale_form TEXT NOT NULL,
            pos_markup DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (pos_markup >= 0),
            prescription_markup DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (prescription_markup >= 0),
            stock BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0),
            min_stock BIGINT NOT NULL DEFAULT 0,
            expiry_date DATE,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS restock_events (
            id TEXT PRIMARY KEY,
            drug_id BIGINT NOT NULL REFERENCES drugs(id),
            purchase_quantity BIGINT NOT NULL CHECK (purchase_quantity >= 1),
            units_per_purchase BIGINT NOT NULL,
            sale_quantity BIGINT NOT NULL,
            batch_number TEXT NOT NULL,
            expiry_date DATE NOT NULL,
            notes TEXT,
            status TEXT NOT NULL,
            requested_by BIGINT NOT NULL,
            reviewed_by BIGINT,
            review_reason TEXT,
            created_at TIMESTAMP NOT NULL,
            reviewed_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_restock_events_drug ON restock_events(drug_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_restock_events_status ON restock_events(status);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
            id TEXT PRIMARY KEY,
            action_type TEXT NOT NULL,
            entity_type TEXT NOT NULL,
            entity_id TEXT NOT NULL,
            details TEXT NOT NULL DEFAULT '{}',
            actor_id BIGINT,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            message TEXT NOT NULL,
            drug_id BIGINT,
            restock_id TEXT,
            recipient_role TEXT,
            recipient_id BIGINT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(strings.ReplaceAll(stmt, "{{serial}}", serial)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
