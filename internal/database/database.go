package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Connect opens the database for driver ("sqlite" or "pgx") and verifies it.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; a single connection also serialises restocks.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
