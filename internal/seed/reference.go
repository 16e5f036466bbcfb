package seed

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	DefaultCategories = []string{
		"Analgesic", "Antibiotic", "Antifungal", "Antihistamine", "Antihypertensive",
		"Antimalarial", "Antidiabetic", "Supplement", "Other",
	}
	DefaultForms = []string{
		"Box", "Bottle", "Pack", "Strip", "Vial", "Tube",
		"Tablet", "Capsule", "Syrup", "ml", "Ampoule", "Sachet",
	}
)

// Reference inserts the default categories and forms, leaving existing rows alone.
func Reference(db *sqlx.DB) error {
	if err := insertNames(db, "categories", DefaultCategories); err != nil {
		return err
	}
	return insertNames(db, "forms", DefaultForms)
}

func insertNames(db *sqlx.DB, table string, names []string) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin %s seed: %w", table, err)
	}
	stmt := db.Rebind(`INSERT INTO ` + table + ` (name) SELECT CAST(? AS TEXT)
		WHERE NOT EXISTS (SELECT 1 FROM ` + table + ` WHERE name = ?)`)
	for _, name := range names {
		if _, err := tx.Exec(stmt, name, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seed %s %q: %w", table, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s seed: %w", table, err)
	}
	return nil
}
