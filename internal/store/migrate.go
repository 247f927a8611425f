package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// legacyOwnerVersion follows 00001_create_trainings.sql.
const legacyOwnerVersion = 2

// ErrLegacyOwnerMissing is returned when a single-user database is found
// but no owner id was configured to adopt its rows.
var ErrLegacyOwnerMissing = errors.New("legacy single-user table found but no owner id configured")

// RunMigrations applies the embedded SQL migrations plus the Go migration that
// moves a single-user database to the per-user layout. It returns the versions
// applied by this call.
func RunMigrations(ctx context.Context, db *sql.DB, legacyOwner int64) ([]int64, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys,
		goose.WithGoMigrations(
			goose.NewGoMigration(legacyOwnerVersion,
				&goose.GoFunc{RunTx: adoptLegacyRows(legacyOwner), Mode: goose.TransactionEnabled},
				nil,
			),
		),
	)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, err
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// adoptLegacyRows rebuilds a trainings table that predates user_id and assigns
// all its rows to owner. A table that already has user_id is left alone.
func adoptLegacyRows(owner int64) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		hasUserID, err := hasColumn(ctx, tx, "trainings", "user_id")
		if err != nil {
			return err
		}
		if hasUserID {
			return nil
		}
		if owner == 0 {
			return ErrLegacyOwnerMissing
		}

		stmts := []string{
			`ALTER TABLE trainings RENAME TO trainings_legacy`,
			`CREATE TABLE trainings (
				user_id                    INTEGER NOT NULL,
				npc_type                   TEXT    NOT NULL,
				start_iso                  TEXT,
				duration_hours             REAL    NOT NULL DEFAULT 0,
				end_iso                    TEXT,
				is_active                  INTEGER NOT NULL DEFAULT 0,
				last_notified_iso          TEXT,
				npc_rental_start_iso       TEXT,
				npc_rental_end_iso         TEXT,
				rental_expiry_notified_iso TEXT,
				PRIMARY KEY (user_id, npc_type)
			)`,
			fmt.Sprintf(`INSERT INTO trainings (
				user_id, npc_type, start_iso, duration_hours, end_iso, is_active,
				last_notified_iso, npc_rental_start_iso, npc_rental_end_iso, rental_expiry_notified_iso
			)
			SELECT %d, npc_type, start_iso, COALESCE(duration_hours, 0), end_iso, COALESCE(is_active, 0),
			       last_notified_iso, npc_rental_start_iso, npc_rental_end_iso, rental_expiry_notified_iso
			FROM trainings_legacy`, owner),
			`DROP TABLE trainings_legacy`,
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}

// Migrate opens the database at path, applies pending migrations and closes it.
func Migrate(ctx context.Context, path string, legacyOwner int64) ([]int64, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return RunMigrations(ctx, db, legacyOwner)
}
