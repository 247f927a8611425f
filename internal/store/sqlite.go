package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs, runs migrations and returns a repository.
// legacyOwner receives the rows of a pre-multi-user database, if one is found.
func OpenSQLite(ctx context.Context, path string, legacyOwner int64) (*SQLiteRepo, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := RunMigrations(ctx, db, legacyOwner); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection: SQLite is a single-writer engine and every
	// read-modify-write below relies on being serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Get returns one record or ErrNotFound.
func (r *SQLiteRepo) Get(ctx context.Context, userID int64, kind domain.Kind) (*domain.Record, error) {
	return getRecord(ctx, r.db, userID, kind)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryRower, userID int64, kind domain.Kind) (*domain.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM trainings WHERE user_id = ? AND npc_type = ?`,
		userID, string(kind),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListAll returns every record of every user, ordered by user then tier.
func (r *SQLiteRepo) ListAll(ctx context.Context) ([]domain.Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM trainings ORDER BY user_id, `+kindOrder)
}

// ListByUser returns a user's records in C, B, A order.
func (r *SQLiteRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM trainings WHERE user_id = ? ORDER BY `+kindOrder, userID)
}

const kindOrder = `CASE npc_type WHEN 'C' THEN 0 WHEN 'B' THEN 1 ELSE 2 END`

func (r *SQLiteRepo) list(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// EnsureDefaults inserts an inactive, empty record for every missing tier.
// Existing rows are left untouched.
func (r *SQLiteRepo) EnsureDefaults(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range domain.Kinds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trainings (user_id, npc_type, is_active)
			VALUES (?, ?, 0)
			ON CONFLICT(user_id, npc_type) DO NOTHING`,
			userID, string(k),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Save overwrites every mutable field of an existing record.
func (r *SQLiteRepo) Save(ctx context.Context, rec *domain.Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	return saveRecord(ctx, r.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveRecord(ctx context.Context, e execer, rec *domain.Record) error {
	res, err := e.ExecContext(ctx, `
		UPDATE trainings
		SET start_iso                  = ?,
		    duration_hours             = ?,
		    end_iso                    = ?,
		    is_active                  = ?,
		    last_notified_iso          = ?,
		    npc_rental_start_iso       = ?,
		    npc_rental_end_iso         = ?,
		    rental_expiry_notified_iso = ?
		WHERE user_id = ? AND npc_type = ?`,
		toNullString(rec.StartTime), rec.DurationHours, toNullString(rec.EndTime),
		boolToInt(rec.IsActive), toNullString(rec.LastNotifiedAt),
		toNullString(rec.RentalStart), toNullString(rec.RentalEnd),
		toNullString(rec.RentalExpiryNotifiedAt),
		rec.UserID, string(rec.Kind),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update loads the record, applies fn and writes it back in one transaction.
// Errors returned by fn are passed through unchanged and nothing is written.
func (r *SQLiteRepo) Update(ctx context.Context, userID int64, kind domain.Kind, fn UpdateFunc) (*domain.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := getRecord(ctx, tx, userID, kind)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	// the key is not up for modification
	rec.UserID, rec.Kind = userID, kind

	if err := saveRecord(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}
