package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/jmapc/internal/shape"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - states and entities tables
const currentSchemaVersion = 1

// SQLite stores the cache in a SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite creates or opens the cache database at path.
//
// The database runs in WAL mode with NORMAL synchronous writes, a 5 second
// busy timeout and a single connection, since SQLite allows one writer.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Apply writes d in one transaction. Nothing is stored if any part fails.
func (s *SQLite) Apply(ctx context.Context, d shape.Delta) error {
	if err := validateDelta(d); err != nil {
		return writeFailure(err, "invalid delta")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range d.Removed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE account_id = ? AND type_name = ? AND id = ?`,
			d.AccountID, d.TypeName, id,
		); err != nil {
			return writeFailure(err, "remove %s %s", d.TypeName, id)
		}
	}

	ids := make([]string, 0, len(d.Upserts)+len(d.Patches))
	for id := range d.Upserts {
		ids = append(ids, id)
	}
	for id := range d.Patches {
		if _, ok := d.Upserts[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	for _, id := range ids {
		var existing json.RawMessage
		var stored string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM entities WHERE account_id = ? AND type_name = ? AND id = ?`,
			d.AccountID, d.TypeName, id,
		).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return writeFailure(err, "read %s %s", d.TypeName, id)
		default:
			existing = json.RawMessage(stored)
		}

		data, err := nextRecord(existing, d.Patches[id], d.Upserts[id])
		if err != nil {
			return writeFailure(err, "merge %s %s", d.TypeName, id)
		}
		if data == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM entities WHERE account_id = ? AND type_name = ? AND id = ?`,
				d.AccountID, d.TypeName, id,
			); err != nil {
				return writeFailure(err, "remove %s %s", d.TypeName, id)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (account_id, type_name, id, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(account_id, type_name, id) DO UPDATE SET data = excluded.data
		`, d.AccountID, d.TypeName, id, string(data)); err != nil {
			return writeFailure(err, "write %s %s", d.TypeName, id)
		}
	}

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM states WHERE account_id = ? AND type_name = ?`,
		d.AccountID, d.TypeName,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return writeFailure(err, "read %s state", d.TypeName)
	}
	if advanceState(d, current) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO states (account_id, type_name, state, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(account_id, type_name) DO UPDATE
			SET state = excluded.state, updated_at = excluded.updated_at
		`, d.AccountID, d.TypeName, d.State, s.now().UnixMilli()); err != nil {
			return writeFailure(err, "write %s state", d.TypeName)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeFailure(err, "commit")
	}
	return nil
}

// State returns the stored state token for the account and type.
func (s *SQLite) State(ctx context.Context, accountID, typeName string) (string, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM states WHERE account_id = ? AND type_name = ?`,
		accountID, typeName,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}
	return state, nil
}

// Entity returns a stored record as canonical JSON.
func (s *SQLite) Entity(ctx context.Context, accountID, typeName, id string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM entities WHERE account_id = ? AND type_name = ? AND id = ?`,
		accountID, typeName, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read entity: %w", err)
	}
	return json.RawMessage(data), nil
}

// IDs returns the stored ids of a type, sorted.
func (s *SQLite) IDs(ctx context.Context, accountID, typeName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM entities WHERE account_id = ? AND type_name = ? ORDER BY id`,
		accountID, typeName,
	)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
