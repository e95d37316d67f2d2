package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shruggr/workshop/localfiles"
	"github.com/shruggr/workshop/models"
)

// Store is a SQLite-backed implementation of localfiles.Store
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Config holds configuration for SQLite
type Config struct {
	DBPath string // Path to SQLite database file
}

// New creates a new SQLite-backed association store
func New(config *Config) (*Store, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
// Item ids are stored as decimal text because SQLite integers are signed
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS local_files (
		item_id     TEXT PRIMARY KEY,
		path        TEXT NOT NULL,
		size        INTEGER NOT NULL DEFAULT 0,
		updated_at  INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_local_files_path ON local_files(path);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put records or replaces the association for an item
// A path previously associated with another item moves to this one
func (s *Store) Put(ctx context.Context, assoc *localfiles.Association) error {
	if assoc.Path == "" {
		return fmt.Errorf("path is required")
	}

	updatedAt := assoc.UpdatedAt
	if updatedAt == 0 {
		updatedAt = s.now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM local_files WHERE path = ? AND item_id <> ?`,
		assoc.Path, assoc.ItemID.String())
	if err != nil {
		return fmt.Errorf("failed to release path: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO local_files (item_id, path, size, updated_at)
		 VALUES (?, ?, ?, ?)`,
		assoc.ItemID.String(), assoc.Path, assoc.Size, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert association: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Get retrieves the association for an item
func (s *Store) Get(ctx context.Context, id models.ItemID) (*localfiles.Association, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_id, path, size, updated_at FROM local_files WHERE item_id = ?`,
		id.String(),
	)
	assoc, err := scanAssociation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query association: %w", err)
	}
	return assoc, nil
}

// GetByPath retrieves the association for a file path
func (s *Store) GetByPath(ctx context.Context, path string) (*localfiles.Association, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_id, path, size, updated_at FROM local_files WHERE path = ?`,
		path,
	)
	assoc, err := scanAssociation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query association by path: %w", err)
	}
	return assoc, nil
}

// Delete removes the association for an item
func (s *Store) Delete(ctx context.Context, id models.ItemID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM local_files WHERE item_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete association: %w", err)
	}
	return nil
}

// List returns all associations ordered by item id
func (s *Store) List(ctx context.Context) ([]*localfiles.Association, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, path, size, updated_at FROM local_files`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	defer rows.Close()

	var out []*localfiles.Association
	for rows.Next() {
		assoc, err := scanAssociation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		out = append(out, assoc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating associations: %w", err)
	}

	// text ids do not sort numerically in SQL
	sortByID(out)
	return out, nil
}

// Close releases all database resources
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssociation(row scanner) (*localfiles.Association, error) {
	var assoc localfiles.Association
	var itemID string

	if err := row.Scan(&itemID, &assoc.Path, &assoc.Size, &assoc.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(itemID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid item id %q: %w", itemID, err)
	}
	assoc.ItemID = models.ItemID(id)

	return &assoc, nil
}

func sortByID(list []*localfiles.Association) {
	slices.SortFunc(list, func(a, b *localfiles.Association) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})
}
