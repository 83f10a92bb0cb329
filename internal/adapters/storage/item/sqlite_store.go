package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	storage "rancho/internal/adapters/storage"
	domain "rancho/internal/domain/item"
)

const selectColumns = `id, title, description, price, image, category, available, created_at, updated_at`

type sqliteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore returns a Store backed by SQLite.
// PRE: db has been migrated with storage.MigrateDB
func NewSQLiteStore(db storage.SQLDB) Store {
	return &sqliteStore{db: db, now: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.Item, error) {
	var it domain.Item
	var available int
	var createdAt, updatedAt string
	err := row.Scan(
		&it.ID,
		&it.Title,
		&it.Description,
		&it.Price,
		&it.Image,
		&it.Category,
		&available,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}
	it.Available = available != 0
	it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	it.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return it, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// List returns every item in insertion order.
// PRE: none
// POST: returns all items or an empty slice
func (s *sqliteStore) List(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM item ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("item list: %w", err)
	}
	defer rows.Close()

	list := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("item list scan: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// GetByID retrieves an item by its ID.
// PRE: id is non-empty
// POST: returns the item or domain.ErrNotFound
func (s *sqliteStore) GetByID(ctx context.Context, id string) (domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM item WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("item get: %w", err)
	}
	return it, nil
}

// Create inserts a new item, assigning its ID and timestamps.
// PRE: it has been validated
// POST: row inserted; returned item carries the stored ID
func (s *sqliteStore) Create(ctx context.Context, it domain.Item) (domain.Item, error) {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	now := s.now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item (id, title, description, price, image, category, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID,
		it.Title,
		it.Description,
		it.Price,
		it.Image,
		it.Category,
		boolToInt(it.Available),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item create: %w", err)
	}
	return it, nil
}

// Update overwrites every editable column of an existing item.
// PRE: it.ID is non-empty; it has been validated
// POST: row updated, or domain.ErrNotFound if no such row
func (s *sqliteStore) Update(ctx context.Context, it domain.Item) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE item SET title = ?, description = ?, price = ?, image = ?, category = ?, available = ?, updated_at = ?
		WHERE id = ?`,
		it.Title,
		it.Description,
		it.Price,
		it.Image,
		it.Category,
		boolToInt(it.Available),
		s.now().UTC().Format(time.RFC3339Nano),
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("item update: %w", err)
	}
	return requireOneRow(res)
}

// SetAvailable writes the availability flag only.
// PRE: id is non-empty
// POST: flag stored, or domain.ErrNotFound
func (s *sqliteStore) SetAvailable(ctx context.Context, id string, available bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE item SET available = ?, updated_at = ? WHERE id = ?`,
		boolToInt(available), s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("item set available: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes an item permanently.
// PRE: id is non-empty
// POST: row removed, or domain.ErrNotFound
func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM item WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("item delete: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("item rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
