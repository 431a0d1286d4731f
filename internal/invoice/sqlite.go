package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const createInvoicesTableSQLite = `CREATE TABLE IF NOT EXISTS invoices (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	document   TEXT NOT NULL
)`

// SQLiteDB implements the DB interface on a single SQLite file
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens or creates the database at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createInvoicesTableSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating invoices table: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// SaveInvoice stores a record under its ID
func (s *SQLiteDB) SaveInvoice(ctx context.Context, record *Record) error {
	doc, err := record.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling invoice: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, created_at, document) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.CreatedAt.UnixNano(), string(doc))
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, record.ID)
	}
	return nil
}

// GetInvoice retrieves a record by ID
func (s *SQLiteDB) GetInvoice(ctx context.Context, id string) (*Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM invoices WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice: %w", err)
	}
	return decodeRecord([]byte(doc))
}

// ListInvoices returns all records ordered by creation time, newest first
func (s *SQLiteDB) ListInvoices(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM invoices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		record, err := decodeRecord([]byte(doc))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading invoices: %w", err)
	}
	return records, nil
}

// DeleteInvoice removes a record, returning ErrNotFound if it does not exist
func (s *SQLiteDB) DeleteInvoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
