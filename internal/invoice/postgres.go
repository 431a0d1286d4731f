package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createInvoicesTable = `CREATE TABLE IF NOT EXISTS invoices (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	document   JSONB NOT NULL
)`

// PostgresDB implements the DB interface on a PostgreSQL table holding one
// JSONB document per invoice. The pool is opened on first use and reused by
// every later call.
type PostgresDB struct {
	dsn    string
	logger *slog.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPostgresDB returns a store for dsn without connecting
func NewPostgresDB(dsn string, logger *slog.Logger) *PostgresDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDB{dsn: dsn, logger: logger}
}

func (p *PostgresDB) connect(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return p.pool, nil
	}

	pc, err := pgxpool.ParseConfig(p.dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoiceprocessor"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, createInvoicesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating invoices table: %w", err)
	}

	p.logger.Info("Connected to PostgreSQL")
	p.pool = pool
	return pool, nil
}

// SaveInvoice stores a record under its ID
func (p *PostgresDB) SaveInvoice(ctx context.Context, record *Record) error {
	pool, err := p.connect(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling invoice: %w", err)
	}
	tag, err := pool.Exec(ctx,
		`INSERT INTO invoices (id, created_at, document) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.CreatedAt, string(doc))
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrExists, record.ID)
	}
	return nil
}

// GetInvoice retrieves a record by ID
func (p *PostgresDB) GetInvoice(ctx context.Context, id string) (*Record, error) {
	pool, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	var doc []byte
	err = pool.QueryRow(ctx, `SELECT document FROM invoices WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice: %w", err)
	}
	return decodeRecord(doc)
}

// ListInvoices returns all records ordered by creation time, newest first
func (p *PostgresDB) ListInvoices(ctx context.Context) ([]*Record, error) {
	pool, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT document FROM invoices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		record, err := decodeRecord(doc)
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
func (p *PostgresDB) DeleteInvoice(ctx context.Context, id string) error {
	pool, err := p.connect(ctx)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close releases the pool if one was opened
func (p *PostgresDB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}
