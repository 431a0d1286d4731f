package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "invoices"

// ErrNotFound is returned when no invoice has the requested ID
var ErrNotFound = errors.New("invoice not found")

// ErrExists is returned when saving a record whose ID is already stored.
// Stored records are never overwritten.
var ErrExists = errors.New("invoice already exists")

// DB defines the interface for invoice storage
type DB interface {
	// SaveInvoice stores a record under its ID
	SaveInvoice(ctx context.Context, record *Record) error

	// GetInvoice retrieves a record by ID
	GetInvoice(ctx context.Context, id string) (*Record, error)

	// ListInvoices returns all records, newest first
	ListInvoices(ctx context.Context) ([]*Record, error)

	// DeleteInvoice removes a record, returning ErrNotFound if it does not exist
	DeleteInvoice(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveInvoice stores a record under its ID
func (b *BoltDB) SaveInvoice(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling invoice: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(record.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrExists, record.ID)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetInvoice retrieves a record by ID
func (b *BoltDB) GetInvoice(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListInvoices returns all records ordered by creation time, newest first
func (b *BoltDB) ListInvoices(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// DeleteInvoice removes a record, returning ErrNotFound if it does not exist
func (b *BoltDB) DeleteInvoice(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func decodeRecord(doc []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice: %w", err)
	}
	return &record, nil
}

func sortNewestFirst(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
