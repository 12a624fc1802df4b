package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pd-shop-api/pkg/uid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store on a single SQLite table of versioned JSON
// documents. WAL mode for high-concurrency reads; the version column drives
// optimistic transaction commits.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the document database at dbPath
// (e.g. "./data/shop.db").
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createDocumentTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// createDocumentTable creates the documents table.
func createDocumentTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	_, err := db.Exec(query)
	return err
}

// Get reads a single document.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return &Doc{ID: id, Data: json.RawMessage(data)}, nil
}

// Set creates or replaces a document.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			version = documents.version + 1,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query, collection, id, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add creates a document under a generated id.
func (s *SQLiteStore) Add(ctx context.Context, collection string, value interface{}) (string, error) {
	id := uid.New()
	if err := s.Set(ctx, collection, id, value); err != nil {
		return "", err
	}
	return id, nil
}

// List returns all documents in a collection in rowid (retrieval) order.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		docs = append(docs, Doc{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	return docs, nil
}

// RunTransaction executes fn with optimistic concurrency control. Reads
// record document versions; commit re-validates the whole read set and
// applies staged writes inside one SQL transaction, retrying fn from scratch
// when a concurrent commit invalidated the snapshot.
func (s *SQLiteStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &sqliteTx{
			store: s,
			ctx:   ctx,
			reads: make(map[docKey]int64),
		}
		if err := fn(tx); err != nil {
			return err
		}

		committed, err := s.commit(ctx, tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return ErrConflict
}

// commit validates tx's read set and applies its writes atomically.
// Returns (false, nil) on a version conflict so the caller can retry.
func (s *SQLiteStore) commit(ctx context.Context, tx *sqliteTx) (bool, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for key, version := range tx.reads {
		var current int64
		err := sqlTx.QueryRowContext(ctx,
			`SELECT version FROM documents WHERE collection = ? AND id = ?`,
			key.collection, key.id,
		).Scan(&current)
		if err == sql.ErrNoRows {
			current = 0
		} else if err != nil {
			return false, fmt.Errorf("failed to validate read set: %w", err)
		}
		if current != version {
			return false, nil
		}
	}

	now := time.Now().UTC()
	for _, w := range tx.writes {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				data = excluded.data,
				version = documents.version + 1,
				updated_at = excluded.updated_at`,
			w.key.collection, w.key.id, string(w.data), now)
		if err != nil {
			return false, fmt.Errorf("failed to write document %s/%s: %w", w.key.collection, w.key.id, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTx tracks reads (versions, absence as 0) and buffers writes.
type sqliteTx struct {
	store  *SQLiteStore
	ctx    context.Context
	reads  map[docKey]int64
	writes []stagedWrite
}

// Get implements Tx.
func (t *sqliteTx) Get(collection, id string, out interface{}) error {
	var data string
	var version int64
	err := t.store.db.QueryRowContext(t.ctx,
		`SELECT data, version FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data, &version)
	if err == sql.ErrNoRows {
		t.reads[docKey{collection, id}] = 0
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	t.reads[docKey{collection, id}] = version
	return json.Unmarshal([]byte(data), out)
}

// Set implements Tx.
func (t *sqliteTx) Set(collection, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}
	t.writes = append(t.writes, stagedWrite{key: docKey{collection, id}, data: data})
	return nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
