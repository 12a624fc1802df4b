package docstore

import (
	"context"
	"encoding/json"
)

// Store is a document store keyed by (collection, document id). Values are
// stored as JSON. This abstraction allows swapping between the in-memory
// store (development/testing) and SQLite (production) without changing
// business logic.
type Store interface {
	// Get reads a single document. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string) (*Doc, error)

	// Set creates or replaces a document with the given id.
	Set(ctx context.Context, collection, id string, value interface{}) error

	// Add creates a document under a generated id and returns the id.
	Add(ctx context.Context, collection string, value interface{}) (string, error)

	// List returns every document in a collection in retrieval order.
	List(ctx context.Context, collection string) ([]Doc, error)

	// RunTransaction executes fn against a consistent snapshot. Writes made
	// through the Tx are buffered and applied atomically only if fn returns
	// nil and none of the documents read by fn were modified by another
	// committed transaction in the meantime. On a detected conflict the whole
	// fn is re-run from scratch, up to maxTxAttempts times, after which
	// ErrConflict is returned. Any error returned by fn aborts the
	// transaction with no writes applied and is passed through unchanged.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error
}

// Tx is the handle passed to a transaction function. Reads observe the
// transaction's snapshot; writes are staged until commit.
type Tx interface {
	// Get reads a document into out. Returns ErrNotFound if absent; the
	// absence itself is part of the read set, so a concurrent creation of
	// the same document also conflicts.
	Get(collection, id string, out interface{}) error

	// Set stages a create-or-replace of a document.
	Set(collection, id string, value interface{}) error
}

// maxTxAttempts bounds the automatic conflict-retry loop.
const maxTxAttempts = 5

// Doc is a raw document plus its store-assigned id.
type Doc struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into out.
func (d *Doc) Decode(out interface{}) error {
	return json.Unmarshal(d.Data, out)
}
