package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pd-shop-api/pkg/uid"
)

// memDoc is a stored document with its optimistic-concurrency version.
type memDoc struct {
	data    []byte
	version int64
	seq     int64 // insertion order, used for List
}

// MemoryStore is an in-memory implementation of Store.
// Use this for development/testing or single-instance deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memDoc
	nextSeq     int64
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memDoc),
	}
}

// Get reads a single document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	data := make([]byte, len(doc.data))
	copy(data, doc.data)
	return &Doc{ID: id, Data: data}, nil
}

// Set creates or replaces a document.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(collection, id, data)
	return nil
}

// Add creates a document under a generated id.
func (s *MemoryStore) Add(ctx context.Context, collection string, value interface{}) (string, error) {
	id := uid.New()
	if err := s.Set(ctx, collection, id, value); err != nil {
		return "", err
	}
	return id, nil
}

// List returns all documents in a collection in insertion order.
func (s *MemoryStore) List(ctx context.Context, collection string) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	docs := make([]Doc, 0, len(coll))
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return coll[ids[i]].seq < coll[ids[j]].seq
	})

	for _, id := range ids {
		data := make([]byte, len(coll[id].data))
		copy(data, coll[id].data)
		docs = append(docs, Doc{ID: id, Data: data})
	}
	return docs, nil
}

// RunTransaction executes fn with optimistic concurrency control.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{
			store: s,
			reads: make(map[docKey]int64),
		}
		if err := fn(tx); err != nil {
			return err
		}

		if s.commit(tx) {
			return nil
		}
	}
	return ErrConflict
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) setLocked(collection, id string, data []byte) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*memDoc)
		s.collections[collection] = coll
	}

	if doc, ok := coll[id]; ok {
		doc.data = data
		doc.version++
		return
	}
	s.nextSeq++
	coll[id] = &memDoc{data: data, version: 1, seq: s.nextSeq}
}

// commit verifies the read set and applies staged writes atomically.
// Returns false if any read document changed since it was observed.
func (s *MemoryStore) commit(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.reads {
		current := int64(0)
		if doc, ok := s.collections[key.collection][key.id]; ok {
			current = doc.version
		}
		if current != version {
			return false
		}
	}

	for _, w := range tx.writes {
		s.setLocked(w.key.collection, w.key.id, w.data)
	}
	return true
}

type docKey struct {
	collection string
	id         string
}

type stagedWrite struct {
	key  docKey
	data []byte
}

// memTx tracks the read set (document versions, including observed absence
// as version 0) and buffers writes until commit.
type memTx struct {
	store  *MemoryStore
	reads  map[docKey]int64
	writes []stagedWrite
}

// Get implements Tx.
func (t *memTx) Get(collection, id string, out interface{}) error {
	key := docKey{collection, id}

	t.store.mu.RLock()
	doc, ok := t.store.collections[collection][id]
	var version int64
	var data []byte
	if ok {
		version = doc.version
		data = make([]byte, len(doc.data))
		copy(data, doc.data)
	}
	t.store.mu.RUnlock()

	t.reads[key] = version
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

// Set implements Tx.
func (t *memTx) Set(collection, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}
	t.writes = append(t.writes, stagedWrite{key: docKey{collection, id}, data: data})
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
