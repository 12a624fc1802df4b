package repository

import (
	"context"
	"fmt"
	"log"
	"sort"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"
)

// DocstoreItemRepository implements ItemRepository on the document store.
type DocstoreItemRepository struct {
	store      docstore.Store
	collection string
}

// NewDocstoreItemRepository creates an item repository over the given store.
func NewDocstoreItemRepository(store docstore.Store, collections Collections) *DocstoreItemRepository {
	return &DocstoreItemRepository{
		store:      store,
		collection: collections.Items,
	}
}

// GetItem retrieves one item by id. Returns (nil, nil) when absent.
func (r *DocstoreItemRepository) GetItem(ctx context.Context, id string) (*model.ShopItem, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shop item %s: %w", id, err)
	}

	var item model.ShopItem
	if err := doc.Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode shop item %s: %w", id, err)
	}
	item.ID = doc.ID
	return &item, nil
}

// ListActiveItems returns all non-disabled items sorted ascending by order
// code. The document id is attached to each returned item since it is not
// stored as a field.
func (r *DocstoreItemRepository) ListActiveItems(ctx context.Context) ([]model.ShopItem, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}

	items := make([]model.ShopItem, 0, len(docs))
	for _, doc := range docs {
		var item model.ShopItem
		if err := doc.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode shop item %s: %w", doc.ID, err)
		}
		if item.Disable {
			continue
		}
		item.ID = doc.ID
		items = append(items, item)
	}

	// if item list grows past a few hundred, better to do sort in db query
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderCode < items[j].OrderCode
	})

	return items, nil
}

// AddItem creates a catalog entry and returns its generated id.
func (r *DocstoreItemRepository) AddItem(ctx context.Context, item model.ShopItem) (string, error) {
	item.ID = "" // the id lives on the document, not in it
	id, err := r.store.Add(ctx, r.collection, item)
	if err != nil {
		return "", fmt.Errorf("failed to add shop item: %w", err)
	}
	log.Printf("[ItemRepository] Added new shop item: %s", id)
	return id, nil
}

// SetItem creates or replaces the catalog entry with the given id.
func (r *DocstoreItemRepository) SetItem(ctx context.Context, id string, item model.ShopItem) error {
	item.ID = ""
	if err := r.store.Set(ctx, r.collection, id, item); err != nil {
		return fmt.Errorf("failed to set shop item %s: %w", id, err)
	}
	log.Printf("[ItemRepository] Set shop item: %s", id)
	return nil
}

// Ensure DocstoreItemRepository implements ItemRepository
var _ ItemRepository = (*DocstoreItemRepository)(nil)
