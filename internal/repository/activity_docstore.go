package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"
)

// DocstoreActivityRecorder implements ActivityRecorder on the document
// store, one collection per calendar month.
type DocstoreActivityRecorder struct {
	store docstore.Store
}

// NewDocstoreActivityRecorder creates a recorder over the given store.
func NewDocstoreActivityRecorder(store docstore.Store) *DocstoreActivityRecorder {
	return &DocstoreActivityRecorder{store: store}
}

// Record appends one activity record into the partition matching its
// creation time.
func (r *DocstoreActivityRecorder) Record(ctx context.Context, activity model.ShopActivity) (string, error) {
	collection := ActivityCollection(activity.CreatedDatetime)
	activity.ID = ""
	id, err := r.store.Add(ctx, collection, activity)
	if err != nil {
		return "", fmt.Errorf("failed to add shop activity: %w", err)
	}
	log.Printf("[ActivityRecorder] Added shop activity %s to %s", id, collection)
	return id, nil
}

// RecordBatch appends multiple records, each into its own partition.
func (r *DocstoreActivityRecorder) RecordBatch(ctx context.Context, activities []model.ShopActivity) error {
	for _, activity := range activities {
		if _, err := r.Record(ctx, activity); err != nil {
			return err
		}
	}
	return nil
}

// ListMonth returns every record in one month partition.
func (r *DocstoreActivityRecorder) ListMonth(ctx context.Context, year int, month time.Month) ([]model.ShopActivity, error) {
	collection := ActivityCollection(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	docs, err := r.store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop activity for %s: %w", collection, err)
	}

	activities := make([]model.ShopActivity, 0, len(docs))
	for _, doc := range docs {
		var activity model.ShopActivity
		if err := doc.Decode(&activity); err != nil {
			return nil, fmt.Errorf("failed to decode shop activity %s: %w", doc.ID, err)
		}
		activity.ID = doc.ID
		activities = append(activities, activity)
	}
	return activities, nil
}

// Close implements ActivityRecorder.
func (r *DocstoreActivityRecorder) Close() error { return nil }

// Ensure DocstoreActivityRecorder implements ActivityRecorder
var _ ActivityRecorder = (*DocstoreActivityRecorder)(nil)
