package repository

import (
	"context"
	"time"

	"pd-shop-api/internal/model"
)

// ItemRepository defines catalog data access methods.
type ItemRepository interface {
	// GetItem retrieves one item by id. Returns (nil, nil) when the item
	// does not exist; absence is an expected outcome, not an error.
	GetItem(ctx context.Context, id string) (*model.ShopItem, error)

	// ListActiveItems returns all non-disabled items sorted ascending by
	// order code.
	ListActiveItems(ctx context.Context) ([]model.ShopItem, error)

	// AddItem creates a catalog entry and returns its generated id.
	AddItem(ctx context.Context, item model.ShopItem) (string, error)

	// SetItem creates or replaces the catalog entry with the given id.
	SetItem(ctx context.Context, id string, item model.ShopItem) error
}

// StatsRepository defines access to the shop stats singleton.
type StatsRepository interface {
	// GetOrCreateStats reads the singleton, creating a zeroed one if absent.
	GetOrCreateStats(ctx context.Context) (*model.ShopStats, error)

	// ResetUnclaimedUsdSales zeroes the unclaimed total in its own
	// transaction. The cumulative total and weekly fields are untouched.
	ResetUnclaimedUsdSales(ctx context.Context) error
}

// ActivityRecorder appends completed-purchase records into month partitions.
type ActivityRecorder interface {
	// Record appends one activity record and returns its generated id.
	// The month partition is chosen from the record's creation time.
	Record(ctx context.Context, activity model.ShopActivity) (string, error)

	// RecordBatch appends multiple records, each into its own partition.
	RecordBatch(ctx context.Context, activities []model.ShopActivity) error

	// ListMonth returns every record in one month partition.
	ListMonth(ctx context.Context, year int, month time.Month) ([]model.ShopActivity, error)

	// Close releases the recorder's resources.
	Close() error
}
