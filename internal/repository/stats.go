package repository

import (
	"context"
	"fmt"
	"log"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"

	"github.com/shopspring/decimal"
)

// DocstoreStatsRepository implements StatsRepository on the document store.
type DocstoreStatsRepository struct {
	store      docstore.Store
	collection string
}

// NewDocstoreStatsRepository creates a stats repository over the given store.
func NewDocstoreStatsRepository(store docstore.Store, collections Collections) *DocstoreStatsRepository {
	return &DocstoreStatsRepository{
		store:      store,
		collection: collections.Stats,
	}
}

// GetOrCreateStats reads the singleton, creating a zeroed one if absent.
func (r *DocstoreStatsRepository) GetOrCreateStats(ctx context.Context) (*model.ShopStats, error) {
	doc, err := r.store.Get(ctx, r.collection, StatsDocKey)
	if err == docstore.ErrNotFound {
		stats := &model.ShopStats{
			TotalUsdSales:     decimal.Zero,
			UnclaimedUsdSales: decimal.Zero,
		}
		if err := r.store.Set(ctx, r.collection, StatsDocKey, stats); err != nil {
			return nil, fmt.Errorf("failed to create shop stats: %w", err)
		}
		log.Printf("[StatsRepository] Created shop stats singleton: %s", StatsDocKey)
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop stats: %w", err)
	}

	var stats model.ShopStats
	if err := doc.Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode shop stats: %w", err)
	}
	return &stats, nil
}

// ResetUnclaimedUsdSales zeroes the unclaimed total in its own transaction.
// The cumulative total and weekly fields are read and written back untouched.
func (r *DocstoreStatsRepository) ResetUnclaimedUsdSales(ctx context.Context) error {
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var stats model.ShopStats
		if err := tx.Get(r.collection, StatsDocKey, &stats); err != nil {
			if err == docstore.ErrNotFound {
				return nil // nothing to claim yet
			}
			return err
		}
		stats.UnclaimedUsdSales = decimal.Zero
		return tx.Set(r.collection, StatsDocKey, &stats)
	})
	if err != nil {
		return fmt.Errorf("failed to reset unclaimed usd sales: %w", err)
	}
	return nil
}

// Ensure DocstoreStatsRepository implements StatsRepository
var _ StatsRepository = (*DocstoreStatsRepository)(nil)
