package service_test

import (
	"context"
	"testing"
	"time"

	"pd-shop-api/internal/cache"
	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"
	"pd-shop-api/internal/repository"
	"pd-shop-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActiveItemsCached(t *testing.T) {
	store := docstore.NewMemoryStore()
	collections := repository.NewCollections(false)
	items := repository.NewDocstoreItemRepository(store, collections)

	catalogCache := cache.NewMemoryCache()
	defer catalogCache.Close()

	shop := service.NewShopService(service.ShopServiceConfig{
		Store:        store,
		Collections:  collections,
		Items:        items,
		CatalogCache: catalogCache,
		CacheTTL:     time.Minute,
	})
	require.NotNil(t, shop)

	ctx := context.Background()
	_, err := items.AddItem(ctx, model.ShopItem{Name: "first", OrderCode: "a", Quantity: 1})
	require.NoError(t, err)

	listed, err := shop.ListActiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "first", listed[0].Name)

	// a later catalog change is invisible until the cache entry expires
	_, err = items.AddItem(ctx, model.ShopItem{Name: "second", OrderCode: "b", Quantity: 1})
	require.NoError(t, err)

	listed, err = shop.ListActiveItems(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestListActiveItemsUncached(t *testing.T) {
	store := docstore.NewMemoryStore()
	collections := repository.NewCollections(false)
	items := repository.NewDocstoreItemRepository(store, collections)

	shop := service.NewShopService(service.ShopServiceConfig{
		Store:       store,
		Collections: collections,
		Items:       items,
	})
	require.NotNil(t, shop)

	ctx := context.Background()
	_, err := items.AddItem(ctx, model.ShopItem{Name: "first", OrderCode: "a", Quantity: 1})
	require.NoError(t, err)

	listed, err := shop.ListActiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = items.AddItem(ctx, model.ShopItem{Name: "second", OrderCode: "b", Quantity: 1})
	require.NoError(t, err)

	listed, err = shop.ListActiveItems(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
