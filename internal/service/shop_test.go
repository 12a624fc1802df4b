package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"
	"pd-shop-api/internal/repository"
	"pd-shop-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects activity records dispatched after commit.
type captureSink struct {
	mu         sync.Mutex
	activities []model.ShopActivity
}

func (s *captureSink) Record(ctx context.Context, activity model.ShopActivity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, activity)
	return "activity-id", nil
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activities)
}

func (s *captureSink) last() model.ShopActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities[len(s.activities)-1]
}

type shopFixture struct {
	store       *docstore.MemoryStore
	collections repository.Collections
	items       repository.ItemRepository
	sink        *captureSink
	shop        *service.ShopService
}

func newShopFixture(t *testing.T) *shopFixture {
	t.Helper()

	store := docstore.NewMemoryStore()
	collections := repository.NewCollections(false)
	items := repository.NewDocstoreItemRepository(store, collections)
	sink := &captureSink{}

	shop := service.NewShopService(service.ShopServiceConfig{
		Store:       store,
		Collections: collections,
		Items:       items,
		Sink:        sink,
	})
	require.NotNil(t, shop)

	return &shopFixture{
		store:       store,
		collections: collections,
		items:       items,
		sink:        sink,
		shop:        shop,
	}
}

func (f *shopFixture) seedUser(t *testing.T, id string, user model.User) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), f.collections.Users, id, user))
}

func (f *shopFixture) seedItem(t *testing.T, id string, item model.ShopItem) {
	t.Helper()
	item.ID = ""
	require.NoError(t, f.store.Set(context.Background(), f.collections.Items, id, item))
}

func (f *shopFixture) getUser(t *testing.T, id string) model.User {
	t.Helper()
	doc, err := f.store.Get(context.Background(), f.collections.Users, id)
	require.NoError(t, err)
	var user model.User
	require.NoError(t, doc.Decode(&user))
	return user
}

func (f *shopFixture) getItem(t *testing.T, id string) model.ShopItem {
	t.Helper()
	doc, err := f.store.Get(context.Background(), f.collections.Items, id)
	require.NoError(t, err)
	var item model.ShopItem
	require.NoError(t, doc.Decode(&item))
	return item
}

func (f *shopFixture) getStats(t *testing.T) model.ShopStats {
	t.Helper()
	doc, err := f.store.Get(context.Background(), f.collections.Stats, repository.StatsDocKey)
	require.NoError(t, err)
	var stats model.ShopStats
	require.NoError(t, doc.Decode(&stats))
	return stats
}

func TestBuyGiftPointsToUsdPack(t *testing.T) {
	f := newShopFixture(t)
	f.seedUser(t, "u1", model.User{GiftPoints: 500})
	f.seedItem(t, "i1", model.ShopItem{
		Name:      "A1",
		GpPrice:   500,
		UsdReturn: decimal.NewFromFloat(2.5),
		ItemType:  model.ItemTypeGiftPointsToUsdPack,
		Quantity:  10,
	})

	require.NoError(t, f.shop.Buy(context.Background(), "u1", "i1"))

	user := f.getUser(t, "u1")
	assert.Equal(t, int64(0), user.GiftPoints)
	assert.True(t, user.UsdBalance.Equal(decimal.NewFromFloat(2.5)))
	assert.Equal(t, int64(9), f.getItem(t, "i1").Quantity)

	assert.Eventually(t, func() bool { return f.sink.len() == 1 }, time.Second, 10*time.Millisecond)
	activity := f.sink.last()
	assert.Equal(t, "u1", activity.UserID)
	assert.Equal(t, model.CurrencyGiftPoints, activity.CurrencyType)
	assert.True(t, activity.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "A1", activity.ItemInfo)
}

func TestBuyInsufficientGiftPoints(t *testing.T) {
	f := newShopFixture(t)
	f.seedUser(t, "u1", model.User{GiftPoints: 499})
	f.seedItem(t, "i1", model.ShopItem{
		Name:     "A1",
		GpPrice:  500,
		ItemType: model.ItemTypeGiftPointsToUsdPack,
		Quantity: 10,
	})

	err := f.shop.Buy(context.Background(), "u1", "i1")
	assert.ErrorIs(t, err, service.ErrInsufficientGiftPoints)

	// no balance moved, no stock moved, no activity
	assert.Equal(t, int64(499), f.getUser(t, "u1").GiftPoints)
	assert.Equal(t, int64(10), f.getItem(t, "i1").Quantity)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.sink.len())
}

func TestBuyFallbackGpPrice(t *testing.T) {
	f := newShopFixture(t)

	// usd-pack and exp-pack kinds charge 1000 when no gp price is set
	f.seedItem(t, "usd-pack", model.ShopItem{
		Name:     "usd pack",
		ItemType: model.ItemTypeGiftPointsToUsdPack,
		Quantity: 5,
	})
	f.seedItem(t, "exp-pack", model.ShopItem{
		Name:          "exp pack",
		ItemType:      model.ItemTypeGiftPointsToExpPack,
		ExpPackReturn: 4,
		Quantity:      5,
	})
	// the plain gift-point sink charges the stored price as-is, even zero
	f.seedItem(t, "freebie", model.ShopItem{
		Name:     "freebie",
		ItemType: model.ItemTypeBuyWithGiftPoints,
		Quantity: 5,
	})

	f.seedUser(t, "poor", model.User{GiftPoints: 999})
	assert.ErrorIs(t, f.shop.Buy(context.Background(), "poor", "usd-pack"), service.ErrInsufficientGiftPoints)
	assert.ErrorIs(t, f.shop.Buy(context.Background(), "poor", "exp-pack"), service.ErrInsufficientGiftPoints)
	assert.NoError(t, f.shop.Buy(context.Background(), "poor", "freebie"))
	assert.Equal(t, int64(999), f.getUser(t, "poor").GiftPoints)

	f.seedUser(t, "rich", model.User{GiftPoints: 2000})
	require.NoError(t, f.shop.Buy(context.Background(), "rich", "exp-pack"))
	rich := f.getUser(t, "rich")
	assert.Equal(t, int64(1000), rich.GiftPoints)
	assert.Equal(t, int64(4), rich.ExpPacks)
}

func TestBuyUsdToGiftPointsPackUpdatesStats(t *testing.T) {
	f := newShopFixture(t)
	f.seedUser(t, "u1", model.User{UsdBalance: decimal.NewFromInt(50)})
	f.seedItem(t, "i1", model.ShopItem{
		Name:     "gp pack",
		UsdPrice: decimal.NewFromFloat(9.99),
		GpReturn: 100,
		ItemType: model.ItemTypeUsdToGiftPointsPack,
		Quantity: 10,
	})
	require.NoError(t, f.store.Set(context.Background(), f.collections.Stats, repository.StatsDocKey, model.ShopStats{
		TotalUsdSales:     decimal.NewFromInt(100),
		UnclaimedUsdSales: decimal.NewFromInt(5),
	}))

	require.NoError(t, f.shop.Buy(context.Background(), "u1", "i1"))

	user := f.getUser(t, "u1")
	assert.True(t, user.UsdBalance.Equal(decimal.NewFromFloat(40.01)))
	assert.Equal(t, int64(100), user.GiftPoints)

	stats := f.getStats(t)
	assert.True(t, stats.TotalUsdSales.Equal(decimal.NewFromFloat(109.99)))
	assert.True(t, stats.UnclaimedUsdSales.Equal(decimal.NewFromFloat(14.99)))
	assert.True(t, stats.WeeklyUsdSales[service.WeekLabel(time.Now().UTC())].Equal(decimal.NewFromFloat(9.99)))
}

func TestBuyUsdSucceedsWithoutStatsSingleton(t *testing.T) {
	f := newShopFixture(t)
	f.seedUser(t, "u1", model.User{UsdBalance: decimal.NewFromInt(50)})
	f.seedItem(t, "i1", model.ShopItem{
		Name:     "gp pack",
		UsdPrice: decimal.NewFromFloat(9.99),
		GpReturn: 100,
		ItemType: model.ItemTypeUsdToGiftPointsPack,
		Quantity: 10,
	})

	require.NoError(t, f.shop.Buy(context.Background(), "u1", "i1"))

	// sale went through; no singleton was created as a side effect
	assert.Equal(t, int64(100), f.getUser(t, "u1").GiftPoints)
	_, err := f.store.Get(context.Background(), f.collections.Stats, repository.StatsDocKey)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestBuyInsufficientUsd(t *testing.T) {
	f := newShopFixture(t)
	f.seedUser(t, "u1", model.User{UsdBalance: decimal.NewFromFloat(9.98)})
	f.seedItem(t, "i1", model.ShopItem{
		Name:     "gp pack",
		UsdPrice: decimal.NewFromFloat(9.99),
		ItemType: model.ItemTypeUsdToGiftPointsPack,
		Quantity: 10,
	})

	assert.ErrorIs(t, f.shop.Buy(context.Background(), "u1", "i1"), service.ErrInsufficientUsd)
}

func TestBuyWhitelistCapped(t *testing.T) {
	f := newShopFixture(t)
	f.seedItem(t, "wl", model.ShopItem{
		Name:     "whitelist slot",
		GpPrice:  200,
		ItemType: model.ItemTypeWhitelistForMint,
		Quantity: 100,
	})

	// default cap of 3 applies when the item sets none
	f.seedUser(t, "at-cap", model.User{GiftPoints: 1000, WhitelistBalance: 3})
	assert.ErrorIs(t, f.shop.Buy(context.Background(), "at-cap", "wl"), service.ErrSoldOut)

	f.seedUser(t, "below-cap", model.User{GiftPoints: 1000, WhitelistBalance: 2})
	require.NoError(t, f.shop.Buy(context.Background(), "below-cap", "wl"))
	user := f.getUser(t, "below-cap")
	assert.Equal(t, int64(3), user.WhitelistBalance)
	assert.Equal(t, int64(800), user.GiftPoints)

	// explicit item cap overrides the default
	f.seedItem(t, "wl5", model.ShopItem{
		Name:            "whitelist slot",
		GpPrice:         200,
		ItemType:        model.ItemTypeWhitelistForMint,
		Quantity:        100,
		MaxLimitPerUser: 5,
	})
	require.NoError(t, f.shop.Buy(context.Background(), "at-cap", "wl5"))
	assert.Equal(t, int64(4), f.getUser(t, "at-cap").WhitelistBalance)
}

func TestBuyPreconditionOrdering(t *testing.T) {
	f := newShopFixture(t)

	f.seedItem(t, "ok", model.ShopItem{
		Name:     "ok",
		GpPrice:  100,
		ItemType: model.ItemTypeBuyWithGiftPoints,
		Quantity: 10,
	})

	t.Run("missing item beats missing user", func(t *testing.T) {
		err := f.shop.Buy(context.Background(), "ghost", "nope")
		assert.ErrorIs(t, err, service.ErrItemNotFound)
	})

	t.Run("missing user", func(t *testing.T) {
		err := f.shop.Buy(context.Background(), "ghost", "ok")
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("disabled item", func(t *testing.T) {
		f.seedItem(t, "off", model.ShopItem{
			Name:     "off",
			GpPrice:  100,
			ItemType: model.ItemTypeBuyWithGiftPoints,
			Quantity: 10,
			Disable:  true,
		})
		f.seedUser(t, "u1", model.User{GiftPoints: 1000})
		err := f.shop.Buy(context.Background(), "u1", "off")
		assert.ErrorIs(t, err, service.ErrItemUnavailable)
	})

	t.Run("sold out beats insufficient funds", func(t *testing.T) {
		f.seedItem(t, "empty", model.ShopItem{
			Name:     "empty",
			GpPrice:  100,
			ItemType: model.ItemTypeBuyWithGiftPoints,
			Quantity: 0,
		})
		f.seedUser(t, "broke", model.User{GiftPoints: 0})
		err := f.shop.Buy(context.Background(), "broke", "empty")
		assert.ErrorIs(t, err, service.ErrSoldOut)
	})

	t.Run("unknown item type", func(t *testing.T) {
		f.seedItem(t, "weird", model.ShopItem{
			Name:     "weird",
			ItemType: model.ItemType(42),
			Quantity: 10,
		})
		f.seedUser(t, "u1", model.User{GiftPoints: 1000})
		err := f.shop.Buy(context.Background(), "u1", "weird")
		assert.ErrorIs(t, err, service.ErrUnknownItemType)
	})
}

func TestBuyLastUnitRace(t *testing.T) {
	f := newShopFixture(t)
	f.seedItem(t, "last", model.ShopItem{
		Name:     "last one",
		GpPrice:  100,
		ItemType: model.ItemTypeBuyWithGiftPoints,
		Quantity: 1,
	})
	f.seedUser(t, "u1", model.User{GiftPoints: 1000})
	f.seedUser(t, "u2", model.User{GiftPoints: 1000})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			errs[i] = f.shop.Buy(context.Background(), userID, "last")
		}(i, userID)
	}
	wg.Wait()

	// exactly one buyer gets the last unit
	successes, soldOut := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, service.ErrSoldOut)
			soldOut++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, soldOut)
	assert.Equal(t, int64(0), f.getItem(t, "last").Quantity)

	// only one of the two buyers was charged
	charged := 0
	for _, userID := range []string{"u1", "u2"} {
		if f.getUser(t, userID).GiftPoints == 900 {
			charged++
		}
	}
	assert.Equal(t, 1, charged)
}

func TestBuyIsPurchaseError(t *testing.T) {
	f := newShopFixture(t)
	err := f.shop.Buy(context.Background(), "ghost", "nope")
	assert.True(t, service.IsPurchaseError(err))
}
