package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pd-shop-api/internal/cache"
	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/model"
	"pd-shop-api/internal/repository"

	"github.com/shopspring/decimal"
)

// fallbackGpPrice substitutes an unset gift-point price, but only for the
// two item kinds that historically allowed one (usd-pack and exp-pack).
// The other kinds charge the stored price as-is; do not generalize this.
const fallbackGpPrice = 1000

// defaultMaxLimitPerUser caps whitelist purchases when the item sets none.
const defaultMaxLimitPerUser = 3

// sideEffectTimeout bounds the post-commit activity/notify dispatch.
const sideEffectTimeout = 10 * time.Second

const activeItemsCacheKey = "shop:items:active"

// ActivitySink receives completed-purchase records. Both activity recorders
// and the Redis write-behind buffer satisfy it.
type ActivitySink interface {
	Record(ctx context.Context, activity model.ShopActivity) (string, error)
}

// Notifier broadcasts a completed purchase. Best effort only: failures are
// logged and never surfaced to the buyer.
type Notifier interface {
	PurchaseCompleted(ctx context.Context, activity model.ShopActivity) error
}

// exchangeRule parameterizes one purchase variant: which balance is charged,
// what the buyer is credited, and which side effects run. All variants share
// the same validation ordering.
type exchangeRule struct {
	currency     model.CurrencyType
	gpFallback   bool // legacy fallback price applies when gpPrice is unset
	capped       bool // per-user whitelist limit applies
	updatesStats bool
	credit       func(user *model.User, item *model.ShopItem)
}

var exchangeRules = map[model.ItemType]exchangeRule{
	model.ItemTypeGiftPointsToUsdPack: {
		currency:   model.CurrencyGiftPoints,
		gpFallback: true,
		credit: func(u *model.User, i *model.ShopItem) {
			u.UsdBalance = u.UsdBalance.Add(i.UsdReturn)
		},
	},
	model.ItemTypeUsdToGiftPointsPack: {
		currency:     model.CurrencyUsd,
		updatesStats: true,
		credit: func(u *model.User, i *model.ShopItem) {
			u.GiftPoints += i.GpReturn
		},
	},
	model.ItemTypeWhitelistForMint: {
		currency: model.CurrencyGiftPoints,
		capped:   true,
		credit: func(u *model.User, i *model.ShopItem) {
			u.WhitelistBalance++
		},
	},
	model.ItemTypeBuyWithGiftPoints: {
		currency: model.CurrencyGiftPoints,
		// pure sink: nothing credited beyond the stock decrement
	},
	model.ItemTypeGiftPointsToExpPack: {
		currency:   model.CurrencyGiftPoints,
		gpFallback: true,
		credit: func(u *model.User, i *model.ShopItem) {
			u.ExpPacks += i.ExpPackReturn
		},
	},
}

// ShopService implements the purchase transaction engine and catalog reads.
type ShopService struct {
	store        docstore.Store
	collections  repository.Collections
	items        repository.ItemRepository
	sink         ActivitySink
	notifier     Notifier
	catalogCache cache.Cache
	cacheTTL     time.Duration
	weeklyWindow int
}

// ShopServiceConfig holds the dependencies for NewShopService. Sink,
// Notifier and CatalogCache are optional.
type ShopServiceConfig struct {
	Store        docstore.Store
	Collections  repository.Collections
	Items        repository.ItemRepository
	Sink         ActivitySink
	Notifier     Notifier
	CatalogCache cache.Cache
	CacheTTL     time.Duration
	WeeklyWindow int
}

// NewShopService creates a new shop service.
// Returns nil if the store or item repository is missing.
func NewShopService(cfg ShopServiceConfig) *ShopService {
	if cfg.Store == nil || cfg.Items == nil {
		return nil
	}
	if cfg.WeeklyWindow < 1 {
		cfg.WeeklyWindow = DefaultWeeklyWindow
	}
	return &ShopService{
		store:        cfg.Store,
		collections:  cfg.Collections,
		items:        cfg.Items,
		sink:         cfg.Sink,
		notifier:     cfg.Notifier,
		catalogCache: cfg.CatalogCache,
		cacheTTL:     cfg.CacheTTL,
		weeklyWindow: cfg.WeeklyWindow,
	}
}

// ListActiveItems returns the purchasable catalog, cached when a cache is
// configured. Staleness is tolerated for a browse view.
func (s *ShopService) ListActiveItems(ctx context.Context) ([]model.ShopItem, error) {
	if s.catalogCache == nil {
		return s.items.ListActiveItems(ctx)
	}

	data, err := s.catalogCache.GetOrSet(ctx, activeItemsCacheKey, s.cacheTTL, func() ([]byte, error) {
		items, err := s.items.ListActiveItems(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	})
	if err != nil {
		return nil, err
	}

	var items []model.ShopItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cached catalog: %w", err)
	}
	return items, nil
}

// Buy executes one purchase of itemID by userID. All validation and balance
// mutation happens inside a single store transaction; a concurrent purchase
// against the same item or user either serializes after this commit or is
// rejected and re-runs from the first check. Activity recording and
// notification are dispatched after commit and never fail the purchase.
func (s *ShopService) Buy(ctx context.Context, userID, itemID string) error {
	// Cheap early rejection before opening a transaction. The authoritative
	// checks run again inside the transaction.
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if item.Disable {
		return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
	}
	rule, ok := exchangeRules[item.ItemType]
	if !ok {
		return fmt.Errorf("%w: %d on item %s", ErrUnknownItemType, item.ItemType, itemID)
	}

	// Week attribution is fixed here; a purchase spanning a week boundary
	// belongs to the week in which it started evaluating.
	now := time.Now().UTC()

	var activity model.ShopActivity
	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		// Stats are read first so they share the transaction snapshot.
		var stats *model.ShopStats
		if rule.updatesStats {
			var st model.ShopStats
			switch err := tx.Get(s.collections.Stats, repository.StatsDocKey, &st); err {
			case nil:
				stats = &st
			case docstore.ErrNotFound:
				// A missing singleton never fails a sale; the update is
				// skipped and creation is left to the lazy path.
			default:
				return err
			}
		}

		var user model.User
		if err := tx.Get(s.collections.Users, userID, &user); err != nil {
			if err == docstore.ErrNotFound {
				return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
			}
			return err
		}

		var current model.ShopItem
		if err := tx.Get(s.collections.Items, itemID, &current); err != nil {
			if err == docstore.ErrNotFound {
				return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
			}
			return err
		}

		if current.Disable {
			return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
		}
		if current.Quantity < 1 {
			return fmt.Errorf("%w: %s", ErrSoldOut, itemID)
		}

		if rule.capped {
			limit := current.MaxLimitPerUser
			if limit == 0 {
				limit = defaultMaxLimitPerUser
			}
			if user.WhitelistBalance >= limit {
				return fmt.Errorf("%w: max buy limit exceeded for %s", ErrSoldOut, userID)
			}
		}

		var amount decimal.Decimal
		switch rule.currency {
		case model.CurrencyGiftPoints:
			cost := current.GpPrice
			if cost == 0 && rule.gpFallback {
				cost = fallbackGpPrice
			}
			if user.GiftPoints < cost {
				return fmt.Errorf("%w: have %d, need %d", ErrInsufficientGiftPoints, user.GiftPoints, cost)
			}
			user.GiftPoints -= cost
			amount = decimal.NewFromInt(cost)
		case model.CurrencyUsd:
			cost := current.UsdPrice
			if user.UsdBalance.LessThan(cost) {
				return fmt.Errorf("%w: have %s, need %s", ErrInsufficientUsd, user.UsdBalance, cost)
			}
			user.UsdBalance = user.UsdBalance.Sub(cost)
			amount = cost
		}

		if rule.credit != nil {
			rule.credit(&user, &current)
		}
		current.Quantity--

		if err := tx.Set(s.collections.Users, userID, &user); err != nil {
			return err
		}
		current.ID = ""
		if err := tx.Set(s.collections.Items, itemID, &current); err != nil {
			return err
		}

		if rule.updatesStats && stats != nil {
			ApplyUsdSale(stats, amount, now, s.weeklyWindow)
			if err := tx.Set(s.collections.Stats, repository.StatsDocKey, stats); err != nil {
				return err
			}
		}

		activity = model.ShopActivity{
			CreatedDatetime: now,
			UpdatedDatetime: now,
			BuyType:         model.BuyActivityShop,
			CurrencyType:    rule.currency,
			Amount:          amount,
			UserID:          userID,
			ItemInfo:        current.Name,
			ItemType:        current.ItemType,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatchSideEffects(activity)
	return nil
}

// dispatchSideEffects records and broadcasts a completed purchase without
// delaying the success response. Failures are logged and swallowed; the
// financial mutation already committed and the audit trail is advisory.
func (s *ShopService) dispatchSideEffects(activity model.ShopActivity) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if s.sink != nil {
			if _, err := s.sink.Record(ctx, activity); err != nil {
				log.Printf("[ShopService] Failed to record shop activity for %s: %v", activity.UserID, err)
			}
		}
		if s.notifier != nil {
			if err := s.notifier.PurchaseCompleted(ctx, activity); err != nil {
				log.Printf("[ShopService] Failed to notify purchase for %s: %v", activity.UserID, err)
			}
		}
	}()
}
