package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemType selects which purchase variant applies to a shop item.
// The numeric codes are stable; they are persisted on item and activity
// documents and must never be renumbered.
type ItemType int

const (
	ItemTypeGiftPointsToUsdPack ItemType = 1 // charge gift points, credit USD balance
	ItemTypeUsdToGiftPointsPack ItemType = 2 // charge USD, credit gift points
	ItemTypeWhitelistForMint    ItemType = 3 // charge gift points, +1 whitelist slot (capped)
	ItemTypeBuyWithGiftPoints   ItemType = 4 // charge gift points, pure sink
	ItemTypeGiftPointsToExpPack ItemType = 5 // charge gift points, credit exp packs
)

// CurrencyType identifies the balance a purchase was charged against.
type CurrencyType int

const (
	CurrencyUsd        CurrencyType = 1
	CurrencyGiftPoints CurrencyType = 2
)

// String returns the short label used in notifications.
func (c CurrencyType) String() string {
	if c == CurrencyUsd {
		return "usd"
	}
	return "gp"
}

// BuyActivityType distinguishes shop purchases from other spend activity.
type BuyActivityType int

const (
	BuyActivityShop    BuyActivityType = 1
	BuyActivityUpgrade BuyActivityType = 2
)

// ShopItem is a catalog entry. Quantity is a hard stock counter; items that
// should look unlimited are seeded with a large quantity rather than being
// modeled as infinite.
type ShopItem struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	GpPrice         int64           `json:"gpPrice"`
	UsdPrice        decimal.Decimal `json:"usdPrice"`
	ItemType        ItemType        `json:"itemType"`
	ImageURL        string          `json:"imageUrl"`
	Quantity        int64           `json:"quantity"`
	UsdReturn       decimal.Decimal `json:"usdReturn"`
	GpReturn        int64           `json:"gpReturn"`
	ExpPackReturn   int64           `json:"expPackReturn"`
	MaxLimitPerUser int64           `json:"maxLimitPerUser"`
	Disable         bool            `json:"disable"`
	ExpireDatetime  *time.Time      `json:"expireDatetime,omitempty"`
	OrderCode       string          `json:"orderCode"`
}
