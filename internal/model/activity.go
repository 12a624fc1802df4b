package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShopActivity is an append-only record of one completed purchase.
// Records are immutable once written and live in month-partitioned
// collections chosen from CreatedDatetime.
type ShopActivity struct {
	ID              string          `json:"id,omitempty"`
	CreatedDatetime time.Time       `json:"createdDatetime"`
	UpdatedDatetime time.Time       `json:"updatedDatetime"`
	BuyType         BuyActivityType `json:"buyType"`
	CurrencyType    CurrencyType    `json:"currencyType"`
	Amount          decimal.Decimal `json:"amount"`
	UserID          string          `json:"userId"`
	ItemInfo        string          `json:"itemInfo"`
	ItemType        ItemType        `json:"itemType"`
}
