package model

import "github.com/shopspring/decimal"

// ShopStats is the singleton sales aggregate. TotalUsdSales only ever grows;
// UnclaimedUsdSales is reset to zero by the external claim process.
// WeeklyUsdSales maps ISO week labels ("2026-W35") to that week's USD sales
// and is pruned to a trailing window on every write. Each windowed metric
// gets its own map so independent metrics never collide.
type ShopStats struct {
	TotalUsdSales     decimal.Decimal            `json:"totalUsdSales"`
	UnclaimedUsdSales decimal.Decimal            `json:"unclaimedUsdSales"`
	WeeklyUsdSales    map[string]decimal.Decimal `json:"weeklyUsdSales,omitempty"`
}
