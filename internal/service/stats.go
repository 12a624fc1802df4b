package service

import (
	"fmt"
	"time"

	"pd-shop-api/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultWeeklyWindow is how many trailing ISO weeks of sales totals the
// stats singleton retains when no window is configured.
const DefaultWeeklyWindow = 4

// WeekLabel returns the ISO week label for t, e.g. "2026-W35". The ISO year
// is part of the label so windows spanning a year boundary stay distinct.
func WeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// AddWeeklySale adds amount to the week of now in totals and prunes every
// label outside the trailing window of size window ending at the current
// week. A nil map is allocated; the result is always non-nil.
func AddWeeklySale(totals map[string]decimal.Decimal, amount decimal.Decimal, now time.Time, window int) map[string]decimal.Decimal {
	if totals == nil {
		totals = make(map[string]decimal.Decimal)
	}
	if window < 1 {
		window = DefaultWeeklyWindow
	}

	label := WeekLabel(now)
	totals[label] = totals[label].Add(amount)

	retained := make(map[string]bool, window)
	for i := 0; i < window; i++ {
		retained[WeekLabel(now.AddDate(0, 0, -7*i))] = true
	}
	for key := range totals {
		if !retained[key] {
			delete(totals, key)
		}
	}

	return totals
}

// ApplyUsdSale records one USD sale on the stats aggregate: both totals grow
// by the sale amount and the current week's field is updated and pruned.
// The week is attributed from now, which callers fix at transaction
// construction time so retries do not move a sale across a week boundary.
func ApplyUsdSale(stats *model.ShopStats, amount decimal.Decimal, now time.Time, window int) {
	stats.TotalUsdSales = stats.TotalUsdSales.Add(amount)
	stats.UnclaimedUsdSales = stats.UnclaimedUsdSales.Add(amount)
	stats.WeeklyUsdSales = AddWeeklySale(stats.WeeklyUsdSales, amount, now, window)
}
