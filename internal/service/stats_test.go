package service_test

import (
	"testing"
	"time"

	"pd-shop-api/internal/model"
	"pd-shop-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "2026-W35", service.WeekLabel(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)))

	// Jan 1st 2027 falls in ISO week 53 of 2026
	assert.Equal(t, "2026-W53", service.WeekLabel(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAddWeeklySaleAccumulates(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	totals := service.AddWeeklySale(nil, decimal.NewFromFloat(9.99), now, 4)
	require.NotNil(t, totals)
	totals = service.AddWeeklySale(totals, decimal.NewFromFloat(0.01), now, 4)

	require.Len(t, totals, 1)
	assert.True(t, totals["2026-W35"].Equal(decimal.NewFromInt(10)))
}

func TestAddWeeklySalePrunesOutsideWindow(t *testing.T) {
	week0 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	totals := map[string]decimal.Decimal{}
	for i := 0; i < 8; i++ {
		totals = service.AddWeeklySale(totals, decimal.NewFromInt(1), week0.AddDate(0, 0, 7*i), 4)
	}

	// only the trailing 4 weeks survive
	require.Len(t, totals, 4)
	for i := 4; i < 8; i++ {
		label := service.WeekLabel(week0.AddDate(0, 0, 7*i))
		assert.True(t, totals[label].Equal(decimal.NewFromInt(1)), "missing %s", label)
	}
}

func TestApplyUsdSale(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	stats := &model.ShopStats{
		TotalUsdSales:     decimal.NewFromInt(100),
		UnclaimedUsdSales: decimal.NewFromInt(20),
	}

	service.ApplyUsdSale(stats, decimal.NewFromFloat(9.99), now, 4)

	assert.True(t, stats.TotalUsdSales.Equal(decimal.NewFromFloat(109.99)))
	assert.True(t, stats.UnclaimedUsdSales.Equal(decimal.NewFromFloat(29.99)))
	assert.True(t, stats.WeeklyUsdSales["2026-W35"].Equal(decimal.NewFromFloat(9.99)))
}
