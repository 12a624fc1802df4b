package repository

import (
	"fmt"
	"time"
)

// StatsDocKey is the fixed id of the shop stats singleton document.
const StatsDocKey = "shop-stats-v1"

const (
	itemCollectionBase     = "pd-shop-items"
	statsCollectionBase    = "pd-shop-stats"
	userCollectionBase     = "pd-users"
	activityCollectionBase = "pd-shop-activity"
)

// Collections resolves environment-scoped collection names. Non-production
// environments get a "dev-" prefix on item, stats and user collections so a
// shared store can hold both; activity partitions keep one namespace.
type Collections struct {
	Items string
	Stats string
	Users string
}

// NewCollections builds collection names for the given environment.
func NewCollections(production bool) Collections {
	c := Collections{
		Items: itemCollectionBase,
		Stats: statsCollectionBase,
		Users: userCollectionBase,
	}
	if !production {
		c.Items = "dev-" + c.Items
		c.Stats = "dev-" + c.Stats
		c.Users = "dev-" + c.Users
	}
	return c
}

// ActivityCollection returns the month partition name for t, e.g.
// "pd-shop-activity-2026-08".
func ActivityCollection(t time.Time) string {
	return fmt.Sprintf("%s-%04d-%02d", activityCollectionBase, t.Year(), int(t.Month()))
}
