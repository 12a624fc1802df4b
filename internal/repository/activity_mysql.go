package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"pd-shop-api/internal/model"
	"pd-shop-api/pkg/uid"
)

// MySQLActivityRecorder implements ActivityRecorder using MySQL, one table
// per calendar month (shop_activity_YYYY_MM). Tables are created on demand
// the first time a month receives a record.
type MySQLActivityRecorder struct {
	db *sql.DB

	mu            sync.Mutex
	createdTables map[string]bool
}

// NewMySQLActivityRecorder creates a new MySQL activity recorder.
func NewMySQLActivityRecorder(db *sql.DB) *MySQLActivityRecorder {
	return &MySQLActivityRecorder{
		db:            db,
		createdTables: make(map[string]bool),
	}
}

// activityTable returns the month-partition table name for t.
func activityTable(t time.Time) string {
	return fmt.Sprintf("shop_activity_%04d_%02d", t.Year(), int(t.Month()))
}

// ensureTable creates the month table if this recorder has not seen it yet.
func (r *MySQLActivityRecorder) ensureTable(ctx context.Context, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createdTables[table] {
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			created_at DATETIME(3) NOT NULL,
			updated_at DATETIME(3) NOT NULL,
			buy_type INT NOT NULL,
			currency_type INT NOT NULL,
			amount DECIMAL(18,2) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			item_info VARCHAR(255) NOT NULL,
			item_type INT NOT NULL,
			INDEX idx_user_id (user_id)
		)`, table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create activity table %s: %w", table, err)
	}

	r.createdTables[table] = true
	log.Printf("[MySQLActivityRecorder] Ensured activity table: %s", table)
	return nil
}

// Record appends one activity record into the table matching its creation time.
func (r *MySQLActivityRecorder) Record(ctx context.Context, activity model.ShopActivity) (string, error) {
	table := activityTable(activity.CreatedDatetime)
	if err := r.ensureTable(ctx, table); err != nil {
		return "", err
	}

	id := activity.ID
	if id == "" {
		id = uid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, created_at, updated_at, buy_type, currency_type, amount, user_id, item_info, item_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)

	_, err := r.db.ExecContext(ctx, query,
		id,
		activity.CreatedDatetime,
		activity.UpdatedDatetime,
		int(activity.BuyType),
		int(activity.CurrencyType),
		activity.Amount,
		activity.UserID,
		activity.ItemInfo,
		int(activity.ItemType),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert shop activity: %w", err)
	}
	return id, nil
}

// RecordBatch appends multiple records inside one transaction per call.
// Records may span months; each goes to its own table.
func (r *MySQLActivityRecorder) RecordBatch(ctx context.Context, activities []model.ShopActivity) error {
	if len(activities) == 0 {
		return nil
	}

	for _, activity := range activities {
		if err := r.ensureTable(ctx, activityTable(activity.CreatedDatetime)); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, activity := range activities {
		id := activity.ID
		if id == "" {
			id = uid.New()
		}
		query := fmt.Sprintf(`
			INSERT INTO %s (id, created_at, updated_at, buy_type, currency_type, amount, user_id, item_info, item_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, activityTable(activity.CreatedDatetime))
		if _, err := tx.ExecContext(ctx, query,
			id,
			activity.CreatedDatetime,
			activity.UpdatedDatetime,
			int(activity.BuyType),
			int(activity.CurrencyType),
			activity.Amount,
			activity.UserID,
			activity.ItemInfo,
			int(activity.ItemType),
		); err != nil {
			return fmt.Errorf("failed to batch insert shop activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMonth returns every record in one month table, oldest first.
func (r *MySQLActivityRecorder) ListMonth(ctx context.Context, year int, month time.Month) ([]model.ShopActivity, error) {
	table := activityTable(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))

	query := fmt.Sprintf(`
		SELECT id, created_at, updated_at, buy_type, currency_type, amount, user_id, item_info, item_type
		FROM %s ORDER BY created_at`, table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop activity from %s: %w", table, err)
	}
	defer rows.Close()

	var activities []model.ShopActivity
	for rows.Next() {
		var a model.ShopActivity
		var buyType, currencyType, itemType int
		if err := rows.Scan(
			&a.ID,
			&a.CreatedDatetime,
			&a.UpdatedDatetime,
			&buyType,
			&currencyType,
			&a.Amount,
			&a.UserID,
			&a.ItemInfo,
			&itemType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shop activity: %w", err)
		}
		a.BuyType = model.BuyActivityType(buyType)
		a.CurrencyType = model.CurrencyType(currencyType)
		a.ItemType = model.ItemType(itemType)
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shop activity from %s: %w", table, err)
	}
	return activities, nil
}

// Close closes the underlying database connection.
func (r *MySQLActivityRecorder) Close() error {
	return r.db.Close()
}

// Ensure MySQLActivityRecorder implements ActivityRecorder
var _ ActivityRecorder = (*MySQLActivityRecorder)(nil)
