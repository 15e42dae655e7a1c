package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Setting keys for the global margin/fee defaults.
const (
	SettingProductMargin   = "default_margin_percentage"
	SettingShippingMargin  = "default_shipping_margin_percentage"
	SettingSampleMargin    = "default_sample_margin_percentage"
	SettingClothingFee     = "clothing_product_fee"
	SettingClothingSample  = "clothing_sample_fee" // stored and editable, consumed by no pricing path
	SettingAccessoryMargin = "accessory_margin_percentage"
)

var percentSettings = map[string]bool{
	SettingProductMargin:   true,
	SettingShippingMargin:  true,
	SettingSampleMargin:    true,
	SettingAccessoryMargin: true,
}

var knownSettings = map[string]bool{
	SettingProductMargin:   true,
	SettingShippingMargin:  true,
	SettingSampleMargin:    true,
	SettingClothingFee:     true,
	SettingClothingSample:  true,
	SettingAccessoryMargin: true,
}

// SettingsService serves the global margin configuration. Reads go through a
// versioned in-process cache: every write bumps a version counter row inside
// the same transaction, and a read re-loads when the stored version differs
// from the cached one. Two concurrent reads in one request therefore see one
// consistent snapshot even while an admin edits defaults.
type SettingsService interface {
	// Defaults returns the current global margin configuration.
	Defaults(ctx context.Context) (MarginDefaults, error)

	// Set validates and updates a single setting. Percentages must lie in
	// [0, 500]; flat fees must be non-negative.
	Set(ctx context.Context, actor Actor, key string, value decimal.Decimal) error

	// All returns every known setting and its value.
	All(ctx context.Context) (map[string]decimal.Decimal, error)
}

type settingsService struct {
	pool  *pgxpool.Pool
	audit AuditSink

	mu      sync.Mutex
	version int64
	cached  *MarginDefaults
}

func NewSettingsService(pool *pgxpool.Pool, audit AuditSink) SettingsService {
	return &settingsService{pool: pool, audit: audit}
}

func (s *settingsService) Defaults(ctx context.Context) (MarginDefaults, error) {
	var version int64
	err := s.pool.QueryRow(ctx, "SELECT version FROM settings_version WHERE id = 1").Scan(&version)
	if err != nil {
		return MarginDefaults{}, fmt.Errorf("failed to read settings version: %w", err)
	}

	s.mu.Lock()
	if s.cached != nil && s.version == version {
		d := *s.cached
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	values, err := s.All(ctx)
	if err != nil {
		return MarginDefaults{}, err
	}
	d := MarginDefaults{
		ProductMarginPercent:   values[SettingProductMargin],
		ShippingMarginPercent:  values[SettingShippingMargin],
		SampleMarginPercent:    values[SettingSampleMargin],
		ClothingProductFee:     values[SettingClothingFee],
		ClothingSampleFee:      values[SettingClothingSample],
		AccessoryMarginPercent: values[SettingAccessoryMargin],
	}

	s.mu.Lock()
	s.cached = &d
	s.version = version
	s.mu.Unlock()
	return d, nil
}

func (s *settingsService) Set(ctx context.Context, actor Actor, key string, value decimal.Decimal) error {
	if !knownSettings[key] {
		return &ValidationError{Field: "key", Msg: fmt.Sprintf("unknown setting %q", key)}
	}
	if percentSettings[key] {
		if err := ValidateMarginPercent(key, value); err != nil {
			return err
		}
	} else if value.IsNegative() {
		return &ValidationError{Field: key, Msg: "fee must not be negative"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var old decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1 FOR UPDATE", key).Scan(&old)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}

	// Bump the version in the same tx so cached readers notice the change.
	if _, err = tx.Exec(ctx, "UPDATE settings_version SET version = version + 1 WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to bump settings version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit setting %s: %w", key, err)
	}

	s.audit.Record(ctx, actor, "update_setting", "setting", 0,
		map[string]string{key: old.String()}, map[string]string{key: value.String()})
	return nil
}

func (s *settingsService) All(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]decimal.Decimal, len(knownSettings))
	for rows.Next() {
		var key string
		var value decimal.Decimal
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	return values, nil
}
