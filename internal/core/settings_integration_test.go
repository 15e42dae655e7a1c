package core_test

import (
	"context"
	"errors"
	"testing"

	"makerdesk/internal/core"
)

func TestSettingsService_DefaultsAndVersionedCache(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	settings := core.NewSettingsService(pool, audit)
	ctx := context.Background()

	d, err := settings.Defaults(ctx)
	if err != nil {
		t.Fatalf("Defaults failed: %v", err)
	}
	if d.ProductMarginPercent.StringFixed(0) != "80" {
		t.Errorf("ProductMarginPercent = %s, want 80", d.ProductMarginPercent.StringFixed(0))
	}

	// A write through the service is visible to the next read despite the
	// in-process cache: the version bump invalidates it.
	if err := settings.Set(ctx, testAdmin, core.SettingProductMargin, dec("65")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	d, err = settings.Defaults(ctx)
	if err != nil {
		t.Fatalf("Defaults failed: %v", err)
	}
	if d.ProductMarginPercent.StringFixed(0) != "65" {
		t.Errorf("ProductMarginPercent = %s after update, want 65", d.ProductMarginPercent.StringFixed(0))
	}
}

func TestSettingsService_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	settings := core.NewSettingsService(pool, audit)
	ctx := context.Background()

	var val *core.ValidationError
	if err := settings.Set(ctx, testAdmin, "unknown_key", dec("1")); !errors.As(err, &val) {
		t.Errorf("expected ValidationError for unknown key, got %v", err)
	}
	if err := settings.Set(ctx, testAdmin, core.SettingProductMargin, dec("501")); !errors.As(err, &val) {
		t.Errorf("expected ValidationError for out-of-range percentage, got %v", err)
	}
	if err := settings.Set(ctx, testAdmin, core.SettingClothingFee, dec("-1")); !errors.As(err, &val) {
		t.Errorf("expected ValidationError for negative fee, got %v", err)
	}

	// Flat fees are not subject to the percentage bound.
	if err := settings.Set(ctx, testAdmin, core.SettingClothingFee, dec("750")); err != nil {
		t.Errorf("unexpected error for a large flat fee: %v", err)
	}
}

func TestSettingsService_InertClothingSampleFee(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	settings := core.NewSettingsService(pool, audit)
	ctx := context.Background()

	// The setting is stored and editable.
	if err := settings.Set(ctx, testAdmin, core.SettingClothingSample, dec("99")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	all, err := settings.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if all[core.SettingClothingSample].StringFixed(0) != "99" {
		t.Errorf("stored value = %s, want 99", all[core.SettingClothingSample].StringFixed(0))
	}

	// But no pricing path consumes it: a clothing product's sample fee is
	// unchanged by the setting.
	d, err := settings.Defaults(ctx)
	if err != nil {
		t.Fatalf("Defaults failed: %v", err)
	}
	p := core.OrderProduct{Category: core.CategoryClothing, SampleFee: dec("0")}
	if got := core.ResolveClientSampleFee(&p, d); !got.IsZero() {
		t.Errorf("clothing_sample_fee leaked into pricing: got %s", got.StringFixed(2))
	}
}
