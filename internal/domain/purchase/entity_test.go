package purchase

import (
	"errors"
	"testing"
	"time"
)

func TestPackageCatalog(t *testing.T) {
	cases := []struct {
		raw   string
		cents int64
		slots int
	}{
		{"pack_1", 200, 1},
		{"pack_5", 800, 5},
		{"pack_10", 1400, 10},
	}
	for _, tc := range cases {
		packageType, info, err := PackageByType(tc.raw)
		if err != nil {
			t.Fatalf("PackageByType(%q): %v", tc.raw, err)
		}
		if string(packageType) != tc.raw {
			t.Errorf("type mismatch: %s", packageType)
		}
		if info.PriceCents != tc.cents || info.Slots != tc.slots {
			t.Errorf("%s: got %d cents / %d slots, want %d / %d",
				tc.raw, info.PriceCents, info.Slots, tc.cents, tc.slots)
		}
	}

	if _, _, err := PackageByType("pack_100"); !errors.Is(err, ErrInvalidPackageType) {
		t.Errorf("expected ErrInvalidPackageType, got %v", err)
	}
}

func TestPromotionCatalog(t *testing.T) {
	cases := []struct {
		raw      string
		cents    int64
		duration time.Duration
	}{
		{"highlighted", 300, 7 * 24 * time.Hour},
		{"top_category", 500, 7 * 24 * time.Hour},
		{"vip", 800, 14 * 24 * time.Hour},
	}
	for _, tc := range cases {
		_, info, err := PromotionByType(tc.raw)
		if err != nil {
			t.Fatalf("PromotionByType(%q): %v", tc.raw, err)
		}
		if info.PriceCents != tc.cents || info.Duration != tc.duration {
			t.Errorf("%s: got %d cents / %s, want %d / %s",
				tc.raw, info.PriceCents, info.Duration, tc.cents, tc.duration)
		}
	}

	if _, _, err := PromotionByType("sticky"); !errors.Is(err, ErrInvalidPromotionType) {
		t.Errorf("expected ErrInvalidPromotionType, got %v", err)
	}
}
