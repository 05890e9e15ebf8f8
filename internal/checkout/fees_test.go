package checkout

import (
	"testing"

	"github.com/batahq/bata-backend/pkg/config"
)

func testFeesConfig() config.FeesConfig {
	return config.FeesConfig{
		DefaultRate:       "0.05",
		HighRate:          "0.10",
		HighRateCategory:  []string{"food", "drinks"},
		DeliveryFeeKobo:   80000,
		RiderPayoutKobo:   56000,
		OrderNumberPrefix: "BATA",
	}
}

func TestCommissionStandardCategory(t *testing.T) {
	table := NewRateTable(testFeesConfig())

	// N10,000 at 5% keeps N9,500 for the seller.
	commission := table.CommissionKobo("electronics", 1000000)
	if commission != 50000 {
		t.Fatalf("expected 50000 kobo commission got %d", commission)
	}
}

func TestCommissionHighFeeCategory(t *testing.T) {
	table := NewRateTable(testFeesConfig())

	// N10,000 of food at 10% keeps N9,000 for the seller.
	commission := table.CommissionKobo("food", 1000000)
	if commission != 100000 {
		t.Fatalf("expected 100000 kobo commission got %d", commission)
	}
}

func TestCommissionCategoryMatchingIsCaseInsensitive(t *testing.T) {
	table := NewRateTable(testFeesConfig())

	if got := table.CommissionKobo("  Drinks ", 1000000); got != 100000 {
		t.Fatalf("expected high rate for Drinks got %d", got)
	}
}

func TestCommissionRoundsHalfUp(t *testing.T) {
	table := NewRateTable(testFeesConfig())

	// 5% of 4,990 kobo is 249.5, which rounds to 250.
	if got := table.CommissionKobo("books", 4990); got != 250 {
		t.Fatalf("expected 250 kobo got %d", got)
	}
}
