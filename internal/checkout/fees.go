package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/batahq/bata-backend/pkg/config"
)

// RateTable resolves the platform commission rate for a product category.
// Categories are matched case-insensitively.
type RateTable struct {
	defaultRate decimal.Decimal
	highRate    decimal.Decimal
	highRateFor map[string]struct{}
}

// NewRateTable builds a rate table from the fee configuration.
func NewRateTable(cfg config.FeesConfig) *RateTable {
	highRateFor := make(map[string]struct{}, len(cfg.HighRateCategory))
	for _, category := range cfg.HighRateCategory {
		highRateFor[strings.ToLower(strings.TrimSpace(category))] = struct{}{}
	}
	return &RateTable{
		defaultRate: cfg.DefaultRateDecimal(),
		highRate:    cfg.HighRateDecimal(),
		highRateFor: highRateFor,
	}
}

// RateFor returns the commission rate applied to the given category.
func (t *RateTable) RateFor(category string) decimal.Decimal {
	if _, ok := t.highRateFor[strings.ToLower(strings.TrimSpace(category))]; ok {
		return t.highRate
	}
	return t.defaultRate
}

// CommissionKobo computes the platform cut on a product subtotal. The
// result is rounded to whole kobo, half up, so splits always reconcile
// against integer wallet math.
func (t *RateTable) CommissionKobo(category string, subtotalKobo int64) int64 {
	rate := t.RateFor(category)
	return decimal.NewFromInt(subtotalKobo).Mul(rate).Round(0).IntPart()
}
