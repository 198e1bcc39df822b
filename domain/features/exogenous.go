package features

import (
	"fmt"

	"demandcast/domain/core"
)

// Default exogenous input columns.
const (
	DefaultPriceColumn     = "price"
	DefaultPromotionColumn = "on_promotion"
	DefaultInventoryColumn = "inventory"
)

// Generated exogenous column names that do not depend on an offset.
const (
	ColumnPriceChangePct = "price_change_pct"
	ColumnPromoLag       = "promo_lag_1"
	ColumnInventoryLag   = "inventory_lag_1"
	ColumnStockoutLag    = "stockout_lag_1"
)

var defaultPriceLags = []int{1, 7}

// ExogenousSpec toggles features derived from price, promotion and inventory columns.
// Every feature reads prior rows only: promotion, inventory and stockout are lagged by one row.
type ExogenousSpec struct {
	PriceLags       bool   `yaml:"price_lags" json:"price_lags"`
	PriceLagOffsets []int  `yaml:"price_lag_offsets,omitempty" json:"price_lag_offsets,omitempty"`
	PriceChangePct  bool   `yaml:"price_change_pct" json:"price_change_pct"`
	Promotion       bool   `yaml:"promotion" json:"promotion"`
	Inventory       bool   `yaml:"inventory" json:"inventory"`
	Stockout        bool   `yaml:"stockout" json:"stockout"`
	PriceColumn     string `yaml:"price_column" json:"price_column" default:"price"`
	PromotionColumn string `yaml:"promotion_column" json:"promotion_column" default:"on_promotion"`
	InventoryColumn string `yaml:"inventory_column" json:"inventory_column" default:"inventory"`
}

type ExogenousConfig struct {
	spec      ExogenousSpec
	priceLags []int
}

func NewExogenousConfig(spec ExogenousSpec) (*ExogenousConfig, error) {
	cfg := &ExogenousConfig{}

	switch {
	case len(spec.PriceLagOffsets) > 0:
		lags, err := canonicalOffsets(spec.PriceLagOffsets, core.ErrNonPositiveLag)
		if err != nil {
			return nil, fmt.Errorf("exogenous config: price lags: %w", err)
		}
		cfg.priceLags = lags
	case spec.PriceLags:
		cfg.priceLags = append([]int(nil), defaultPriceLags...)
	}
	if !spec.PriceLags {
		cfg.priceLags = nil
	}

	if spec.PriceColumn == "" {
		spec.PriceColumn = DefaultPriceColumn
	}
	if spec.PromotionColumn == "" {
		spec.PromotionColumn = DefaultPromotionColumn
	}
	if spec.InventoryColumn == "" {
		spec.InventoryColumn = DefaultInventoryColumn
	}
	spec.PriceLagOffsets = nil
	cfg.spec = spec
	return cfg, nil
}

func (c *ExogenousConfig) PriceLags() []int        { return append([]int(nil), c.priceLags...) }
func (c *ExogenousConfig) PriceChangePct() bool    { return c.spec.PriceChangePct }
func (c *ExogenousConfig) Promotion() bool         { return c.spec.Promotion }
func (c *ExogenousConfig) Inventory() bool         { return c.spec.Inventory }
func (c *ExogenousConfig) Stockout() bool          { return c.spec.Stockout }
func (c *ExogenousConfig) PriceColumn() string     { return c.spec.PriceColumn }
func (c *ExogenousConfig) PromotionColumn() string { return c.spec.PromotionColumn }
func (c *ExogenousConfig) InventoryColumn() string { return c.spec.InventoryColumn }

func (c *ExogenousConfig) ColumnNames() []string {
	var names []string
	for _, l := range c.priceLags {
		names = append(names, PriceLagColumn(l))
	}
	if c.spec.PriceChangePct {
		names = append(names, ColumnPriceChangePct)
	}
	if c.spec.Promotion {
		names = append(names, ColumnPromoLag)
	}
	if c.spec.Inventory {
		names = append(names, ColumnInventoryLag)
	}
	if c.spec.Stockout {
		names = append(names, ColumnStockoutLag)
	}
	return names
}

func (c *ExogenousConfig) inputColumns() []string {
	var cols []string
	if len(c.priceLags) > 0 || c.spec.PriceChangePct {
		cols = append(cols, c.spec.PriceColumn)
	}
	if c.spec.Promotion {
		cols = append(cols, c.spec.PromotionColumn)
	}
	if c.spec.Inventory || c.spec.Stockout {
		cols = append(cols, c.spec.InventoryColumn)
	}
	return cols
}

func (c *ExogenousConfig) Hash() core.Hash { return core.MustHashCanonical(c.canonical()) }

func (c *ExogenousConfig) canonical() map[string]interface{} {
	return map[string]interface{}{
		"price_lags":       c.priceLags,
		"price_change_pct": c.spec.PriceChangePct,
		"promotion":        c.spec.Promotion,
		"inventory":        c.spec.Inventory,
		"stockout":         c.spec.Stockout,
		"price_column":     c.spec.PriceColumn,
		"promotion_column": c.spec.PromotionColumn,
		"inventory_column": c.spec.InventoryColumn,
	}
}

func PriceLagColumn(lag int) string { return fmt.Sprintf("price_lag_%d", lag) }
