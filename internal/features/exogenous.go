package features

import (
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

// addExogenousFeatures derives price, promotion and inventory features from prior rows only.
func addExogenousFeatures(f *series.Frame, groups [][]int, cfg *domainfeatures.ExogenousConfig) {
	if cfg == nil {
		disabled("exogenous")
	}

	if lags := cfg.PriceLags(); len(lags) > 0 {
		price := mustColumn(f, cfg.PriceColumn())
		for _, lag := range lags {
			lag := lag
			f.SetColumn(domainfeatures.PriceLagColumn(lag), perGroup(f, groups, price, func(local, dst []float64) {
				for k := range local {
					dst[k] = pastValue(local, k, lag)
				}
			}))
		}
	}

	if cfg.PriceChangePct() {
		price := mustColumn(f, cfg.PriceColumn())
		f.SetColumn(domainfeatures.ColumnPriceChangePct, perGroup(f, groups, price, func(local, dst []float64) {
			for k := range local {
				dst[k] = pctChange(pastValue(local, k, 2), pastValue(local, k, 1))
			}
		}))
	}

	if cfg.Promotion() {
		f.SetColumn(domainfeatures.ColumnPromoLag, lagOne(f, groups, mustColumn(f, cfg.PromotionColumn())))
	}
	if cfg.Inventory() {
		f.SetColumn(domainfeatures.ColumnInventoryLag, lagOne(f, groups, mustColumn(f, cfg.InventoryColumn())))
	}
	if cfg.Stockout() {
		inventory := mustColumn(f, cfg.InventoryColumn())
		f.SetColumn(domainfeatures.ColumnStockoutLag, perGroup(f, groups, inventory, func(local, dst []float64) {
			for k := range local {
				prev := pastValue(local, k, 1)
				if series.IsMissing(prev) {
					dst[k] = prev
					continue
				}
				dst[k] = boolFloat(prev <= 0)
			}
		}))
	}
}

func lagOne(f *series.Frame, groups [][]int, src []float64) []float64 {
	return perGroup(f, groups, src, func(local, dst []float64) {
		for k := range local {
			dst[k] = pastValue(local, k, 1)
		}
	})
}

// pctChange is 100*(to-from)/from, missing when either side is missing or from is zero.
func pctChange(from, to float64) float64 {
	if series.IsMissing(from) || series.IsMissing(to) || from == 0 {
		return series.Missing()
	}
	return 100 * (to - from) / from
}
