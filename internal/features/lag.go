package features

import (
	"fmt"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

func disabled(family string) {
	panic(fmt.Errorf("%w: %s", core.ErrFamilyDisabled, family))
}

// addLagFeatures writes lag_L = target at L positions earlier in the same entity.
func addLagFeatures(f *series.Frame, groups [][]int, cfg *domainfeatures.LagConfig) {
	if cfg == nil {
		disabled("lag")
	}
	target := mustColumn(f, cfg.TargetColumn())
	fill, hasFill := cfg.FillValue()

	for _, lag := range cfg.Lags() {
		lag := lag
		col := perGroup(f, groups, target, func(local, dst []float64) {
			for k := range local {
				v := pastValue(local, k, lag)
				if hasFill && series.IsMissing(v) {
					v = fill
				}
				dst[k] = v
			}
		})
		f.SetColumn(domainfeatures.LagColumn(lag), col)
	}
}
