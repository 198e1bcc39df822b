package features

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

// addRollingFeatures writes rolling_<agg>_W over the W positions strictly before each row.
func addRollingFeatures(f *series.Frame, groups [][]int, cfg *domainfeatures.RollingConfig) {
	if cfg == nil {
		disabled("rolling")
	}
	target := mustColumn(f, cfg.TargetColumn())
	aggs := cfg.Aggregations()

	for _, w := range cfg.Windows() {
		minPeriods := cfg.MinPeriods(w)
		cols := make(map[domainfeatures.Aggregation][]float64, len(aggs))
		for _, a := range aggs {
			cols[a] = make([]float64, f.Len())
		}

		for _, g := range groups {
			local := gather(target, g)
			for k, i := range g {
				obs := nonMissing(pastWindow(local, k, 1, w))
				for _, a := range aggs {
					cols[a][i] = aggregate(a, obs, minPeriods)
				}
			}
		}

		for _, a := range aggs {
			f.SetColumn(domainfeatures.RollingColumn(a, w), cols[a])
		}
	}
}

// aggregate reduces the observed values, missing when fewer than minPeriods are present.
func aggregate(a domainfeatures.Aggregation, obs []float64, minPeriods int) float64 {
	if len(obs) == 0 || len(obs) < minPeriods {
		return series.Missing()
	}
	switch a {
	case domainfeatures.AggMean:
		return stat.Mean(obs, nil)
	case domainfeatures.AggStd:
		if len(obs) < 2 {
			return series.Missing()
		}
		return stat.StdDev(obs, nil)
	case domainfeatures.AggMin:
		return floats.Min(obs)
	case domainfeatures.AggMax:
		return floats.Max(obs)
	case domainfeatures.AggSum:
		return floats.Sum(obs)
	}
	panic("features: unknown aggregation " + string(a))
}
