package backtest

import (
	"fmt"
	"time"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

// auditFold verifies the temporal separation of one fold after its inputs are assembled and
// before the model sees them. featuresExpected is true when a feature config was supplied.
func auditFold(index, gap int, fold backtest.Fold, train *series.Frame, feats *domainfeatures.Result, featuresExpected bool) error {
	if !fold.TrainEnd.Before(fold.TestStart) {
		return core.NewLeakageError(index, fmt.Sprintf("train end %s is not before test start %s",
			core.FormatDate(fold.TrainEnd), core.FormatDate(fold.TestStart)))
	}
	if between := core.DaysBetween(fold.TrainEnd, fold.TestStart) - 1; between < gap {
		return core.NewLeakageError(index, fmt.Sprintf("%d days between train and test, gap requires %d", between, gap))
	}

	if dr, ok := train.DateRange(); ok {
		if !dr.End.Before(fold.GapStart()) {
			return core.NewLeakageError(index, fmt.Sprintf("training row dated %s reaches the gap/test window starting %s",
				core.FormatDate(dr.End), core.FormatDate(fold.GapStart())))
		}
	}

	if !featuresExpected {
		return nil
	}
	if feats == nil || feats.Cutoff == nil {
		return core.NewLeakageError(index, "feature engine ran without a cutoff")
	}
	if !feats.Cutoff.Equal(fold.TrainEnd) {
		return core.NewLeakageError(index, fmt.Sprintf("feature cutoff %s differs from train end %s",
			core.FormatDate(*feats.Cutoff), core.FormatDate(fold.TrainEnd)))
	}
	if last, ok := feats.MaxDate(); ok && last.After(fold.TrainEnd) {
		return core.NewLeakageError(index, fmt.Sprintf("feature row dated %s after train end %s",
			core.FormatDate(last), core.FormatDate(fold.TrainEnd)))
	}
	return nil
}

// cutoffOf copies the cutoff recorded by the engine.
func cutoffOf(feats *domainfeatures.Result) *time.Time {
	if feats == nil || feats.Cutoff == nil {
		return nil
	}
	c := *feats.Cutoff
	return &c
}
