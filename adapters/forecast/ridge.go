package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/features"
	"demandcast/ports"
)

// Ridge is an L2-regularized linear regression over engine features.
//
// Forecasts are recursive: each future day gets features computed over the entity's actual
// history plus the predictions already made, and exogenous inputs are carried forward from the
// last training row. Days the features cannot cover fall back to the last observed value.
type Ridge struct {
	alpha  float64
	engine *features.Engine

	cfg     *domainfeatures.FeatureConfig
	target  string
	columns []string
	coef    []float64 // intercept first
	history map[series.EntityKey]*series.Frame
	naive   map[series.EntityKey]*entityHistory
}

func NewRidge(alpha float64, engine *features.Engine) (*Ridge, error) {
	if alpha < 0 {
		return nil, fmt.Errorf("%w: alpha cannot be negative, got %v", core.ErrInvalidModelParams, alpha)
	}
	return &Ridge{alpha: alpha, engine: engine}, nil
}

func (m *Ridge) Name() string { return ModelRidge }

func (m *Ridge) Fit(_ context.Context, in ports.FitInput) error {
	if in.Features == nil || in.FeatureConfig == nil {
		return fmt.Errorf("%w: ridge needs a feature config", core.ErrInvalidConfig)
	}
	m.cfg = in.FeatureConfig
	m.target = in.TargetColumn
	m.columns = append([]string(nil), in.Features.FeatureColumns...)
	m.history = splitFrames(in.History)
	m.naive = splitHistory(in.History, in.TargetColumn)

	x, y := m.design(in.Features.Frame)
	if len(y) == 0 {
		return fmt.Errorf("%w: no training row has every feature defined", core.ErrInsufficientData)
	}
	coef, err := solveRidge(x, y, len(m.columns)+1, m.alpha)
	if err != nil {
		return err
	}
	m.coef = coef
	return nil
}

// design collects the rows whose features and target are all present.
func (m *Ridge) design(f *series.Frame) (x, y []float64) {
	for i := 0; i < f.Len(); i++ {
		row, ok := m.row(f, i)
		if !ok {
			continue
		}
		target := f.Value(m.target, i)
		if series.IsMissing(target) {
			continue
		}
		x = append(x, row...)
		y = append(y, target)
	}
	return x, y
}

func (m *Ridge) row(f *series.Frame, i int) ([]float64, bool) {
	row := make([]float64, 0, len(m.columns)+1)
	row = append(row, 1)
	for _, c := range m.columns {
		v := f.Value(c, i)
		if series.IsMissing(v) {
			return nil, false
		}
		row = append(row, v)
	}
	return row, true
}

// solveRidge solves (XᵀX + αI)β = Xᵀy, leaving the intercept unpenalized.
func solveRidge(xData, yData []float64, p int, alpha float64) ([]float64, error) {
	n := len(yData)
	x := mat.NewDense(n, p, xData)
	y := mat.NewVecDense(n, yData)

	var a mat.Dense
	a.Mul(x.T(), x)
	for j := 1; j < p; j++ {
		a.Set(j, j, a.At(j, j)+alpha)
	}
	var b mat.VecDense
	b.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		// An ill-conditioned system still yields a solution; only a singular one is fatal.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("ridge: solve normal equations: %w", err)
		}
	}
	return append([]float64(nil), beta.RawVector().Data...), nil
}

func (m *Ridge) Predict(_ context.Context, in ports.PredictInput) ([]float64, error) {
	out := missingSlice(len(in.Dates))
	hist, ok := m.history[in.Entity]
	if !ok || hist.Len() == 0 {
		return out, nil
	}
	fallback := series.Missing()
	if h := m.naive[in.Entity]; h != nil {
		fallback = h.lastObserved()
	}

	want := make(map[time.Time]int, len(in.Dates))
	var horizon time.Time
	for i, d := range in.Dates {
		d = core.TruncateDay(d)
		want[d] = i
		if d.After(horizon) {
			horizon = d
		}
	}

	work := hist.Clone()
	lastRow := work.Len() - 1
	for d := core.AddDays(work.Date(lastRow), 1); !d.After(horizon); d = core.AddDays(d, 1) {
		values := make(map[string]float64)
		for _, c := range work.ColumnNames() {
			values[c] = work.Value(c, lastRow)
		}
		values[m.target] = series.Missing()
		work.AppendRow(series.Row{Entity: in.Entity, Date: d, Values: values})

		pred := fallback
		if res, err := m.engine.Compute(work, m.cfg, nil); err == nil && res.Frame.Len() > 0 {
			last := res.Frame.Len() - 1
			if res.Frame.Date(last).Equal(d) {
				if row, ok := m.row(res.Frame, last); ok {
					pred = dot(m.coef, row)
				}
			}
		}
		work = withValue(work, m.target, work.Len()-1, pred)
		if i, ok := want[d]; ok {
			out[i] = pred
		}
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// withValue returns f with one cell replaced.
func withValue(f *series.Frame, column string, i int, v float64) *series.Frame {
	col, _ := f.Column(column)
	updated := append([]float64(nil), col...)
	updated[i] = v
	f.SetColumn(column, updated)
	return f
}

// splitFrames copies each entity's rows into its own frame, ordered by date.
func splitFrames(f *series.Frame) map[series.EntityKey]*series.Frame {
	idx := make(map[series.EntityKey][]int)
	for i := 0; i < f.Len(); i++ {
		idx[f.Entity(i)] = append(idx[f.Entity(i)], i)
	}
	out := make(map[series.EntityKey]*series.Frame, len(idx))
	for e, rows := range idx {
		sort.SliceStable(rows, func(a, b int) bool { return f.Date(rows[a]).Before(f.Date(rows[b])) })
		out[e] = f.Take(rows)
	}
	return out
}
