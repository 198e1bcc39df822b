package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

func TestPastWindow(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	tests := []struct {
		name            string
		i, offset, size int
		expected        []float64
	}{
		{"single lag", 3, 1, 1, []float64{3}},
		{"full window", 5, 1, 3, []float64{3, 4, 5}},
		{"clipped at start", 2, 1, 7, []float64{1, 2}},
		{"before start", 1, 2, 1, nil},
		{"first row", 0, 1, 3, nil},
		{"expanding", 4, 1, 4, []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pastWindow(values, tt.i, tt.offset, tt.size)
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPastWindow_NeverReachesCurrentRow(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	for i := range values {
		for offset := 1; offset <= 3; offset++ {
			for size := 1; size <= 12; size++ {
				for _, v := range pastWindow(values, i, offset, size) {
					if v >= float64(i) {
						t.Errorf("pastWindow(i=%d, offset=%d, size=%d) returned position %v", i, offset, size, v)
					}
				}
			}
		}
	}
}

func TestPastWindow_PanicsOnZeroOffset(t *testing.T) {
	assert.Panics(t, func() { pastWindow([]float64{1, 2}, 1, 0, 1) })
}

func TestPartitionByEntity(t *testing.T) {
	f := series.NewFrame("quantity")
	for _, e := range []string{"a", "a", "b", "c", "c", "c"} {
		f.AppendRow(series.Row{Entity: series.NewEntityKey(e), Date: day0})
	}
	assert.Equal(t, [][]int{{0, 1}, {2}, {3, 4, 5}}, partitionByEntity(f))
	assert.Empty(t, partitionByEntity(series.NewFrame()))
}

func TestFamilies_PanicWhenDisabled(t *testing.T) {
	f := series.NewFrame("quantity")
	tests := map[string]func(){
		"lag":       func() { addLagFeatures(f, nil, nil) },
		"rolling":   func() { addRollingFeatures(f, nil, nil) },
		"calendar":  func() { addCalendarFeatures(f, nil) },
		"exogenous": func() { addExogenousFeatures(f, nil, nil) },
	}
	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok {
					t.Fatalf("expected panic with error, got %v", r)
				}
				assert.ErrorIs(t, err, core.ErrFamilyDisabled)
			}()
			call()
		})
	}
}

func TestFeatureColumns_Order(t *testing.T) {
	cfg, err := domainfeatures.FeatureSpec{
		Exogenous: &domainfeatures.ExogenousSpec{Promotion: true},
		Calendar:  &domainfeatures.CalendarSpec{Year: true},
		Rolling:   &domainfeatures.RollingSpec{Windows: []int{7}},
		Lag:       &domainfeatures.LagSpec{Lags: []int{1}},
	}.Build()
	assert.NoError(t, err)
	assert.Equal(t, []string{"lag_1", "rolling_mean_7", "year", "promo_lag_1"}, FeatureColumns(cfg))
}
