package testkit

import (
	"math"
	"testing"
	"time"

	"demandcast/domain/series"
)

func TestRetailGenerator_Shape(t *testing.T) {
	config := DefaultRetailConfig()
	config.StoreCount = 2
	config.SKUCount = 3
	config.Days = 28

	frame := NewRetailGenerator(config).Generate()

	if frame.Len() != 2*3*28 {
		t.Fatalf("Expected %d rows, got %d", 2*3*28, frame.Len())
	}
	keys := frame.EntityKeys()
	if len(keys) != 6 {
		t.Fatalf("Expected 6 entities, got %d", len(keys))
	}
	if keys[0] != series.NewEntityKey("store-1", "sku-001") {
		t.Errorf("Unexpected first entity %q", keys[0])
	}

	dr, _ := frame.DateRange()
	if !dr.Start.Equal(config.StartDate) || dr.Days() != 28 {
		t.Errorf("Unexpected date range %s", dr)
	}

	for i := 0; i < frame.Len(); i++ {
		q := frame.Value("quantity", i)
		if q < 0 || q != math.Trunc(q) {
			t.Fatalf("Row %d: quantity %v is not a non-negative count", i, q)
		}
		if inv := frame.Value("inventory", i); inv < 0 {
			t.Fatalf("Row %d: negative inventory %v", i, inv)
		}
	}
}

func TestRetailGenerator_Deterministic(t *testing.T) {
	config := DefaultRetailConfig()
	config.Days = 30

	a := NewRetailGenerator(config).Generate()
	b := NewRetailGenerator(config).Generate()
	qa, _ := a.Column("quantity")
	qb, _ := b.Column("quantity")
	for i := range qa {
		if qa[i] != qb[i] {
			t.Fatalf("Row %d differs between runs with the same seed: %v vs %v", i, qa[i], qb[i])
		}
	}

	config.Seed = 7
	c := NewRetailGenerator(config).Generate()
	qc, _ := c.Column("quantity")
	same := true
	for i := range qa {
		if qa[i] != qc[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected a different seed to change the series")
	}
}

func TestRetailGenerator_WeekendAndPromoEffects(t *testing.T) {
	config := DefaultRetailConfig()
	config.Days = 364
	config.TrendPerDay = 0
	config.RestockLevel = 1e9 // no stockouts
	frame := NewRetailGenerator(config).Generate()

	var weekend, weekday, promo, regular []float64
	for i := 0; i < frame.Len(); i++ {
		q := frame.Value("quantity", i)
		if frame.Value("on_promotion", i) == 1 {
			promo = append(promo, q)
			continue
		}
		regular = append(regular, q)
		switch frame.Date(i).Weekday() {
		case time.Saturday, time.Sunday:
			weekend = append(weekend, q)
		default:
			weekday = append(weekday, q)
		}
	}

	if mean(weekend) <= mean(weekday)*1.2 {
		t.Errorf("Expected weekend lift: weekend %.2f, weekday %.2f", mean(weekend), mean(weekday))
	}
	if len(promo) == 0 || mean(promo) <= mean(regular) {
		t.Errorf("Expected promotions to lift demand: promo %.2f, regular %.2f", mean(promo), mean(regular))
	}
}

func TestRetailGenerator_MissingRate(t *testing.T) {
	config := DefaultRetailConfig()
	config.MissingRate = 0.25
	frame := NewRetailGenerator(config).Generate()

	missing := 0
	for i := 0; i < frame.Len(); i++ {
		if series.IsMissing(frame.Value("quantity", i)) {
			missing++
		}
	}
	rate := float64(missing) / float64(frame.Len())
	if rate < 0.18 || rate > 0.32 {
		t.Errorf("Expected about 25%% missing quantities, got %.1f%%", rate*100)
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
