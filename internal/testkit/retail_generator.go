package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"demandcast/domain/core"
	"demandcast/domain/series"
)

// RetailGeneratorConfig configures the synthetic daily sales generator
type RetailGeneratorConfig struct {
	StoreCount int       `json:"store_count"`
	SKUCount   int       `json:"sku_count"`
	StartDate  time.Time `json:"start_date"`
	Days       int       `json:"days"`
	// BaseDemand is the mean daily units of an average SKU before effects.
	BaseDemand float64 `json:"base_demand"`
	// TrendPerDay is the relative demand growth per day.
	TrendPerDay float64 `json:"trend_per_day"`
	// WeekendLift multiplies demand on Saturdays and Sundays.
	WeekendLift     float64 `json:"weekend_lift"`
	PromoRate       float64 `json:"promo_rate"`
	PromoLift       float64 `json:"promo_lift"`
	PromoDiscount   float64 `json:"promo_discount"`
	PriceElasticity float64 `json:"price_elasticity"`
	// RestockEvery is the replenishment cycle in days; inventory is topped up to RestockLevel.
	RestockEvery int     `json:"restock_every"`
	RestockLevel float64 `json:"restock_level"`
	// MissingRate is the share of rows whose quantity is not recorded.
	MissingRate float64 `json:"missing_rate"`
	Seed        uint64  `json:"seed"`
}

// DefaultRetailConfig returns 3 stores x 4 SKUs over 120 days starting 2024-01-01
func DefaultRetailConfig() RetailGeneratorConfig {
	return RetailGeneratorConfig{
		StoreCount:      3,
		SKUCount:        4,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:            120,
		BaseDemand:      20,
		TrendPerDay:     0.002,
		WeekendLift:     1.4,
		PromoRate:       0.08,
		PromoLift:       1.6,
		PromoDiscount:   0.2,
		PriceElasticity: 1.2,
		RestockEvery:    7,
		RestockLevel:    220,
		MissingRate:     0,
		Seed:            42,
	}
}

// RetailGenerator produces per-(store, sku) daily demand with trend, weekly seasonality,
// promotions, price response and stockouts.
type RetailGenerator struct {
	config RetailGeneratorConfig
	src    rand.Source
	rng    *rand.Rand
}

// NewRetailGenerator creates a generator; equal configs produce identical frames.
func NewRetailGenerator(config RetailGeneratorConfig) *RetailGenerator {
	src := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	return &RetailGenerator{config: config, src: src, rng: rand.New(src)}
}

// Columns are the frame columns the generator fills.
func (g *RetailGenerator) Columns() []string {
	return []string{"quantity", "price", "on_promotion", "inventory"}
}

// Generate returns the sales frame ordered by entity then date.
func (g *RetailGenerator) Generate() *series.Frame {
	frame := series.NewFrame(g.Columns()...)
	for s := 1; s <= g.config.StoreCount; s++ {
		for k := 1; k <= g.config.SKUCount; k++ {
			g.generateSeries(frame, fmt.Sprintf("store-%d", s), fmt.Sprintf("sku-%03d", k))
		}
	}
	return frame
}

func (g *RetailGenerator) generateSeries(frame *series.Frame, store, sku string) {
	c := g.config
	key := series.NewEntityKey(store, sku)
	// SKUs differ in popularity and list price.
	scale := 0.5 + g.rng.Float64()
	listPrice := math.Round((2+g.rng.Float64()*18)*100) / 100
	inventory := c.RestockLevel

	for d := 0; d < c.Days; d++ {
		date := core.AddDays(c.StartDate, d)
		if c.RestockEvery > 0 && d%c.RestockEvery == 0 {
			inventory = c.RestockLevel
		}

		promo := g.rng.Float64() < c.PromoRate
		price := listPrice
		lambda := c.BaseDemand * scale * (1 + c.TrendPerDay*float64(d))
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			lambda *= c.WeekendLift
		}
		if promo {
			price = math.Round(listPrice*(1-c.PromoDiscount)*100) / 100
			lambda *= c.PromoLift
		}
		lambda *= math.Pow(price/listPrice, -c.PriceElasticity)

		demand := distuv.Poisson{Lambda: math.Max(lambda, 1e-9), Src: g.src}.Rand()
		sold := math.Min(demand, math.Max(inventory, 0))
		inventory -= sold

		quantity := sold
		if g.rng.Float64() < c.MissingRate {
			quantity = series.Missing()
		}
		frame.AppendRow(series.Row{
			Entity: key,
			Date:   date,
			Values: map[string]float64{
				"quantity":     quantity,
				"price":        price,
				"on_promotion": boolFloat(promo),
				"inventory":    inventory,
			},
		})
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
