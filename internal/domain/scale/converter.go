package scale

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	convertPlaces = 1
	invertPlaces  = 2
)

// Value is a rating expressed on one scale.
type Value struct {
	Scale string  `json:"scale"`
	Value float64 `json:"value"`
}

// Converter maps local ratings to registered scales. It holds no mutable
// state.
type Converter struct {
	table *Table
}

// NewConverter creates a converter over table.
func NewConverter(table *Table) *Converter {
	return &Converter{table: table}
}

// Convert returns rating*factor(scaleName) rounded half away from zero to one
// decimal place.
func (c *Converter) Convert(rating float64, scaleName string) (float64, error) {
	factor, err := c.table.Factor(scaleName)
	if err != nil {
		return 0, err
	}
	return convert(rating, factor), nil
}

// Invert maps a value on scaleName back to the local scale, rounded to two
// decimal places.
func (c *Converter) Invert(value float64, scaleName string) (float64, error) {
	factor, err := c.table.Factor(scaleName)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value / factor, nil
	}
	out, _ := decimal.NewFromFloat(value).
		DivRound(decimal.NewFromFloat(factor), invertPlaces+4).
		Round(invertPlaces).
		Float64()
	return out, nil
}

// ConvertAll converts rating to every registered scale, ordered by scale name.
func (c *Converter) ConvertAll(rating float64) []Value {
	scales := c.table.Scales()
	out := make([]Value, len(scales))
	for i, s := range scales {
		out[i] = Value{Scale: s.Name, Value: convert(rating, s.Factor)}
	}
	return out
}

// Table exposes the underlying registry.
func (c *Converter) Table() *Table {
	return c.table
}

func convert(rating, factor float64) float64 {
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return rating * factor
	}
	out, _ := decimal.NewFromFloat(rating).
		Mul(decimal.NewFromFloat(factor)).
		Round(convertPlaces).
		Float64()
	return out
}
