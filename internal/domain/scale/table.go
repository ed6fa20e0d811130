// Package scale holds the international rating-scale registry and the
// converter that maps local ratings onto it.
package scale

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Scale is a named linear conversion: target = local * Factor.
type Scale struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// DefaultScales is the registry used when configuration supplies none.
func DefaultScales() map[string]float64 {
	return map[string]float64{
		"local":  1.0,
		"france": 0.9,
		"bha":    1.0,
		"era":    1.05,
		"ifha":   1.1,
	}
}

// Table is an immutable registry of conversion scales. It is safe for
// concurrent use.
type Table struct {
	factors map[string]float64
	sorted  []Scale
}

// NewTable validates scales and builds a registry. Names are matched
// case-insensitively; factors must be finite and positive.
func NewTable(scales map[string]float64) (*Table, error) {
	if len(scales) == 0 {
		return nil, fmt.Errorf("%w: no scales configured", ErrInvalidScale)
	}
	t := &Table{factors: make(map[string]float64, len(scales))}
	for name, factor := range scales {
		key := normalize(name)
		if key == "" {
			return nil, fmt.Errorf("%w: empty scale name", ErrInvalidScale)
		}
		if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return nil, fmt.Errorf("%w: %s factor %v must be positive", ErrInvalidScale, key, factor)
		}
		if _, dup := t.factors[key]; dup {
			return nil, fmt.Errorf("%w: %s declared twice", ErrInvalidScale, key)
		}
		t.factors[key] = factor
		t.sorted = append(t.sorted, Scale{Name: key, Factor: factor})
	}
	sort.Slice(t.sorted, func(i, j int) bool { return t.sorted[i].Name < t.sorted[j].Name })
	return t, nil
}

// MustTable is NewTable that panics; intended for package-level defaults.
func MustTable(scales map[string]float64) *Table {
	t, err := NewTable(scales)
	if err != nil {
		panic(err)
	}
	return t
}

// Factor returns the factor registered for name.
func (t *Table) Factor(name string) (float64, error) {
	f, ok := t.factors[normalize(name)]
	if !ok {
		return 0, &UnknownScaleError{Scale: name}
	}
	return f, nil
}

// Scales lists the registry ordered by name.
func (t *Table) Scales() []Scale {
	out := make([]Scale, len(t.sorted))
	copy(out, t.sorted)
	return out
}

// Len returns the number of registered scales.
func (t *Table) Len() int {
	return len(t.sorted)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
