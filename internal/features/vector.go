package features

import (
	"fmt"
	"math"
)

// Vector is a canonical feature map. Every catalog name always has a value;
// categorical features hold their category code.
type Vector struct {
	values map[string]float64
}

// Defaults returns a vector populated with every catalog default.
func Defaults() Vector {
	values := make(map[string]float64, len(catalog))
	for _, f := range catalog {
		values[f.Name] = f.Default
	}
	return Vector{values: values}
}

// FromValues builds a vector from already-typed values. Missing names get
// their defaults; names outside the catalog are rejected.
func FromValues(values map[string]float64) (Vector, error) {
	v := Defaults()
	for name, value := range values {
		if !IsCanonical(name) {
			return Vector{}, fmt.Errorf("unknown feature %q", name)
		}
		v.values[name] = value
	}
	return v, nil
}

// Get returns the value for name.
func (v Vector) Get(name string) (float64, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Category resolves a categorical feature back to its category name.
func (v Vector) Category(name string) string {
	f, ok := Lookup(name)
	if !ok || f.Kind != KindCategorical {
		return ""
	}
	code := v.values[name]
	if math.IsNaN(code) || code < 0 || code >= float64(len(f.Categories)) {
		return f.DefaultCategory()
	}
	return f.Categories[int(code)]
}

// Stage returns the funding stage encoded in the vector.
func (v Vector) Stage() string {
	return v.Category(FundingStage)
}

// Values returns the values for names in the given order.
func (v Vector) Values(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		value, ok := v.values[name]
		if !ok {
			return nil, fmt.Errorf("feature %q missing from vector", name)
		}
		out[i] = value
	}
	return out, nil
}

// Map returns a copy of the underlying values.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.values))
	for k, value := range v.values {
		out[k] = value
	}
	return out
}

// Len is the number of populated features.
func (v Vector) Len() int { return len(v.values) }
