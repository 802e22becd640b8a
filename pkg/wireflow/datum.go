package wireflow

import (
	"maps"
	"slices"
)

// Datum is a channel value that may be absent. The zero Datum is absent.
type Datum struct {
	value   any
	present bool
}

// Absent returns the "no value yet" datum.
func Absent() Datum { return Datum{} }

// Present wraps a value, including nil.
func Present(v any) Datum { return Datum{value: v, present: true} }

// IsPresent reports whether the datum holds a value.
func (d Datum) IsPresent() bool { return d.present }

// Get returns the value and whether it is present.
func (d Datum) Get() (any, bool) { return d.value, d.present }

// Value returns the value, or nil when absent.
func (d Datum) Value() any { return d.value }

func toDatum(v any) Datum {
	if d, ok := v.(Datum); ok {
		return d
	}
	return Present(v)
}

// Values maps channel labels to values.
type Values map[string]any

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
