// Package hint describes the runtime type hints carried by data channels.
//
// A Hint is a small tagged variant: a Go type, a union of hints, a
// parameterized container (an origin plus arguments), or a literal value.
// Hints are compared with IsAsOrMoreSpecific to decide whether an output may
// feed an input, and checked against values with Valid.
package hint

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind identifies the variant held by a Hint.
type Kind int

const (
	// KindType is a concrete or interface Go type.
	KindType Kind = iota
	// KindUnion is a union of member hints.
	KindUnion
	// KindGeneric is an origin with optional arguments.
	KindGeneric
	// KindValue is a literal value, used as a Literal argument.
	KindValue
)

// Origin names a parameterizable container type.
type Origin string

// Supported origins.
const (
	OriginList     Origin = "list"
	OriginSet      Origin = "set"
	OriginDict     Origin = "dict"
	OriginTuple    Origin = "tuple"
	OriginCallable Origin = "callable"
	OriginLiteral  Origin = "literal"
)

// orderSensitive reports whether the arguments of an origin are positional.
func (o Origin) orderSensitive() bool {
	switch o {
	case OriginDict, OriginTuple, OriginCallable:
		return true
	}
	return false
}

// Hint is an immutable runtime type descriptor.
// A nil *Hint means "no hint".
type Hint struct {
	kind   Kind
	typ    reflect.Type
	origin Origin
	args   []*Hint
	value  any
}

// Of returns a hint for the Go type T.
func Of[T any]() *Hint {
	return &Hint{kind: KindType, typ: reflect.TypeFor[T]()}
}

// TypeOf returns a hint for an existing reflect.Type.
func TypeOf(t reflect.Type) *Hint {
	if t == nil {
		return nil
	}
	return &Hint{kind: KindType, typ: t}
}

// Any is the hint satisfied by every value.
func Any() *Hint {
	return Of[any]()
}

// Union combines hints. Nested unions are flattened and a single member
// collapses to that member.
func Union(members ...*Hint) *Hint {
	flat := make([]*Hint, 0, len(members))
	for _, m := range members {
		if m == nil {
			continue
		}
		if m.kind == KindUnion {
			flat = append(flat, m.args...)
			continue
		}
		flat = append(flat, m)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &Hint{kind: KindUnion, args: flat}
}

// Bare returns an unparameterized origin, such as a plain list.
func Bare(o Origin) *Hint {
	return &Hint{kind: KindGeneric, origin: o}
}

// ListOf returns list[elem].
func ListOf(elem *Hint) *Hint {
	return generic(OriginList, elem)
}

// SetOf returns set[elem].
func SetOf(elem *Hint) *Hint {
	return generic(OriginSet, elem)
}

// DictOf returns dict[key, value].
func DictOf(key, value *Hint) *Hint {
	return generic(OriginDict, key, value)
}

// TupleOf returns tuple[elems...].
func TupleOf(elems ...*Hint) *Hint {
	return generic(OriginTuple, elems...)
}

// CallableOf returns a callable signature hint. The parameters come first
// and the return hint last.
func CallableOf(params []*Hint, ret *Hint) *Hint {
	args := make([]*Hint, 0, len(params)+1)
	args = append(args, params...)
	args = append(args, ret)
	return generic(OriginCallable, args...)
}

// LiteralOf returns a hint satisfied only by the given values.
func LiteralOf(values ...any) *Hint {
	args := make([]*Hint, len(values))
	for i, v := range values {
		args[i] = &Hint{kind: KindValue, value: v}
	}
	return &Hint{kind: KindGeneric, origin: OriginLiteral, args: args}
}

func generic(o Origin, args ...*Hint) *Hint {
	for _, a := range args {
		if a == nil {
			panic(fmt.Sprintf("hint: nil argument to %s", o))
		}
	}
	return &Hint{kind: KindGeneric, origin: o, args: args}
}

// Kind returns the variant.
func (h *Hint) Kind() Kind { return h.kind }

// Origin returns the container origin of a generic hint, or "".
func (h *Hint) Origin() Origin { return h.origin }

// Args returns the arguments of a generic hint.
func (h *Hint) Args() []*Hint {
	if h.kind != KindGeneric {
		return nil
	}
	return append([]*Hint(nil), h.args...)
}

// Members returns the members of a union, or the hint itself otherwise.
func (h *Hint) Members() []*Hint {
	if h.kind == KindUnion {
		return append([]*Hint(nil), h.args...)
	}
	return []*Hint{h}
}

// GoType returns the Go type a value of this hint decodes into, when one
// can be derived.
func (h *Hint) GoType() (reflect.Type, bool) {
	if h == nil {
		return nil, false
	}
	switch h.kind {
	case KindType:
		return h.typ, true
	case KindGeneric:
		switch h.origin {
		case OriginList:
			elem := reflect.TypeFor[any]()
			if len(h.args) == 1 {
				if t, ok := h.args[0].GoType(); ok {
					elem = t
				}
			}
			return reflect.SliceOf(elem), true
		case OriginTuple:
			return reflect.TypeFor[[]any](), true
		case OriginDict:
			if len(h.args) == 2 {
				k, kok := h.args[0].GoType()
				v, vok := h.args[1].GoType()
				if kok && vok && k.Comparable() {
					return reflect.MapOf(k, v), true
				}
			}
			return reflect.TypeFor[map[string]any](), true
		case OriginSet:
			if len(h.args) == 1 {
				if k, ok := h.args[0].GoType(); ok && k.Comparable() {
					return reflect.MapOf(k, reflect.TypeFor[struct{}]()), true
				}
			}
		}
	}
	return nil, false
}

// String renders the hint in a compact, readable form.
func (h *Hint) String() string {
	if h == nil {
		return ""
	}
	switch h.kind {
	case KindType:
		if h.typ.Kind() == reflect.Interface && h.typ.NumMethod() == 0 {
			return "any"
		}
		return h.typ.String()
	case KindUnion:
		parts := make([]string, len(h.args))
		for i, m := range h.args {
			parts[i] = m.String()
		}
		return strings.Join(parts, " | ")
	case KindValue:
		if s, ok := h.value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", h.value)
	}
	if len(h.args) == 0 {
		return string(h.origin)
	}
	parts := make([]string, len(h.args))
	for i, a := range h.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s[%s]", h.origin, strings.Join(parts, ", "))
}
