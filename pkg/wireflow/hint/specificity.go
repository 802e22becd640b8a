package hint

import "reflect"

// IsAsOrMoreSpecific reports whether candidate is at least as narrow as
// reference. It gates output-to-input connections and value receivers: an
// output hinted int may feed an input hinted int | float64, but not the
// other way round.
//
// A nil reference is unconstrained and always satisfied; a nil candidate
// never satisfies a non-nil reference.
func IsAsOrMoreSpecific(candidate, reference *Hint) bool {
	if reference == nil {
		return true
	}
	if candidate == nil {
		return false
	}

	if candidate.kind == KindUnion || reference.kind == KindUnion {
		refs := reference.Members()
		for _, c := range candidate.Members() {
			if !specificToAny(c, refs) {
				return false
			}
		}
		return true
	}

	cParam := candidate.parameterized()
	rParam := reference.parameterized()
	switch {
	case !cParam && !rParam:
		return isSubclass(candidate, reference)
	case cParam && !rParam:
		// Parameterizing an otherwise bare origin narrows it.
		return reference.kind == KindGeneric && reference.origin == candidate.origin
	case cParam && rParam && candidate.origin == reference.origin:
		return argsSpecific(candidate.origin, candidate.args, reference.args)
	}
	return false
}

// parameterized reports whether the hint has an origin with arguments.
// Bare origins behave like plain classes.
func (h *Hint) parameterized() bool {
	return h.kind == KindGeneric && len(h.args) > 0
}

func specificToAny(candidate *Hint, references []*Hint) bool {
	for _, r := range references {
		if IsAsOrMoreSpecific(candidate, r) {
			return true
		}
	}
	return false
}

func argsSpecific(origin Origin, cArgs, rArgs []*Hint) bool {
	if len(cArgs) == 0 && len(rArgs) > 0 {
		return false
	}
	if origin.orderSensitive() {
		if len(rArgs) == 0 {
			return true
		}
		if len(rArgs) != len(cArgs) {
			return false
		}
		for i := range rArgs {
			if !IsAsOrMoreSpecific(cArgs[i], rArgs[i]) {
				return false
			}
		}
		return true
	}
	for _, c := range cArgs {
		if !specificToAny(c, rArgs) {
			return false
		}
	}
	return true
}

// isSubclass compares two unparameterized hints.
func isSubclass(candidate, reference *Hint) bool {
	if reference.kind == KindType && reference.typ.Kind() == reflect.Interface {
		if reference.typ.NumMethod() == 0 {
			return true
		}
		if candidate.kind == KindType {
			return candidate.typ == reference.typ || candidate.typ.Implements(reference.typ)
		}
		return false
	}
	switch {
	case candidate.kind == KindType && reference.kind == KindType:
		return candidate.typ == reference.typ
	case candidate.kind == KindGeneric && reference.kind == KindGeneric:
		return candidate.origin == reference.origin
	case candidate.kind == KindType && reference.kind == KindGeneric:
		return kindMatchesOrigin(candidate.typ, reference.origin)
	case candidate.kind == KindValue && reference.kind == KindValue:
		return reflect.DeepEqual(candidate.value, reference.value)
	}
	return false
}

// kindMatchesOrigin reports whether a Go type is an instance of a bare
// container origin, e.g. []int is a list.
func kindMatchesOrigin(t reflect.Type, o Origin) bool {
	switch o {
	case OriginList, OriginTuple:
		return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
	case OriginDict:
		return t.Kind() == reflect.Map
	case OriginSet:
		return t.Kind() == reflect.Map && t.Elem().Size() == 0
	case OriginCallable:
		return t.Kind() == reflect.Func
	}
	return false
}
