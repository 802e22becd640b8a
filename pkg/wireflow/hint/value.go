package hint

import "reflect"

// Valid reports whether v conforms to h. A nil hint accepts everything.
func Valid(h *Hint, v any) bool {
	if h == nil {
		return true
	}
	switch h.kind {
	case KindUnion:
		for _, m := range h.args {
			if Valid(m, v) {
				return true
			}
		}
		return false
	case KindValue:
		return reflect.DeepEqual(h.value, v)
	case KindType:
		return validType(h.typ, v)
	}
	return validGeneric(h, v)
}

func validType(t reflect.Type, v any) bool {
	if v == nil {
		return t.Kind() == reflect.Interface
	}
	vt := reflect.TypeOf(v)
	if vt == t {
		return true
	}
	return t.Kind() == reflect.Interface && vt.Implements(t)
}

func validGeneric(h *Hint, v any) bool {
	if h.origin == OriginLiteral {
		for _, a := range h.args {
			if reflect.DeepEqual(a.value, v) {
				return true
			}
		}
		return false
	}
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if !kindMatchesOrigin(rv.Type(), h.origin) {
		return false
	}
	if len(h.args) == 0 {
		return true
	}

	switch h.origin {
	case OriginList:
		for i := 0; i < rv.Len(); i++ {
			if !Valid(h.args[0], rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case OriginTuple:
		if rv.Len() != len(h.args) {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if !Valid(h.args[i], rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case OriginSet:
		iter := rv.MapRange()
		for iter.Next() {
			if !Valid(h.args[0], iter.Key().Interface()) {
				return false
			}
		}
		return true
	case OriginDict:
		iter := rv.MapRange()
		for iter.Next() {
			if !Valid(h.args[0], iter.Key().Interface()) {
				return false
			}
			if len(h.args) > 1 && !Valid(h.args[1], iter.Value().Interface()) {
				return false
			}
		}
		return true
	case OriginCallable:
		return validSignature(rv.Type(), h.args)
	}
	return false
}

// validSignature checks a func type against callable arguments, where the
// last argument is the return hint. Only plain type arguments are compared.
func validSignature(ft reflect.Type, args []*Hint) bool {
	params := args[:len(args)-1]
	ret := args[len(args)-1]
	if ft.NumIn() != len(params) {
		return false
	}
	for i, p := range params {
		if p.kind == KindType && !assignableTo(p.typ, ft.In(i)) {
			return false
		}
	}
	if ft.NumOut() == 0 {
		return false
	}
	if ret.kind == KindType && !assignableTo(ft.Out(0), ret.typ) {
		return false
	}
	return true
}

func assignableTo(from, to reflect.Type) bool {
	return from == to || from.AssignableTo(to)
}
