package container

import "reflect"

// Variables are the named values a container's fragments are built with.
type Variables map[string]any

// MergeVariables overlays partial onto prev. When every key of partial is
// already present in prev with a shallowly equal value, prev itself is
// returned so callers can detect "nothing changed" by identity.
func MergeVariables(prev, partial Variables) Variables {
	changed := false
	for k, v := range partial {
		old, ok := prev[k]
		if !ok || !sameValue(old, v) {
			changed = true
			break
		}
	}
	if !changed {
		return prev
	}
	next := make(Variables, len(prev)+len(partial))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range partial {
		next[k] = v
	}
	return next
}

// ShallowEqual reports whether a and b hold the same keys with shallowly
// equal values.
func ShallowEqual(a, b Variables) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !sameValue(av, bv) {
			return false
		}
	}
	return true
}

// sameValue compares comparable values by value and reference kinds by
// identity.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Comparable() {
		return false
	}
	return a == b
}
