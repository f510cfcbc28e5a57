package container

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	record "github.com/hanpama/genrelay/internal/record"
)

// BuildPointersFromInput derives a fragment pointer for every fragment of
// spec from the record data a parent supplied. A fragment with no usable
// input gets a nil pointer.
func BuildPointersFromInput(
	containerName string,
	input map[string]any,
	route *Route,
	variables Variables,
	spec *Spec,
	logger *slog.Logger,
) (map[string]*record.FragmentPointer, error) {
	pointers := make(map[string]*record.FragmentPointer, len(spec.Fragments))
	hashes := make(map[string]string, len(spec.Fragments))
	for _, name := range spec.fragmentNames() {
		fragment, err := spec.buildFragment(containerName, name, variables, route)
		if err != nil {
			return nil, err
		}
		hash := fragment.ConcreteHash()
		hashes[name] = hash

		value, present := input[name]
		if !present {
			logger.Warn("container: expected fragment input to be supplied by the parent, pass an explicit nil if this is intentional",
				"container", containerName, "fragment", name)
		}
		if value == nil {
			pointers[name] = nil
			continue
		}

		items, isList := asList(value)
		if fragment.Plural {
			if !isList {
				return nil, fmt.Errorf("%w: %s.%s is plural and expects a list of records, got %T", ErrInvariant, containerName, name, value)
			}
			if len(items) == 0 {
				pointers[name] = nil
				continue
			}
			var ids []string
			for i, item := range items {
				p := taggedPointer(item, hash)
				if p == nil {
					return nil, fmt.Errorf("%w: %s.%s expects the element at index %d to have query data", ErrInvariant, containerName, name, i)
				}
				ids = append(ids, p.DataIDs()...)
			}
			pointer, err := record.NewPluralFragmentPointer(ids, fragment)
			if err != nil {
				return nil, err
			}
			pointers[name] = pointer
			continue
		}

		if isList {
			return nil, fmt.Errorf("%w: %s.%s is not plural and cannot receive a list of records", ErrInvariant, containerName, name)
		}
		p := taggedPointer(value, hash)
		if p == nil || p.IsPlural() {
			pointers[name] = nil
			continue
		}
		pointer, err := record.NewFragmentPointer(p.DataID(), fragment)
		if err != nil {
			return nil, err
		}
		pointers[name] = pointer
	}

	warnMisplacedInput(containerName, input, pointers, hashes, logger)
	return pointers, nil
}

// warnMisplacedInput warns when record data tagged for one fragment was
// supplied under another fragment's key.
func warnMisplacedInput(
	containerName string,
	input map[string]any,
	pointers map[string]*record.FragmentPointer,
	hashes map[string]string,
	logger *slog.Logger,
) {
	propNames := sortedKeys(input)

	for _, name := range sortedKeys(hashes) {
		hash := hashes[name]
		if pointers[name] != nil {
			continue
		}
		for _, propName := range propNames {
			if pointers[propName] != nil || propName == name {
				continue
			}
			if record.HasPointer(input[propName], hash) {
				logger.Warn("container: record data for a fragment was supplied under another key",
					"container", containerName, "fragment", name, "key", propName)
			}
		}
	}
}

// BuildQuerySetFromStore builds, for every fragment with resolved data, the
// refetch queries for its records under variables, plus the pointers those
// queries will answer.
func BuildQuerySetFromStore(
	containerName string,
	store Store,
	variables Variables,
	route *Route,
	spec *Spec,
	currentData map[string]any,
) (QuerySet, map[string]*record.FragmentPointer, error) {
	querySet := make(QuerySet)
	pointers := make(map[string]*record.FragmentPointer)
	for _, name := range spec.fragmentNames() {
		fragment, err := spec.buildFragment(containerName, name, variables, route)
		if err != nil {
			return nil, nil, err
		}
		data := currentData[name]
		if data == nil {
			continue
		}

		if fragment.Plural {
			items, ok := asList(data)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s.%s is plural and expects a list of records, got %T", ErrInvariant, containerName, name, data)
			}
			ids := make([]string, 0, len(items))
			for i, item := range items {
				id, ok := record.GetDataID(item)
				if !ok {
					continue
				}
				ids = append(ids, id)
				querySet[name+strconv.Itoa(i)] = store.BuildFragmentQueryForDataID(fragment, id)
			}
			if len(ids) == 0 {
				continue
			}
			pointer, err := record.NewPluralFragmentPointer(ids, fragment)
			if err != nil {
				return nil, nil, err
			}
			pointers[name] = pointer
			continue
		}

		id, ok := record.GetDataID(data)
		if !ok {
			continue
		}
		pointer, err := record.NewFragmentPointer(id, fragment)
		if err != nil {
			return nil, nil, err
		}
		pointers[name] = pointer
		querySet[name] = store.BuildFragmentQueryForDataID(fragment, id)
	}
	return querySet, pointers, nil
}

func taggedPointer(v any, hash string) *record.FragmentPointer {
	r, ok := v.(*record.Record)
	if !ok || r == nil {
		return nil
	}
	return r.Pointers[hash]
}

// asList returns the elements of a list-shaped value.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []*record.Record:
		items := make([]any, len(l))
		for i, r := range l {
			items[i] = r
		}
		return items, true
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
