package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func sameMap(a, b Variables) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestMergeVariables_UnchangedReturnsPrev(t *testing.T) {
	list := []string{"a"}
	prev := Variables{"first": 3, "names": list}
	require.True(t, sameMap(prev, MergeVariables(prev, Variables{"first": 3})))
	require.True(t, sameMap(prev, MergeVariables(prev, Variables{"names": list})))
	require.True(t, sameMap(prev, MergeVariables(prev, nil)))
}

func TestMergeVariables_Changed(t *testing.T) {
	prev := Variables{"first": 3, "after": "c1"}
	next := MergeVariables(prev, Variables{"first": 5})
	require.False(t, sameMap(prev, next))
	require.Equal(t, Variables{"first": 5, "after": "c1"}, next)
	require.Equal(t, Variables{"first": 3, "after": "c1"}, prev)

	next = MergeVariables(prev, Variables{"orderBy": nil})
	require.Equal(t, Variables{"first": 3, "after": "c1", "orderBy": nil}, next)
}

func TestMergeVariables_ReferenceValues(t *testing.T) {
	prev := Variables{"names": []string{"a"}}
	next := MergeVariables(prev, Variables{"names": []string{"a"}})
	require.False(t, sameMap(prev, next), "equal but distinct slices are a change")
}

func TestShallowEqual(t *testing.T) {
	m := map[string]any{"k": 1}
	cases := []struct {
		name string
		a, b Variables
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil and empty", nil, Variables{}, true},
		{"scalars", Variables{"a": 1, "b": "x"}, Variables{"a": 1, "b": "x"}, true},
		{"different scalar", Variables{"a": 1}, Variables{"a": 2}, false},
		{"different types", Variables{"a": 1}, Variables{"a": int64(1)}, false},
		{"missing key", Variables{"a": 1}, Variables{"b": 1}, false},
		{"nil value", Variables{"a": nil}, Variables{"a": nil}, true},
		{"same map", Variables{"a": m}, Variables{"a": m}, true},
		{"distinct maps", Variables{"a": map[string]any{"k": 1}}, Variables{"a": map[string]any{"k": 1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShallowEqual(tc.a, tc.b))
		})
	}
}
