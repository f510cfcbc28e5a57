package record

import (
	"testing"

	query "github.com/hanpama/genrelay/internal/query"
	"github.com/stretchr/testify/require"
)

var (
	shipFragment    = &query.Fragment{Name: "Ship", Type: "Ship", Children: []query.Node{&query.Field{SchemaName: "name"}}}
	factionFragment = &query.Fragment{Name: "Factions", Type: "Faction", Plural: true, Children: []query.Node{&query.Field{SchemaName: "name"}}}
)

func TestFragmentPointerShape(t *testing.T) {
	p, err := NewFragmentPointer("s1", shipFragment)
	require.NoError(t, err)
	require.False(t, p.IsPlural())
	require.Equal(t, "s1", p.DataID())
	require.Equal(t, []string{"s1"}, p.DataIDs())

	_, err = NewFragmentPointer("f1", factionFragment)
	require.ErrorIs(t, err, ErrPointerShape)

	pp, err := NewPluralFragmentPointer([]string{"f1", "f2"}, factionFragment)
	require.NoError(t, err)
	require.True(t, pp.IsPlural())
	require.Equal(t, "", pp.DataID())
	require.Equal(t, []string{"f1", "f2"}, pp.DataIDs())

	_, err = NewPluralFragmentPointer([]string{"s1"}, shipFragment)
	require.ErrorIs(t, err, ErrPointerShape)
}

func TestRecordTagging(t *testing.T) {
	p, err := NewFragmentPointer("s1", shipFragment)
	require.NoError(t, err)
	r := &Record{ID: "s1", Fields: map[string]any{"name": "X-Wing"}}
	require.Nil(t, r.PointerFor(shipFragment))
	r.Tag(p)
	require.Same(t, p, r.PointerFor(shipFragment))
	require.True(t, HasPointer(r, shipFragment.ConcreteHash()))
	require.False(t, HasPointer(r, factionFragment.ConcreteHash()))
	require.False(t, HasPointer(map[string]any{}, shipFragment.ConcreteHash()))
	require.Equal(t, "X-Wing", r.Get("name"))
}

func TestGetDataID(t *testing.T) {
	id, ok := GetDataID(&Record{ID: "a"})
	require.True(t, ok)
	require.Equal(t, "a", id)

	_, ok = GetDataID(&Record{})
	require.False(t, ok)
	_, ok = GetDataID(map[string]any{"id": "a"})
	require.False(t, ok)
	_, ok = GetDataID((*Record)(nil))
	require.False(t, ok)

	id, ok = GetDataID(map[string]any{DataIDKey: "b", "name": "Rebels"})
	require.True(t, ok)
	require.Equal(t, "b", id)
}

type rootIDs map[string]string

func (m rootIDs) GetRootDataID(fieldName string, value any) string {
	key := fieldName
	if s, ok := value.(string); ok {
		key += ":" + s
	}
	return m[key]
}

func TestNewRootValue_Plural(t *testing.T) {
	root := &query.Root{
		Name:           "Q",
		FieldName:      "factions",
		IdentifyingArg: &query.Call{Name: "names", Value: []string{"empire", "unknown", "rebels"}},
		Children:       []query.Node{factionFragment},
	}
	v := NewRootValue(rootIDs{"factions:empire": "f1", "factions:rebels": "f2"}, root)
	items, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, items, 3)
	require.Nil(t, items[1])
	first := items[0].(*Record)
	require.Equal(t, "f1", first.ID)
	require.Equal(t, []string{"f1"}, first.PointerFor(factionFragment).DataIDs())
}

func TestNewRootValue_Singular(t *testing.T) {
	root := &query.Root{Name: "Q", FieldName: "viewer", Children: []query.Node{shipFragment}}
	v := NewRootValue(rootIDs{"viewer": "v1"}, root)
	r := v.(*Record)
	require.Equal(t, "v1", r.PointerFor(shipFragment).DataID())

	require.Nil(t, NewRootValue(rootIDs{}, root))
	require.Nil(t, NewRootValue(rootIDs{"viewer": "v1"}, &query.Root{Name: "Q", FieldName: "viewer"}))
}
