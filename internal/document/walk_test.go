package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkVisitsLeavesInOrder(t *testing.T) {
	doc := NewObjectFromFields(
		F("user", NewObjectFromFields(
			F("name", String("Alice")),
			F("age", Int(30)),
		)),
		F("tags", Array{String("x"), String("y")}),
	)

	var visited []string
	_, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		visited = append(visited, path.String())
		return leaf, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"user.name", "user.age", "tags[0]", "tags[1]"}, visited)
}

func TestWalkReplacesLeaves(t *testing.T) {
	doc := NewObjectFromFields(
		F("name", String("Alice")),
		F("count", Int(2)),
	)

	out, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		if path.String() == "name" {
			return String("TOKEN-1"), nil
		}
		return leaf, nil
	})
	require.NoError(t, err)

	obj := out.(*Object)
	name, _ := obj.Get("name")
	count, _ := obj.Get("count")
	assert.Equal(t, String("TOKEN-1"), name)
	assert.Equal(t, Int(2), count)
}

func TestWalkDoesNotMutateInput(t *testing.T) {
	doc := NewObjectFromFields(F("name", String("Alice")))

	_, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		return String("changed"), nil
	})
	require.NoError(t, err)

	orig, _ := doc.Get("name")
	assert.Equal(t, String("Alice"), orig, "input document must be untouched")
}

func TestWalkPreservesStructure(t *testing.T) {
	input := `{"b":{"z":1,"a":2},"list":[{"k":"v"},null,5]}`
	doc, err := DecodeJSON([]byte(input))
	require.NoError(t, err)

	out, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		return leaf, nil
	})
	require.NoError(t, err)

	encoded, err := EncodeJSON(out)
	require.NoError(t, err)
	assert.Equal(t, input, string(encoded))
}

func TestWalkDetectsObjectCycle(t *testing.T) {
	obj := NewObject()
	obj.Set("self", obj)

	_, err := Walk(obj, func(path Path, leaf Value) (Value, error) {
		return leaf, nil
	})
	require.Error(t, err)

	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestWalkDetectsArrayCycle(t *testing.T) {
	arr := make(Array, 1)
	arr[0] = arr

	_, err := Walk(arr, func(path Path, leaf Value) (Value, error) {
		return leaf, nil
	})
	require.Error(t, err)

	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestWalkSharedSubtreeIsNotACycle(t *testing.T) {
	shared := NewObjectFromFields(F("v", Int(1)))
	doc := NewObjectFromFields(
		F("a", shared),
		F("b", shared),
	)

	_, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		return leaf, nil
	})
	assert.NoError(t, err, "a DAG is acyclic; only ancestor revisits fail")
}

func TestWalkLeafError(t *testing.T) {
	doc := NewObjectFromFields(F("bad", String("x")))

	_, err := Walk(doc, func(path Path, leaf Value) (Value, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPathString(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{"empty", Path{}, ""},
		{"keys", Path{KeySegment("user"), KeySegment("name")}, "user.name"},
		{"index", Path{KeySegment("orders"), IndexSegment(2), KeySegment("date")}, "orders[2].date"},
		{"root_index", Path{IndexSegment(0), KeySegment("id")}, "[0].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())
		})
	}
}
