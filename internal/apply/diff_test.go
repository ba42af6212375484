package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffFlatChanges(t *testing.T) {
	before := map[string]interface{}{"title": "Old", "completion": float64(10), "status": "TODO"}
	after := map[string]interface{}{"title": "New", "completion": float64(10), "status": "DONE"}

	diffs := Diff(before, after)
	require.Len(t, diffs, 2)

	// Sorted by path.
	assert.Equal(t, "status", diffs[0].Path)
	assert.Equal(t, "TODO", diffs[0].Before)
	assert.Equal(t, "DONE", diffs[0].After)
	assert.Equal(t, "title", diffs[1].Path)
}

func TestDiffAddedAndRemovedKeys(t *testing.T) {
	before := map[string]interface{}{"assignee": "dana"}
	after := map[string]interface{}{"wbs": "1.2"}

	diffs := Diff(before, after)
	require.Len(t, diffs, 2)
	assert.Equal(t, "assignee", diffs[0].Path)
	assert.Equal(t, "dana", diffs[0].Before)
	assert.Nil(t, diffs[0].After)
	assert.Equal(t, "wbs", diffs[1].Path)
	assert.Nil(t, diffs[1].Before)
}

func TestDiffNestedMapsRecurse(t *testing.T) {
	before := map[string]interface{}{
		"meta": map[string]interface{}{"color": "red", "size": "M"},
	}
	after := map[string]interface{}{
		"meta": map[string]interface{}{"color": "blue", "size": "M"},
	}

	diffs := Diff(before, after)
	require.Len(t, diffs, 1)
	assert.Equal(t, "meta.color", diffs[0].Path)
	assert.Equal(t, "red", diffs[0].Before)
	assert.Equal(t, "blue", diffs[0].After)
}

func TestDiffObjectToLeafIsSingleRow(t *testing.T) {
	before := map[string]interface{}{
		"meta": map[string]interface{}{"color": "red"},
	}
	after := map[string]interface{}{"meta": "gone"}

	diffs := Diff(before, after)
	require.Len(t, diffs, 1)
	assert.Equal(t, "meta", diffs[0].Path)
}

func TestDiffEqualInputs(t *testing.T) {
	m := map[string]interface{}{
		"title":        "Same",
		"predecessors": []interface{}{"tsk-1", "1.2"},
	}
	assert.Empty(t, Diff(m, m))
}

func TestDiffNilSides(t *testing.T) {
	after := map[string]interface{}{"title": "Created"}
	diffs := Diff(nil, after)
	require.Len(t, diffs, 1)
	assert.Nil(t, diffs[0].Before)
	assert.Equal(t, "Created", diffs[0].After)
}
