package apply

import (
	"reflect"
	"sort"
)

// FieldDiff is one differing leaf between two audit snapshots.
type FieldDiff struct {
	Path   string      `json:"path"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// Diff produces a key-wise recursion over two snapshots, returning one row
// per differing leaf in path order. When a value changes between an object
// and a leaf, a single row is produced at the containing path.
func Diff(before, after map[string]interface{}) []FieldDiff {
	diffs := []FieldDiff{}
	diffMaps("", before, after, &diffs)
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs
}

func diffMaps(prefix string, before, after map[string]interface{}, out *[]FieldDiff) {
	keys := map[string]bool{}
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}

	for k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		diffValue(path, before[k], after[k], out)
	}
}

func diffValue(path string, before, after interface{}, out *[]FieldDiff) {
	bm, bIsMap := before.(map[string]interface{})
	am, aIsMap := after.(map[string]interface{})

	switch {
	case bIsMap && aIsMap:
		diffMaps(path, bm, am, out)
	case reflect.DeepEqual(before, after):
		// no change
	default:
		// Covers differing leaves and object-to-leaf type changes alike.
		*out = append(*out, FieldDiff{Path: path, Before: before, After: after})
	}
}
