package message

import (
	"fmt"
	"sort"

	"github.com/tsarna/go-structdiff"
)

// DiffChanged builds the Changed message that turns the before document
// into the after document. Top-level fields that differ are carried with
// their new value; fields missing from after are listed as cleared.
//
// When nothing differs the returned message has neither fields nor cleared.
func DiffChanged(collection, id string, before, after map[string]any) (Changed, error) {
	if before == nil {
		before = map[string]any{}
	}
	if after == nil {
		after = map[string]any{}
	}

	diff, err := structdiff.DiffMaps(before, after)
	if err != nil {
		return Changed{}, fmt.Errorf("unable to diff %s/%s: %w", collection, id, err)
	}

	fields := make(map[string]any)
	cleared := make([]string, 0)
	for key := range diff {
		if value, ok := after[key]; ok {
			fields[key] = value
		} else {
			cleared = append(cleared, key)
		}
	}
	sort.Strings(cleared)

	changedFields := None[map[string]any]()
	if len(fields) > 0 {
		changedFields = Some(fields)
	}
	clearedFields := None[[]string]()
	if len(cleared) > 0 {
		clearedFields = Some(cleared)
	}

	return NewChanged(collection, id, clearedFields, changedFields), nil
}
