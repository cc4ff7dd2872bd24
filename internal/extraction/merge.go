package extraction

// deepMerge folds extracted values into the existing document without
// overwriting human edits: maps merge recursively, existing non-empty
// scalars win, and lists are replaced only when currently empty.
func deepMerge(existing, extracted map[string]interface{}) map[string]interface{} {
	if existing == nil {
		existing = map[string]interface{}{}
	}
	for key, newVal := range extracted {
		oldVal, present := existing[key]
		if !present || isEmpty(oldVal) {
			existing[key] = newVal
			continue
		}

		oldMap, oldIsMap := oldVal.(map[string]interface{})
		newMap, newIsMap := newVal.(map[string]interface{})
		if oldIsMap && newIsMap {
			existing[key] = deepMerge(oldMap, newMap)
			continue
		}
		// existing scalar or non-empty list wins
	}
	return existing
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}
