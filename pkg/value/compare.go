package value

import "sort"

// Type ranks for the total order over values. Sequences order before
// booleans, then null, numbers, mappings and strings.
const (
	rankArray = iota
	rankBool
	rankNull
	rankNumber
	rankObject
	rankString
)

func rank(v any) int {
	if _, ok := AsNumber(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case string:
		return rankString
	case []any:
		return rankArray
	case map[string]any:
		return rankObject
	default:
		return rank(Normalize(v))
	}
}

// Compare imposes a total order on values and returns -1, 0 or 1. Values of
// different types order by type rank. Within a type: booleans false<true,
// numbers numerically, strings lexicographically, sequences by length then
// elementwise, mappings by size then sorted key order then member values.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return sign(ra - rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case !ba && bb:
			return -1
		case ba && !bb:
			return 1
		default:
			return 0
		}
	case rankNumber:
		na, _ := AsNumber(a)
		nb, _ := AsNumber(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	case rankString:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	case rankArray:
		return compareArrays(asArray(a), asArray(b))
	default:
		return compareObjects(asObject(a), asObject(b))
	}
}

func compareArrays(a, b []any) int {
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareObjects(a, b map[string]any) int {
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	keysA := sortedKeys(a)
	keysB := sortedKeys(b)
	for i := range keysA {
		switch {
		case keysA[i] < keysB[i]:
			return -1
		case keysA[i] > keysB[i]:
			return 1
		}
		if c := Compare(a[keysA[i]], b[keysA[i]]); c != 0 {
			return c
		}
	}
	return 0
}

func asArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	a, _ := Normalize(v).([]any)
	return a
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	m, _ := Normalize(v).(map[string]any)
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
