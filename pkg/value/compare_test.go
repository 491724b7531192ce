package value

import "testing"

func TestCompareWithinTypes(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want int
	}{
		{"numbers lt", 1, 2, -1},
		{"numbers gt", 2, 1, 1},
		{"numbers eq", 2, 2, 0},
		{"numbers float lt", 1, 1.1, -1},
		{"numbers float gt", 1.2, 1.1, 1},
		{"strings lt", "aardvark", "zebra", -1},
		{"strings gt", "zebra", "aardvark", 1},
		{"strings eq", "ocelot", "ocelot", 0},
		{"nulls eq", nil, nil, 0},
		{"bools lt", false, true, -1},
		{"bools gt", true, false, 1},
		{"bools eq", true, true, 0},
		{"arrays eq", []any{1, 2, 3}, []any{1, 2, 3}, 0},
		{"arrays lt", []any{1, 2, 3}, []any{1, 2, 4}, -1},
		{"arrays gt", []any{1, 2, 4}, []any{1, 2, 3}, 1},
		{"arrays shorter first", []any{1, 2, 3}, []any{1, 2, 3, 4}, -1},
		{"arrays longer last", []any{1, 2, 3, 4}, []any{1, 2, 3}, 1},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Compare(%v, %v) = %d, want %d", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareObjects(t *testing.T) {
	eqA := map[string]any{"foo": "bar", "bar": "foo"}
	eqB := map[string]any{"bar": "foo", "foo": "bar"}
	if got := Compare(eqA, eqB); got != 0 {
		t.Errorf("equal objects: got %d", got)
	}
	lt := map[string]any{"foo": "aar", "bar": "foo"}
	if got := Compare(lt, eqB); got != -1 {
		t.Errorf("object member lt: got %d", got)
	}
	bigger := map[string]any{"bar": "foo", "foo": "bar", "quux": "plugh"}
	if got := Compare(eqA, bigger); got != -1 {
		t.Errorf("smaller object first: got %d", got)
	}
	if got := Compare(bigger, eqA); got != 1 {
		t.Errorf("bigger object last: got %d", got)
	}
}

func TestCompareAcrossTypes(t *testing.T) {
	// Type rank: sequence < bool < null < number < mapping < string.
	ordered := []any{
		[]any{1},
		false,
		nil,
		3.5,
		map[string]any{"k": "v"},
		"text",
	}
	for i := range ordered {
		for j := range ordered {
			want := sign(i - j)
			if got := Compare(ordered[i], ordered[j]); got != want {
				t.Errorf("Compare(rank %d, rank %d) = %d, want %d", i, j, got, want)
			}
		}
	}
}
