package toolkit

import (
	"context"
	"sort"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// Data returns the value shaping tools.
func Data() core.Toolset {
	return core.NewToolset("data", map[string]core.Tool{
		"echo": core.Describe(core.ToolFunc(echo), core.Info{
			Description: "Return the input unchanged.",
		}),
		"compare": core.Describe(core.ToolFunc(compare), core.Info{
			Description: "Compare two values in the total value order. Takes [left, right] or {\"left\": a, \"right\": b} and returns -1, 0 or 1.",
		}),
		"sort": core.Describe(core.ToolFunc(sortValues), core.Info{
			Description: "Sort a list in the total value order. Takes an array, or {\"items\": [...], \"compare\": tool} to sort with a comparator tool.",
		}),
	})
}

func echo(_ context.Context, input any, _ *core.Env) (any, error) {
	return value.Normalize(input), nil
}

func compare(_ context.Context, input any, _ *core.Env) (any, error) {
	var left, right any
	switch v := value.Normalize(input).(type) {
	case []any:
		if len(v) != 2 {
			return nil, lerrors.New(lerrors.KindInvalidInput, "compare expects exactly two values", nil).
				WithPayload("count", len(v))
		}
		left, right = v[0], v[1]
	case map[string]any:
		var okL, okR bool
		left, okL = v["left"]
		right, okR = v["right"]
		if !okL || !okR {
			return nil, lerrors.New(lerrors.KindInvalidInput, `compare expects "left" and "right"`, nil)
		}
	default:
		return nil, lerrors.New(lerrors.KindInvalidInput, "compare expects a pair of values", nil)
	}
	return float64(value.Compare(left, right)), nil
}

func sortValues(ctx context.Context, input any, env *core.Env) (any, error) {
	var items []any
	var compareWith string
	switch v := value.Normalize(input).(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["items"].([]any)
		if !ok {
			return nil, lerrors.New(lerrors.KindInvalidInput, `sort expects an array or {"items": [...]}`, nil)
		}
		items = list
		if name, ok := v["compare"].(string); ok {
			compareWith = name
		}
	default:
		return nil, lerrors.New(lerrors.KindInvalidInput, `sort expects an array or {"items": [...]}`, nil)
	}

	out := make([]any, len(items))
	copy(out, items)

	if compareWith == "" {
		sort.SliceStable(out, func(i, j int) bool {
			return value.Compare(out[i], out[j]) < 0
		})
		return out, nil
	}

	comparator, ok := env.Lookup(compareWith)
	if !ok {
		return nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+compareWith+"\"", nil).
			WithPayload("tool", compareWith)
	}
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		res, err := comparator.Invoke(ctx, []any{out[i], out[j]}, env)
		if err != nil {
			sortErr = err
			return false
		}
		n, okNum := value.AsNumber(res)
		if !okNum {
			sortErr = lerrors.New(lerrors.KindInvalidInput, "compare tool must return a number", nil).
				WithPayload("tool", compareWith)
			return false
		}
		return n < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}
