package toolkit

import (
	"context"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

var numberListSchema = []byte(`{"type": "array", "items": {"type": "number"}}`)

// Math returns the arithmetic tools. Both take a list of numbers; add of
// an empty list is 0 and multiply of an empty list is 1.
func Math() core.Toolset {
	return core.NewToolset("math", map[string]core.Tool{
		"add":      core.MustValidateInput(core.ToolFunc(add), "Sum a list of numbers.", numberListSchema),
		"multiply": core.MustValidateInput(core.ToolFunc(multiply), "Multiply a list of numbers.", numberListSchema),
	})
}

func add(_ context.Context, input any, _ *core.Env) (any, error) {
	numbers, err := numberList(input)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, n := range numbers {
		sum += n
	}
	return sum, nil
}

func multiply(_ context.Context, input any, _ *core.Env) (any, error) {
	numbers, err := numberList(input)
	if err != nil {
		return nil, err
	}
	product := 1.0
	for _, n := range numbers {
		product *= n
	}
	return product, nil
}

func numberList(input any) ([]float64, error) {
	items, ok := value.Normalize(input).([]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "input must be a list of numbers", nil)
	}
	numbers := make([]float64, len(items))
	for i, item := range items {
		n, ok := value.AsNumber(item)
		if !ok {
			return nil, lerrors.New(lerrors.KindInvalidInput, "input must be a list of numbers", nil).
				WithPayload("position", i)
		}
		numbers[i] = n
	}
	return numbers, nil
}
