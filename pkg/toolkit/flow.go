package toolkit

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/resilience"
	"github.com/loomkit/loom/pkg/value"
)

// Flow returns the orchestration combinators. Retry and error handling
// live here as ordinary tools; the interpreter itself never retries.
// Circuit breakers keep their state across invocations, scoped to the
// returned toolset.
func Flow() core.Toolset {
	breakers := newBreakerSet()
	return core.NewToolset("flow", map[string]core.Tool{
		"retry": core.Describe(core.ToolFunc(retry), core.Info{
			Description: "Invoke a tool with exponential backoff. Takes {\"tool\": name, \"input\": v, \"max_attempts\"?, \"initial_delay_ms\"?, \"max_delay_ms\"?}.",
		}),
		"timeout": core.Describe(core.ToolFunc(timeout), core.Info{
			Description: "Invoke a tool under a deadline. Takes {\"tool\": name, \"input\": v, \"timeout_ms\": n}.",
		}),
		"fallback": core.Describe(core.ToolFunc(fallback), core.Info{
			Description: "Invoke a tool and substitute a static value if it fails. Takes {\"tool\": name, \"input\": v, \"fallback\": value}.",
		}),
		"parallel": core.Describe(core.ToolFunc(parallel), core.Info{
			Description: "Invoke several tools concurrently. Takes [{\"tool\": name, \"input\": v}, ...] or {\"calls\": [...]} and returns the outputs in call order.",
		}),
		"circuit-breaker": core.Describe(core.ToolFunc(breakers.call), core.Info{
			Description: "Invoke a tool behind a circuit breaker that fails fast while the target is unhealthy. Takes {\"tool\": name, \"input\": v, \"failure_threshold\"?, \"success_threshold\"?, \"open_timeout_ms\"?}.",
		}),
	})
}

type callSpec struct {
	tool  string
	input any
}

func callSpecFrom(v any) (callSpec, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return callSpec{}, lerrors.New(lerrors.KindInvalidInput, "call descriptor must be an object", nil)
	}
	name, ok := obj["tool"].(string)
	if !ok || name == "" {
		return callSpec{}, lerrors.New(lerrors.KindInvalidInput, `call descriptor requires a "tool" name`, nil)
	}
	return callSpec{tool: name, input: obj["input"]}, nil
}

func resolveCall(v any, env *core.Env) (callSpec, core.Tool, error) {
	spec, err := callSpecFrom(v)
	if err != nil {
		return callSpec{}, nil, err
	}
	tool, ok := env.Lookup(spec.tool)
	if !ok {
		return callSpec{}, nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+spec.tool+"\"", nil).
			WithPayload("tool", spec.tool)
	}
	return spec, tool, nil
}

func retry(ctx context.Context, input any, env *core.Env) (any, error) {
	obj, ok := value.Normalize(input).(map[string]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "retry expects an object", nil)
	}
	spec, tool, err := resolveCall(obj, env)
	if err != nil {
		return nil, err
	}
	config := resilience.DefaultRetryConfig()
	if n, ok := value.AsNumber(obj["max_attempts"]); ok && n >= 1 {
		config = config.WithMaxAttempts(int(n))
	}
	if n, ok := value.AsNumber(obj["initial_delay_ms"]); ok && n >= 0 {
		config = config.WithInitialDelay(time.Duration(n) * time.Millisecond)
	}
	if n, ok := value.AsNumber(obj["max_delay_ms"]); ok && n >= 0 {
		config = config.WithMaxDelay(time.Duration(n) * time.Millisecond)
	}
	return config.DoWithResult(ctx, func() (any, error) {
		return tool.Invoke(ctx, spec.input, env)
	})
}

func timeout(ctx context.Context, input any, env *core.Env) (any, error) {
	obj, ok := value.Normalize(input).(map[string]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "timeout expects an object", nil)
	}
	spec, tool, err := resolveCall(obj, env)
	if err != nil {
		return nil, err
	}
	n, ok := value.AsNumber(obj["timeout_ms"])
	if !ok || n <= 0 {
		return nil, lerrors.New(lerrors.KindInvalidInput, `timeout requires a positive "timeout_ms"`, nil)
	}
	return resilience.WithTimeoutResult(ctx, time.Duration(n)*time.Millisecond, func(ctx context.Context) (any, error) {
		return tool.Invoke(ctx, spec.input, env)
	})
}

func fallback(ctx context.Context, input any, env *core.Env) (any, error) {
	obj, ok := value.Normalize(input).(map[string]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "fallback expects an object", nil)
	}
	spec, err := callSpecFrom(obj)
	if err != nil {
		return nil, err
	}
	substitute, ok := obj["fallback"]
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, `fallback requires a "fallback" value`, nil)
	}
	// Resolution happens inside the guarded call: a missing tool is
	// itself a failure the substitute covers.
	return resilience.WithFallback(ctx, func() (any, error) {
		tool, ok := env.Lookup(spec.tool)
		if !ok {
			return nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+spec.tool+"\"", nil).
				WithPayload("tool", spec.tool)
		}
		return tool.Invoke(ctx, spec.input, env)
	}, &resilience.StaticFallback{Value: substitute})
}

// breakerSet holds one breaker per target tool so repeated invocations
// share failure counts.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: make(map[string]*resilience.CircuitBreaker)}
}

func (b *breakerSet) forTool(name string, config resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[name]; ok {
		return cb
	}
	cb := resilience.NewCircuitBreaker(config)
	b.breakers[name] = cb
	return cb
}

func (b *breakerSet) call(ctx context.Context, input any, env *core.Env) (any, error) {
	obj, ok := value.Normalize(input).(map[string]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "circuit-breaker expects an object", nil)
	}
	spec, tool, err := resolveCall(obj, env)
	if err != nil {
		return nil, err
	}
	config := resilience.CircuitBreakerConfig{Name: spec.tool}
	if n, ok := value.AsNumber(obj["failure_threshold"]); ok && n >= 1 {
		config.FailureThreshold = int(n)
	}
	if n, ok := value.AsNumber(obj["success_threshold"]); ok && n >= 1 {
		config.SuccessThreshold = int(n)
	}
	if n, ok := value.AsNumber(obj["open_timeout_ms"]); ok && n > 0 {
		config.Timeout = time.Duration(n) * time.Millisecond
	}
	cb := b.forTool(spec.tool, config)
	return cb.CallWithResult(ctx, func() (any, error) {
		return tool.Invoke(ctx, spec.input, env)
	})
}

func parallel(ctx context.Context, input any, env *core.Env) (any, error) {
	var rawCalls []any
	switch v := value.Normalize(input).(type) {
	case []any:
		rawCalls = v
	case map[string]any:
		list, ok := v["calls"].([]any)
		if !ok {
			return nil, lerrors.New(lerrors.KindInvalidInput, `parallel expects an array or {"calls": [...]}`, nil)
		}
		rawCalls = list
	default:
		return nil, lerrors.New(lerrors.KindInvalidInput, `parallel expects an array or {"calls": [...]}`, nil)
	}

	// Resolve every call before spawning anything so a bad descriptor
	// fails without side effects.
	specs := make([]callSpec, len(rawCalls))
	tools := make([]core.Tool, len(rawCalls))
	for i, raw := range rawCalls {
		spec, tool, err := resolveCall(raw, env)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
		tools[i] = tool
	}

	results := make([]any, len(specs))
	errs := make([]error, len(specs))
	var wg conc.WaitGroup
	for i := range specs {
		i := i
		wg.Go(func() {
			results[i], errs[i] = tools[i].Invoke(ctx, specs[i].input, env)
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		return nil, lerrors.New(lerrors.KindInternal, "parallel call panicked", r.AsError())
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
