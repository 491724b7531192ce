package core

import (
	"context"
	"sync"
	"testing"
)

func constant(v any) Tool { return Constant(v) }

func invoke(t *testing.T, tool Tool, input any, env *Env) any {
	t.Helper()
	out, err := tool.Invoke(context.Background(), input, env)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	return out
}

func TestDefineThenLookup(t *testing.T) {
	env := NewEnv()
	tool := constant("a")
	env.Define("a", tool)

	got, ok := env.Lookup("a")
	if !ok {
		t.Fatalf("lookup after define failed")
	}
	if out := invoke(t, got, nil, env); out != "a" {
		t.Fatalf("unexpected tool bound: %v", out)
	}
}

func TestLookupMissingIsNotAnError(t *testing.T) {
	env := NewEnv()
	if _, ok := env.Lookup("missing-tool"); ok {
		t.Fatalf("expected lookup miss on empty root")
	}
}

func TestChildInheritsBindings(t *testing.T) {
	parent := NewEnv()
	parent.Define("a", constant("from-parent"))

	child := parent.Child()
	got, ok := child.Lookup("a")
	if !ok {
		t.Fatalf("child did not inherit binding")
	}
	if out := invoke(t, got, nil, child); out != "from-parent" {
		t.Fatalf("child resolved a different tool: %v", out)
	}
}

func TestShadowingDoesNotMutateAncestors(t *testing.T) {
	parent := NewEnv()
	parent.Define("a", constant("parent"))

	child := parent.Child()
	child.Define("a", constant("child"))

	childTool, _ := child.Lookup("a")
	if out := invoke(t, childTool, nil, child); out != "child" {
		t.Fatalf("child lookup = %v, want shadowing binding", out)
	}
	parentTool, _ := parent.Lookup("a")
	if out := invoke(t, parentTool, nil, parent); out != "parent" {
		t.Fatalf("parent binding changed by child define: %v", out)
	}
}

func TestRebindReplacesForSubsequentLookups(t *testing.T) {
	env := NewEnv()
	env.Define("a", constant(1))
	env.Define("a", constant(2))

	tool, _ := env.Lookup("a")
	if out := invoke(t, tool, nil, env); out != float64(2) {
		t.Fatalf("lookup after rebind = %v, want 2", out)
	}
}

func TestUndefineRevealsParentBinding(t *testing.T) {
	parent := NewEnv()
	parent.Define("a", constant("parent"))
	child := parent.Child()
	child.Define("a", constant("child"))

	if !child.Undefine("a") {
		t.Fatalf("undefine of a local binding must report removal")
	}
	tool, ok := child.Lookup("a")
	if !ok {
		t.Fatalf("parent binding should be visible after local undefine")
	}
	if out := invoke(t, tool, nil, child); out != "parent" {
		t.Fatalf("lookup after undefine = %v, want parent binding", out)
	}
	if child.Undefine("a") {
		t.Fatalf("undefine must not remove ancestor bindings")
	}
	if _, ok := parent.Lookup("a"); !ok {
		t.Fatalf("ancestor binding lost")
	}
}

func TestCombinedConsultsFallbacksInOrder(t *testing.T) {
	first := NewEnv()
	first.Define("a", constant("first"))
	first.Define("only-first", constant(1))
	second := NewEnv()
	second.Define("a", constant("second"))
	second.Define("only-second", constant(2))

	combined := NewCombined(first, second)
	tool, ok := combined.Lookup("a")
	if !ok {
		t.Fatalf("combined lookup failed")
	}
	if out := invoke(t, tool, nil, combined); out != "first" {
		t.Fatalf("combined must prefer the first environment, got %v", out)
	}
	if _, ok := combined.Lookup("only-second"); !ok {
		t.Fatalf("combined must fall through to later environments")
	}

	combined.Define("a", constant("local"))
	tool, _ = combined.Lookup("a")
	if out := invoke(t, tool, nil, combined); out != "local" {
		t.Fatalf("local bindings must win over combined views, got %v", out)
	}
	if _, ok := first.Lookup("local"); ok {
		t.Fatalf("define on combined frame must not touch members")
	}
}

func TestNamesSortedAndDeduplicated(t *testing.T) {
	parent := NewEnv()
	parent.Define("zeta", constant(1))
	parent.Define("alpha", constant(2))
	child := parent.Child()
	child.Define("alpha", constant(3))
	child.Define("mid", constant(4))

	got := child.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestInstallToolset(t *testing.T) {
	env := NewEnv()
	env.Install(NewToolset("test", map[string]Tool{
		"one": constant(1),
		"two": constant(2),
	}))
	if _, ok := env.Lookup("one"); !ok {
		t.Fatalf("toolset tool not installed")
	}
	if _, ok := env.Lookup("two"); !ok {
		t.Fatalf("toolset tool not installed")
	}
}

func TestMergeToolsetsLaterWins(t *testing.T) {
	a := NewToolset("a", map[string]Tool{"x": constant("a")})
	b := NewToolset("b", map[string]Tool{"x": constant("b")})
	merged := MergeToolsets("merged", a, b)

	env := NewEnv()
	env.Install(merged)
	tool, _ := env.Lookup("x")
	if out := invoke(t, tool, nil, env); out != "b" {
		t.Fatalf("merge order lost: %v", out)
	}
}

func TestConcurrentDefineAndLookup(t *testing.T) {
	env := NewEnv()
	env.Define("seed", constant(0))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('a' + n%8))
			env.Define(name, constant(n))
			if _, ok := env.Lookup(name); !ok {
				t.Errorf("binding %q missing immediately after define", name)
			}
			for j := 0; j < 100; j++ {
				env.Lookup("seed")
				child := env.Child()
				child.Define("local", constant(j))
				child.Lookup(name)
			}
		}(i)
	}
	wg.Wait()

	if _, ok := env.Lookup("seed"); !ok {
		t.Fatalf("seed binding lost under concurrency")
	}
}
