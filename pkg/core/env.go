package core

import (
	"sort"
	"sync"
)

// Env is a name→Tool binding table. Environments chain: a child inherits
// bindings from its parent and may shadow them locally; Lookup walks
// child→parent until a binding is found or the chain is exhausted. A frame
// may also hold a combined view, consulting other environments after its
// own chain misses.
//
// A single frame is safe for concurrent readers and writers. Once Define
// returns, every subsequent Lookup on this Env or a descendant observes the
// new binding; lookups already in flight may see either state.
type Env struct {
	mu       sync.RWMutex
	bindings map[string]Tool
	parent   *Env
	combined []*Env
}

// NewEnv creates an empty root frame with no parent. The standard root,
// pre-populated with the define/undefine/list builtins, is assembled by the
// script package.
func NewEnv() *Env {
	return &Env{bindings: make(map[string]Tool)}
}

// NewCombined creates a frame whose lookups consult each given environment
// in order after its own bindings; the first match wins. Define still
// writes only to the new frame.
func NewCombined(envs ...*Env) *Env {
	e := NewEnv()
	e.combined = envs
	return e
}

// Child creates a new frame whose parent is the receiver. Used when a
// defined tool is invoked, so its bindings do not leak into the caller, and
// by scoping forms.
func (e *Env) Child() *Env {
	return &Env{bindings: make(map[string]Tool), parent: e}
}

// Lookup resolves a name: local bindings first, then the combined views,
// then the parent chain. The boolean is false when the name is absent at
// every level; absence is not an error, callers decide whether it is fatal.
func (e *Env) Lookup(name string) (Tool, bool) {
	for frame := e; frame != nil; frame = frame.parent {
		frame.mu.RLock()
		t, ok := frame.bindings[name]
		combined := frame.combined
		frame.mu.RUnlock()
		if ok {
			return t, true
		}
		for _, view := range combined {
			if t, ok := view.Lookup(name); ok {
				return t, true
			}
		}
	}
	return nil, false
}

// Define inserts or overwrites a binding in this frame only; ancestors are
// never mutated. Tools created inside a child frame keep resolving free
// names against the chain active at their creation (lexical scoping).
func (e *Env) Define(name string, t Tool) {
	e.mu.Lock()
	e.bindings[name] = t
	e.mu.Unlock()
}

// Undefine removes a binding from this frame and reports whether one was
// removed. A parent binding of the same name becomes visible again.
func (e *Env) Undefine(name string) bool {
	e.mu.Lock()
	_, ok := e.bindings[name]
	delete(e.bindings, name)
	e.mu.Unlock()
	return ok
}

// Names returns every name visible through the chain and combined views,
// sorted and deduplicated.
func (e *Env) Names() []string {
	seen := make(map[string]struct{})
	e.collectNames(seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Env) collectNames(seen map[string]struct{}) {
	for frame := e; frame != nil; frame = frame.parent {
		frame.mu.RLock()
		for name := range frame.bindings {
			seen[name] = struct{}{}
		}
		combined := frame.combined
		frame.mu.RUnlock()
		for _, view := range combined {
			view.collectNames(seen)
		}
	}
}

// Install defines every tool of a toolset in this frame.
func (e *Env) Install(ts Toolset) {
	for name, tool := range ts.Tools() {
		e.Define(name, tool)
	}
}
