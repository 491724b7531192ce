package core

// Toolset is a named bundle of tools installed into an environment in one
// step.
type Toolset interface {
	Name() string
	Tools() map[string]Tool
}

type basicToolset struct {
	name  string
	tools map[string]Tool
}

func (b *basicToolset) Name() string { return b.name }

func (b *basicToolset) Tools() map[string]Tool {
	out := make(map[string]Tool, len(b.tools))
	for name, tool := range b.tools {
		out[name] = tool
	}
	return out
}

// NewToolset creates a toolset from a name→Tool map. The map is copied.
func NewToolset(name string, tools map[string]Tool) Toolset {
	copied := make(map[string]Tool, len(tools))
	for n, t := range tools {
		copied[n] = t
	}
	return &basicToolset{name: name, tools: copied}
}

// MergeToolsets flattens several toolsets into one; later sets win on name
// collisions.
func MergeToolsets(name string, sets ...Toolset) Toolset {
	merged := make(map[string]Tool)
	for _, ts := range sets {
		for n, t := range ts.Tools() {
			merged[n] = t
		}
	}
	return &basicToolset{name: name, tools: merged}
}
