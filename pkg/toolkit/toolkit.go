// Package toolkit provides the standard tool library a root environment
// ships with: stream IO, arithmetic, data shaping and orchestration
// combinators. Every tool follows the invocation contract in pkg/core and
// reports failures as tool errors.
package toolkit

import "github.com/loomkit/loom/pkg/core"

// Default returns the full standard toolset bound to the process streams.
func Default() core.Toolset {
	return core.MergeToolsets("toolkit",
		StdIO().Toolset(),
		Math(),
		Data(),
		Flow(),
	)
}
