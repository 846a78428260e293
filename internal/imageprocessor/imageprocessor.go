// Package imageprocessor defines how the server hands an uploaded image to
// the colorization routine.
package imageprocessor

import "context"

// Result is what the routine reported for one invocation.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

// Client runs the colorization routine on inputPath and asks it to write
// outputPath. A routine that ran and failed is a Result with Success false;
// an error means the routine could not be run at all.
type Client interface {
	Colorize(ctx context.Context, inputPath, outputPath string) (*Result, error)
}
