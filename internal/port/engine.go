package port

import (
	"context"
	"io"
)

// Engine is the exclusive transcoding resource. Handles are opaque names
// chosen by the caller; argument lists refer to inputs and outputs by handle.
type Engine interface {
	// Load prepares the engine once. A nil error means ready.
	Load(ctx context.Context) error
	WriteInput(ctx context.Context, handle string, r io.Reader) error
	// Execute runs one argument list. onProgress receives fractions in [0,1]
	// and is never called after Execute returns.
	Execute(ctx context.Context, args []string, onProgress func(fraction float64)) error
	ReadOutput(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(handle string) error
}
