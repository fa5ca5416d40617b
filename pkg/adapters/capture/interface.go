package capture

import (
	"context"

	"github.com/harunnryd/navvoice/pkg/frames"
)

// Source defines the contract for any PCM capture implementation.
type Source interface {
	// Name returns source name for logging/metrics.
	Name() string
	// Stream emits 16 kHz mono 16-bit frames into out until ctx is done or
	// the audio is exhausted. It closes out before returning and releases
	// the underlying device on every exit path.
	Stream(ctx context.Context, out chan<- frames.AudioFrame) error
}
