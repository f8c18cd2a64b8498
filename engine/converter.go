package engine

import (
	"context"

	"github.com/xaionaro-go/vidpipe/types"
)

// Converter is the pixel-format conversion kernel: it reorganizes a
// mapped picture from the engine's native planar 4:2:0 layout into
// packed RGB24 in a device buffer, and copies device buffers to host
// memory.
//
// Convert and CopyToHost are asynchronous: they enqueue work on the
// converter's execution queue and may return before the work completed.
// Sync blocks until everything enqueued so far finished; the caller must
// Sync before reading results from host memory.
//
// A Converter is not safe for concurrent use.
type Converter interface {
	Convert(ctx context.Context, src Picture, res types.Resolution, dst DeviceBuffer) error
	CopyToHost(ctx context.Context, src DeviceBuffer, dst []byte) error
	Sync(ctx context.Context) error
	Close(ctx context.Context) error
}
