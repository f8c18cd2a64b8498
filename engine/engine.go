// Package engine defines the boundary to the underlying bitstream decoder
// engine: bitstream parsing, picture decoding, device buffers and the
// pixel-format conversion kernel. The package contains interfaces only;
// concrete engines live in subpackages (see libav).
package engine

import (
	"context"
	"fmt"
)

// Engine is the capability the platform provides: it can create bitstream
// parsers, picture decoders, device buffers and conversion kernels.
//
// An Engine is safe for concurrent use; the objects it creates are not
// (see the respective interfaces).
type Engine interface {
	fmt.Stringer

	NewParser(ctx context.Context, params ParserParams) (Parser, error)
	NewDecoder(ctx context.Context, params DecoderParams) (Decoder, error)
	AllocBuffer(ctx context.Context, size uint64) (DeviceBuffer, error)
	NewConverter(ctx context.Context) (Converter, error)
}

// DeviceBuffer is an opaque device-owned memory buffer.
type DeviceBuffer interface {
	Size() uint64
	Free(ctx context.Context) error
}
