package engine

import (
	"context"

	"github.com/xaionaro-go/vidpipe/types"
)

// DecoderParams describes the geometry a Decoder instance is created
// with. The stream is assumed to be a single constant-profile 4:2:0
// progressive codec; no further codec configuration is exposed.
type DecoderParams struct {
	// CodedResolution is the resolution of the pictures in the stream.
	CodedResolution types.Resolution
	// TargetResolution is the resolution decoded pictures are scaled
	// to before mapping.
	TargetResolution types.Resolution
}

// Picture is a mapped decoded surface in the engine's native planar
// 4:2:0 layout, living in device memory.
type Picture interface {
	// Pitch is the stride of the luma plane in bytes.
	Pitch() uint32
}

// Decoder decodes pictures announced by a Parser and maps them for
// conversion. At most one picture is in flight at a time.
//
// A Decoder is not safe for concurrent use.
type Decoder interface {
	DecodePicture(ctx context.Context, info PictureInfo) error
	MapPicture(ctx context.Context) (Picture, error)
	UnmapPicture(ctx context.Context, pic Picture) error
	Close(ctx context.Context) error
}
