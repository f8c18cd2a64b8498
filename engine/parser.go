package engine

import (
	"context"

	"github.com/xaionaro-go/vidpipe/types"
)

// SequenceInfo describes the stream geometry the parser observed in
// a sequence header.
type SequenceInfo struct {
	DisplayResolution  types.Resolution
	CodedResolution    types.Resolution
	BitDepthLumaMinus8 uint8
	ChromaFormat420    bool
	Progressive        bool
}

// PictureInfo describes one picture that became ready for decoding.
// CodedResolution is the picture's true coded size (derived from the
// macroblock counts, so always a multiple of 16). Payload is an opaque
// engine-specific value to be passed to Decoder.DecodePicture; it stays
// owned by the parser and is only valid until the callback returns, so
// DecodePicture must be invoked from within the callback (if at all).
type PictureInfo struct {
	CodedResolution types.Resolution
	Payload         any
}

// ErrAborted is returned by Parser.SubmitPacket when a callback
// returned false.
type ErrAborted struct{}

func (ErrAborted) Error() string {
	return "aborted by the callback"
}

// SequenceCallback is invoked by Parser.SubmitPacket when a new sequence
// header is observed. Returning false aborts handling of the packet.
type SequenceCallback func(ctx context.Context, info SequenceInfo) bool

// PictureCallback is invoked by Parser.SubmitPacket for each picture that
// became decodable. Returning false aborts handling of the packet.
type PictureCallback func(ctx context.Context, info PictureInfo) bool

type ParserParams struct {
	// MaxDisplayDelay is the amount of frames the engine is allowed to
	// withhold for reordering. Zero means every submitted packet that
	// carries a picture fires OnPictureDecoded before SubmitPacket returns.
	MaxDisplayDelay uint32

	OnSequence       SequenceCallback
	OnPictureDecoded PictureCallback
}

// Parser consumes raw access units and fires the callbacks from
// ParserParams synchronously, before SubmitPacket returns. It is the
// only place where control re-enters the caller mid-operation, so the
// caller must not hold invariant-violating intermediate state across
// SubmitPacket.
//
// A Parser is not safe for concurrent use.
type Parser interface {
	SubmitPacket(ctx context.Context, data []byte) error
	Close(ctx context.Context) error
}
