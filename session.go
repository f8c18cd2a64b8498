// Package vidpipe implements a streaming video-decode session manager:
// it drives a decoder engine through a sequence of compressed packets
// and produces uncompressed RGB24 frames at a caller-specified output
// resolution.
//
// Most of the involved parts of the logic are sizing: there are multiple
// sizes of relevance. 1) The size we expected images to be when creating
// the decoder; 2) the size the user wanted when creating the decoder;
// 3) the size of the image coming from the stream, and 4) the size that
// the user wants /now/. Because windows might be resized, (1) is not
// always == (3) and (2) is not always == (4). Worse, typically one has a
// frame or more of latency: a resize operation will change (4) in frame
// N and then (3) in frame N+x.
package vidpipe

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/helpers/closuresignaler"
	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
)

const (
	// The engine can usually handle larger surfaces (NVDEC does 8Kx8K for
	// H.264), but this library was never validated beyond these; an
	// oversized stream is warned about and attempted anyway.
	MaxWidth  = 4096
	MaxHeight = 4096
)

// dims is the sizing state of a session, kept as one value-type record:
//  1. CreatedInput: the source dims the decoder instance was created with;
//  2. CreatedOutput: the target dims the decoder instance was created with;
//  3. ObservedStream: the dims the engine reported for the picture
//     actually decoded; zero means "not yet known".
//
// Size (4), the dims the user wants now, is not stored: it is the
// argument to Decode.
type dims struct {
	CreatedInput   types.Resolution
	CreatedOutput  types.Resolution
	ObservedStream types.Resolution
}

// DecodeSession is a single long-lived decode stream. It configures
// itself lazily from the first packet's discovered geometry.
//
// A DecodeSession must not be used concurrently: Decode is not
// reentrant and no internal locking is provided. Independent sessions
// are fully independent.
type DecodeSession struct {
	*closuresignaler.ClosureSignaler

	binding decoderBinding
	stats   SessionStatistics

	initialized bool
	setupFailed bool
	dims        dims
	rgb         engine.DeviceBuffer
	converter   engine.Converter

	// emptyResubmits guards against endless resubmission of a packet
	// that carries no picture data. It counts consecutive submissions
	// that resolved no size, across Decode calls.
	emptyResubmits int

	// deferredErr carries an error raised inside a callback out of the
	// engine's submit call, so it is not flattened into a generic
	// submission failure.
	deferredErr error
}

// NewDecodeSession creates an empty decode session on top of the given
// engine: no parser, no decoder, no buffers until the first packet.
func NewDecodeSession(
	ctx context.Context,
	eng engine.Engine,
) *DecodeSession {
	s := &DecodeSession{
		ClosureSignaler: closuresignaler.New(),
		binding: decoderBinding{
			engine: eng,
		},
	}
	s.binding.onSequence = s.handleSequence
	s.binding.onPictureDecoded = s.handlePicture
	return s
}

func (s *DecodeSession) String() string {
	return fmt.Sprintf("DecodeSession(%s)", s.binding.engine)
}

// handleSequence is invoked by the engine, synchronously from inside
// submitPacket, when a new sequence header is observed in the stream.
func (s *DecodeSession) handleSequence(
	ctx context.Context,
	info engine.SequenceInfo,
) bool {
	ctx = belt.WithField(ctx, "session", s.String())
	logger.Tracef(ctx, "handleSequence: %s", spew.Sdump(info))

	// Warn the user if the image is too large, but try it anyway.
	if info.DisplayResolution.Width > MaxWidth || info.DisplayResolution.Height > MaxHeight {
		logger.Warnf(ctx, "video stream exceeds (%dx%d) limits", MaxWidth, MaxHeight)
	}
	if info.BitDepthLumaMinus8 != 0 {
		logger.Warnf(ctx,
			"unhandled bit depth (%d); was the stream produced by a different version of this library?",
			info.BitDepthLumaMinus8,
		)
		return false
	}
	assertDebug(ctx, info.Progressive)
	assertDebug(ctx, info.ChromaFormat420)

	if info.CodedResolution.Height != info.DisplayResolution.Height {
		// This appears to happen sometimes; which height are we supposed to use?
		logger.Tracef(ctx, "coded height (%d) does not correspond to height (%d)",
			info.CodedResolution.Height, info.DisplayResolution.Height)
	}

	// If this is our first sequence, both the decoder and our internal
	// buffer need initializing. Output size defaults to the input size;
	// the resize path corrects it if the caller asked for something else.
	if !s.initialized {
		if err := s.initializeDecoder(ctx, info.DisplayResolution, info.DisplayResolution); err != nil {
			s.deferredErr = err
			return false
		}
	}
	return true
}

// handlePicture is invoked by the engine, synchronously from inside
// submitPacket, when a specific picture became decodable.
func (s *DecodeSession) handlePicture(
	ctx context.Context,
	info engine.PictureInfo,
) bool {
	if s.binding.decoder == nil {
		logger.Errorf(ctx, "got a picture but have no decoder instance")
		return false
	}
	// A picture whose geometry differs from what the decoder instance was
	// created with cannot be fed to it. Record the new size and report
	// success: Decode sees the mismatch, recreates the decoder and
	// resubmits the same packet, and then we land here again with a
	// matching instance.
	if info.CodedResolution != s.dims.CreatedInput {
		s.dims.ObservedStream = info.CodedResolution
		return true
	}
	if err := s.binding.decoder.DecodePicture(ctx, info); err != nil {
		logger.Warnf(ctx, "error decoding frame: %v", err)
		return false
	}
	// Set this only after the decode+error check: a non-zero
	// ObservedStream is how we know this callback executed successfully.
	s.dims.ObservedStream = info.CodedResolution
	s.stats.FramesDecoded.Inc()
	return true
}

// initializeDecoder creates (or recreates, after destroyDecoder) the
// decoder for the given geometry and makes sure the intermediate RGB
// buffer matches the output geometry. The buffer is reallocated, never
// resized in place, and only when the output size actually changed.
func (s *DecodeSession) initializeDecoder(
	ctx context.Context,
	inputRes types.Resolution,
	outputRes types.Resolution,
) (_err error) {
	logger.Debugf(ctx, "initializeDecoder(ctx, %s, %s)", inputRes, outputRes)
	defer func() { logger.Debugf(ctx, "/initializeDecoder(ctx, %s, %s): %v", inputRes, outputRes, _err) }()
	assert(ctx, !inputRes.IsZero())
	assert(ctx, !outputRes.IsZero())

	if err := s.binding.createDecoder(ctx, inputRes, outputRes); err != nil {
		return ErrDecodeSetup{Err: err}
	}
	s.dims.CreatedInput = inputRes

	if outputRes != s.dims.CreatedOutput {
		if s.rgb != nil {
			if err := s.rgb.Free(ctx); err != nil {
				return ErrDecodeSetup{Err: fmt.Errorf("unable to free the internal RGB buffer: %w", err)}
			}
			s.rgb = nil
		}
		// After decode, the picture is in the engine's planar format. The
		// conversion kernel reorganizes it to RGB24 into this buffer; a
		// plain copy then puts it into the output buffer, since our API
		// works completely on host memory for now.
		rgb, err := s.binding.engine.AllocBuffer(ctx, outputRes.RGB24Size())
		if err != nil {
			return ErrDecodeSetup{Err: fmt.Errorf("unable to allocate the internal RGB buffer: %w", err)}
		}
		s.rgb = rgb
		s.dims.CreatedOutput = outputRes
	}

	s.initialized = true
	return nil
}

// resizeDecoder destroys the current decoder instance and recreates it
// with the new geometry. Destroy and create share one release/create
// path with session teardown and first initialization.
func (s *DecodeSession) resizeDecoder(
	ctx context.Context,
	inputRes types.Resolution,
	outputRes types.Resolution,
) (_err error) {
	logger.Debugf(ctx, "resizeDecoder(ctx, %s, %s)", inputRes, outputRes)
	defer func() { logger.Debugf(ctx, "/resizeDecoder(ctx, %s, %s): %v", inputRes, outputRes, _err) }()

	s.binding.destroyDecoder(ctx)
	s.stats.Resizes.Inc()
	return s.initializeDecoder(ctx, inputRes, outputRes)
}

// StreamResolution returns the last picture size the stream reported,
// or the zero value if no picture was decoded yet.
func (s *DecodeSession) StreamResolution() types.Resolution {
	return s.dims.ObservedStream
}

// GetStats returns a snapshot of the session's counters.
func (s *DecodeSession) GetStats() *Statistics {
	return ptr(s.stats.Convert())
}

// Close releases the decoder, the parser, the intermediate buffer and
// the converter, in that order. Release failures are logged, never
// escalated: teardown must not fail loudly. Close is idempotent.
func (s *DecodeSession) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	if s.IsClosed() {
		return nil
	}
	s.ClosureSignaler.Close(ctx)

	s.binding.close(ctx)
	if s.rgb != nil {
		if err := s.rgb.Free(ctx); err != nil {
			logger.Errorf(ctx, "error freeing the decode temporary buffer: %v", err)
		}
		s.rgb = nil
	}
	if s.converter != nil {
		if err := s.converter.Close(ctx); err != nil {
			logger.Errorf(ctx, "error destroying the converter: %v", err)
		}
		s.converter = nil
	}
	return nil
}
