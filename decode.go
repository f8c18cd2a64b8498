package vidpipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
)

const (
	// maxEmptyResubmits is how many times a packet that resolved to no
	// picture is resubmitted before giving up with ErrEmptyStream. One
	// tolerated resubmission matches an engine configured to withhold at
	// most one frame (MaxDisplayDelay == 0); this is a policy choice, not
	// a guarantee of the engine, and engines with deeper latency would
	// need a larger value.
	maxEmptyResubmits = 1

	// maxDecodeAttempts bounds the submissions of one Decode call. The
	// state converges within two transitions (one latency-resolution
	// resubmit, one resize resubmit) plus the final pass; one extra slot
	// tolerates a stream that flips its size right on the resubmission.
	maxDecodeAttempts = 3 + maxEmptyResubmits
)

// decodeStatus is the outcome of submitting a packet once.
type decodeStatus int

const (
	decodeStatusUndefined decodeStatus = iota
	// decodeStatusReady: sizes match, a decoded picture is waiting to be
	// mapped.
	decodeStatusReady
	// decodeStatusNeedsResubmitUnknownSize: the submission produced no
	// picture (latency gap), resubmit the same packet.
	decodeStatusNeedsResubmitUnknownSize
	// decodeStatusNeedsResize: the stream size or the requested size
	// diverged from what the decoder was created with.
	decodeStatusNeedsResize
)

// Decode decodes one compressed packet into output.
//
// The packet is one access unit of coded video data. output must be at
// least outputRes.Width*outputRes.Height*3 bytes; on success it is fully
// populated with interleaved RGB samples, row-major, no padding. On
// error its contents are unspecified.
//
// The stream's coded size and outputRes may each change between calls;
// the session reinitializes the decoder exactly when required. Decode
// blocks until the output buffer is fully populated.
func (s *DecodeSession) Decode(
	ctx context.Context,
	pkt []byte,
	output []byte,
	outputRes types.Resolution,
) (_err error) {
	logger.Tracef(ctx, "Decode(ctx, %d bytes, %d bytes, %s)", len(pkt), len(output), outputRes)
	defer func() {
		logger.Tracef(ctx, "/Decode(ctx, %d bytes, %d bytes, %s): %v", len(pkt), len(output), outputRes, _err)
	}()

	if len(pkt) == 0 {
		return ErrInvalidArgument{Err: fmt.Errorf("input buffer size is 0")}
	}
	if outputRes.IsZero() || outputRes.Height&0x1 == 1 {
		return ErrInvalidArgument{Err: fmt.Errorf("invalid output resolution %s: dimensions must be positive and the height even", outputRes)}
	}
	if uint64(len(output)) < outputRes.RGB24Size() {
		return ErrInvalidArgument{Err: fmt.Errorf("output buffer is %d bytes, need %d", len(output), outputRes.RGB24Size())}
	}
	if s.IsClosed() {
		return ErrInvalidArgument{Err: fmt.Errorf("the session is closed")}
	}
	if s.setupFailed {
		return ErrDecodeSetup{Err: fmt.Errorf("the session is defunct after an earlier setup failure")}
	}

	if err := s.binding.ensureParser(ctx); err != nil {
		s.setupFailed = true
		return ErrDecodeSetup{Err: err}
	}

	for attempt := 0; attempt < maxDecodeAttempts; attempt++ {
		status, err := s.submitPacket(ctx, pkt, outputRes)
		if err != nil {
			return err
		}
		switch status {
		case decodeStatusNeedsResubmitUnknownSize:
			s.stats.Resubmits.Inc()
			continue
		case decodeStatusNeedsResize:
			if err := s.resizeDecoder(ctx, s.dims.ObservedStream, outputRes); err != nil {
				s.setupFailed = true
				return err
			}
			continue
		case decodeStatusReady:
			return s.deliverPicture(ctx, output)
		default:
			assert(ctx, false, "unexpected decode status", status)
		}
	}
	return ErrDecode{Err: fmt.Errorf("sizing did not converge within %d submissions", maxDecodeAttempts)}
}

// submitPacket pushes the packet through the engine (which re-enters the
// session via the callbacks) and classifies the resulting state.
func (s *DecodeSession) submitPacket(
	ctx context.Context,
	pkt []byte,
	outputRes types.Resolution,
) (decodeStatus, error) {
	s.stats.PacketsSubmitted.Inc()
	s.stats.BytesIn.Add(uint64(len(pkt)))

	err := s.binding.submitPacket(ctx, pkt)
	if deferred := s.deferredErr; deferred != nil {
		s.deferredErr = nil
		var setupErr ErrDecodeSetup
		if errors.As(deferred, &setupErr) {
			s.setupFailed = true
		}
		return decodeStatusUndefined, deferred
	}
	if err != nil {
		return decodeStatusUndefined, ErrDecode{Err: fmt.Errorf("parsing video data failed: %w", err)}
	}

	if s.dims.ObservedStream.IsZero() {
		// A frame of latency means the engine doesn't always fire our
		// callbacks; just resubmit the packet, with a quick check that we
		// do not loop endlessly.
		if s.emptyResubmits >= maxEmptyResubmits {
			s.stats.EmptyStreamErrors.Inc()
			return decodeStatusUndefined, ErrEmptyStream{}
		}
		s.emptyResubmits++
		return decodeStatusNeedsResubmitUnknownSize, nil
	}
	s.emptyResubmits = 0

	// 4 cases: sizes are unchanged; size to scale to changed; input image
	// size changed; both changed. initializeDecoder checks for buffer size
	// differences itself, so they all boil down to: resize, then resubmit
	// the packet.
	if s.dims.ObservedStream != s.dims.CreatedInput || outputRes != s.dims.CreatedOutput {
		return decodeStatusNeedsResize, nil
	}
	return decodeStatusReady, nil
}

// deliverPicture runs the steady-state path: map the decoded picture,
// convert it into the intermediate RGB buffer, copy that to the output
// buffer, synchronize, unmap. The picture is unmapped on every exit
// path; an unmap failure after a prior failure is only logged, so the
// original error is the one surfaced to the caller.
func (s *DecodeSession) deliverPicture(
	ctx context.Context,
	output []byte,
) (_err error) {
	pic, err := s.binding.mapPicture(ctx)
	if err != nil {
		return ErrDecode{Err: fmt.Errorf("failed mapping frame: %w", err)}
	}
	defer func() {
		if err := s.binding.unmapPicture(ctx, pic); err != nil {
			if _err != nil {
				logger.Warnf(ctx, "could not unmap frame: %v", err)
				return
			}
			_err = ErrDecode{Err: fmt.Errorf("could not unmap frame: %w", err)}
		}
	}()

	if s.converter == nil {
		converter, err := s.binding.engine.NewConverter(ctx)
		if err != nil {
			return ErrDecode{Err: fmt.Errorf("unable to create the conversion kernel: %w", err)}
		}
		s.converter = converter
	}

	// Reformat the mapped picture into s.rgb; both are device memory.
	if err := s.converter.Convert(ctx, pic, s.dims.CreatedOutput, s.rgb); err != nil {
		return ErrDecode{Err: fmt.Errorf("conversion failed: %w", err)}
	}
	// Copy the result into the user's buffer.
	nb := s.dims.CreatedOutput.RGB24Size()
	if err := s.converter.CopyToHost(ctx, s.rgb, output[:nb]); err != nil {
		return ErrDecode{Err: fmt.Errorf("copying to the output buffer failed: %w", err)}
	}
	// Convert and CopyToHost are asynchronous; the caller is promised a
	// fully populated buffer on return.
	if err := s.converter.Sync(ctx); err != nil {
		return ErrDecode{Err: fmt.Errorf("synchronizing the conversion queue failed: %w", err)}
	}
	s.stats.BytesOut.Add(nb)
	return nil
}
