package vidpipe

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
)

// decoderBinding translates between the session's size/packet vocabulary
// and the engine's creation/submission/mapping primitives. It owns the
// parser and decoder handles.
//
// Careful: submitPacket is not a simple call/return. The engine invokes
// the two callbacks synchronously before submitPacket returns, and those
// callbacks mutate session state (see DecodeSession.handleSequence and
// DecodeSession.handlePicture). The session must not hold any
// invariant-violating intermediate state when calling submitPacket.
type decoderBinding struct {
	engine  engine.Engine
	parser  engine.Parser
	decoder engine.Decoder

	onSequence       engine.SequenceCallback
	onPictureDecoded engine.PictureCallback
}

// ensureParser lazily creates the parser. It is created on the first
// packet and lives for the session's lifetime; it is never recreated.
func (b *decoderBinding) ensureParser(ctx context.Context) (_err error) {
	if b.parser != nil {
		return nil
	}
	logger.Debugf(ctx, "ensureParser")
	defer func() { logger.Debugf(ctx, "/ensureParser: %v", _err) }()

	parser, err := b.engine.NewParser(ctx, engine.ParserParams{
		// When MaxDisplayDelay > 0, we can't assure that each input frame
		// will be ready immediately. If your application can tolerate frame
		// latency, you might consider increasing this. Diminishing returns
		// beyond 4.
		MaxDisplayDelay:  0,
		OnSequence:       b.onSequence,
		OnPictureDecoded: b.onPictureDecoded,
	})
	if err != nil {
		return fmt.Errorf("unable to create a parser: %w", err)
	}
	b.parser = parser
	return nil
}

func (b *decoderBinding) createDecoder(
	ctx context.Context,
	inputRes types.Resolution,
	outputRes types.Resolution,
) (_err error) {
	logger.Debugf(ctx, "createDecoder(ctx, %s, %s)", inputRes, outputRes)
	defer func() { logger.Debugf(ctx, "/createDecoder(ctx, %s, %s): %v", inputRes, outputRes, _err) }()
	assert(ctx, b.decoder == nil)

	decoder, err := b.engine.NewDecoder(ctx, engine.DecoderParams{
		CodedResolution:  inputRes,
		TargetResolution: outputRes,
	})
	if err != nil {
		return fmt.Errorf("unable to create a decoder for %s -> %s: %w", inputRes, outputRes, err)
	}
	b.decoder = decoder
	return nil
}

// destroyDecoder releases the current decoder instance. A release
// failure is logged, not escalated: teardown must never fail loudly.
func (b *decoderBinding) destroyDecoder(ctx context.Context) {
	if b.decoder == nil {
		return
	}
	if err := b.decoder.Close(ctx); err != nil {
		logger.Errorf(ctx, "error destroying decoder: %v", err)
	}
	b.decoder = nil
}

func (b *decoderBinding) submitPacket(ctx context.Context, data []byte) error {
	// This fires the on-sequence/on-picture callbacks before returning.
	return b.parser.SubmitPacket(ctx, data)
}

func (b *decoderBinding) mapPicture(ctx context.Context) (engine.Picture, error) {
	assert(ctx, b.decoder != nil)
	return b.decoder.MapPicture(ctx)
}

func (b *decoderBinding) unmapPicture(ctx context.Context, pic engine.Picture) error {
	assert(ctx, b.decoder != nil)
	return b.decoder.UnmapPicture(ctx, pic)
}

// close releases the decoder and the parser, in that order. Double-free
// is prevented by nulling each handle right after its release.
func (b *decoderBinding) close(ctx context.Context) {
	b.destroyDecoder(ctx)
	if b.parser != nil {
		if err := b.parser.Close(ctx); err != nil {
			logger.Errorf(ctx, "error destroying parser: %v", err)
		}
		b.parser = nil
	}
}
