package libav

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
	"github.com/xaionaro-go/xsync"
)

// parser drives the libav H.264 decoder and emulates the callback
// contract of a hardware bitstream parser: the decoded frame's geometry
// is turned into an on-sequence callback (when the geometry changes) and
// an on-picture-decoded callback, both fired synchronously before
// SubmitPacket returns.
type parser struct {
	params engine.ParserParams

	locker       xsync.Mutex
	closer       *astikit.Closer
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	pkt          *astiav.Packet
	frame        *astiav.Frame
	lastSequence types.Resolution
}

var _ engine.Parser = (*parser)(nil)

func newParser(
	ctx context.Context,
	params engine.ParserParams,
) (_ret *parser, _err error) {
	logger.Tracef(ctx, "newParser")
	defer func() { logger.Tracef(ctx, "/newParser: %v", _err) }()

	if params.MaxDisplayDelay != 0 {
		return nil, fmt.Errorf("only MaxDisplayDelay == 0 is supported")
	}

	p := &parser{
		params: params,
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			_ = p.Close(ctx)
		}
	}()

	p.codec = astiav.FindDecoder(astiav.CodecIDH264)
	if p.codec == nil {
		return nil, fmt.Errorf("unable to find an H.264 decoder")
	}
	p.codecContext = astiav.AllocCodecContext(p.codec)
	if p.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate a codec context")
	}
	p.closer.Add(p.codecContext.Free)
	if err := p.codecContext.Open(p.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open the codec context: %w", err)
	}

	p.pkt = astiav.AllocPacket()
	p.closer.Add(p.pkt.Free)
	p.frame = astiav.AllocFrame()
	p.closer.Add(p.frame.Free)
	return p, nil
}

func (p *parser) SubmitPacket(
	ctx context.Context,
	data []byte,
) error {
	return xsync.DoA2R1(ctx, &p.locker, p.submitPacket, ctx, data)
}

func (p *parser) submitPacket(
	ctx context.Context,
	data []byte,
) (_err error) {
	logger.Tracef(ctx, "submitPacket: %d bytes", len(data))
	defer func() { logger.Tracef(ctx, "/submitPacket: %v", _err) }()
	if p.codecContext == nil {
		return fmt.Errorf("the parser is closed")
	}

	if err := p.pkt.FromData(data); err != nil {
		return fmt.Errorf("unable to fill the packet: %w", err)
	}
	defer p.pkt.Unref()

	if err := p.codecContext.SendPacket(p.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("unable to send the packet: %w", err)
	}

	for {
		if err := p.codecContext.ReceiveFrame(p.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				// The latency gap: the packet produced no picture (yet).
				return nil
			}
			return fmt.Errorf("unable to receive a frame: %w", err)
		}
		ok := p.fireCallbacks(ctx)
		p.frame.Unref()
		if !ok {
			return engine.ErrAborted{}
		}
	}
}

func (p *parser) fireCallbacks(ctx context.Context) bool {
	res := types.Resolution{
		Width:  uint32(p.frame.Width()),
		Height: uint32(p.frame.Height()),
	}

	if res != p.lastSequence {
		bitDepth := bitDepthLumaMinus8(p.frame.PixelFormat())
		info := engine.SequenceInfo{
			DisplayResolution:  res,
			CodedResolution:    res,
			BitDepthLumaMinus8: bitDepth,
			ChromaFormat420:    bitDepth == 0,
			Progressive:        true,
		}
		if p.params.OnSequence != nil && !p.params.OnSequence(ctx, info) {
			return false
		}
		p.lastSequence = res
	}

	if p.params.OnPictureDecoded == nil {
		return true
	}
	// The payload frame stays owned by us: the callback (and whatever it
	// feeds the payload to) must be done with it by the time it returns.
	payload := getFrame()
	payload.Ref(p.frame)
	info := engine.PictureInfo{
		CodedResolution: res,
		Payload:         payload,
	}
	ok := p.params.OnPictureDecoded(ctx, info)
	putFrame(payload)
	return ok
}

func (p *parser) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &p.locker, func() error {
		if p.closer == nil {
			return nil
		}
		err := p.closer.Close()
		p.closer = nil
		p.codecContext = nil
		p.pkt = nil
		p.frame = nil
		return err
	})
}

// bitDepthLumaMinus8 reports the luma bit depth above 8 for the pixel
// formats the H.264 decoder can hand us. Only the 8-bit 4:2:0 formats
// are handled by this library; everything else is reported as deeper so
// the session rejects it.
func bitDepthLumaMinus8(pixFmt astiav.PixelFormat) uint8 {
	switch pixFmt {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P, astiav.PixelFormatNv12:
		return 0
	default:
		return 2
	}
}
