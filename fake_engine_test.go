package vidpipe

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/types"
)

// fakeEvent scripts what one SubmitPacket call fires. A zero event fires
// nothing (the latency gap).
type fakeEvent struct {
	seq *engine.SequenceInfo
	pic *engine.PictureInfo
	err error
}

func seqEvent(width, height uint32) *engine.SequenceInfo {
	return &engine.SequenceInfo{
		DisplayResolution: types.Resolution{Width: width, Height: height},
		CodedResolution:   types.Resolution{Width: width, Height: height},
		ChromaFormat420:   true,
		Progressive:       true,
	}
}

func picEvent(width, height uint32) *engine.PictureInfo {
	return &engine.PictureInfo{
		CodedResolution: types.Resolution{Width: width, Height: height},
		Payload:         "fake-picture-payload",
	}
}

type fakeParser struct {
	params  engine.ParserParams
	script  []fakeEvent
	submits int
	closed  int
}

func (p *fakeParser) SubmitPacket(ctx context.Context, data []byte) error {
	p.submits++
	if len(p.script) == 0 {
		return nil
	}
	ev := p.script[0]
	p.script = p.script[1:]
	if ev.seq != nil {
		if !p.params.OnSequence(ctx, *ev.seq) {
			return engine.ErrAborted{}
		}
	}
	if ev.pic != nil {
		if !p.params.OnPictureDecoded(ctx, *ev.pic) {
			return engine.ErrAborted{}
		}
	}
	return ev.err
}

func (p *fakeParser) Close(ctx context.Context) error {
	p.closed++
	return nil
}

type fakePicture struct {
	decoder *fakeDecoder
}

func (p *fakePicture) Pitch() uint32 {
	return p.decoder.params.TargetResolution.Width
}

type fakeDecoder struct {
	params engine.DecoderParams
	// strict makes DecodePicture reject pictures whose geometry differs
	// from the creation geometry, the way the libav decoder does.
	strict    bool
	decoded   []types.Resolution
	rejects   int
	decodeErr error
	mapErr    error
	maps      int
	unmaps    int
	closed    int
}

func (d *fakeDecoder) DecodePicture(ctx context.Context, info engine.PictureInfo) error {
	if d.decodeErr != nil {
		return d.decodeErr
	}
	if d.strict && info.CodedResolution != d.params.CodedResolution {
		d.rejects++
		return fmt.Errorf(
			"the picture is %s, but the decoder was created for %s",
			info.CodedResolution, d.params.CodedResolution,
		)
	}
	d.decoded = append(d.decoded, info.CodedResolution)
	return nil
}

func (d *fakeDecoder) MapPicture(ctx context.Context) (engine.Picture, error) {
	if d.mapErr != nil {
		return nil, d.mapErr
	}
	d.maps++
	return &fakePicture{decoder: d}, nil
}

func (d *fakeDecoder) UnmapPicture(ctx context.Context, pic engine.Picture) error {
	d.unmaps++
	return nil
}

func (d *fakeDecoder) Close(ctx context.Context) error {
	d.closed++
	return nil
}

type fakeBuffer struct {
	size  uint64
	freed int
}

func (b *fakeBuffer) Size() uint64 {
	return b.size
}

func (b *fakeBuffer) Free(ctx context.Context) error {
	b.freed++
	return nil
}

// fakeConverter emulates the asynchronous queue: Convert and CopyToHost
// enqueue, Sync executes. CopyToHost fills the destination with a
// recognizable pattern.
type fakeConverter struct {
	queue      []func() error
	convertErr error
	converts   int
	copies     int
	syncs      int
	closed     int
}

const fakeConverterFill = 0x5a

func (c *fakeConverter) Convert(
	ctx context.Context,
	src engine.Picture,
	res types.Resolution,
	dst engine.DeviceBuffer,
) error {
	if c.convertErr != nil {
		return c.convertErr
	}
	if dst.Size() < res.RGB24Size() {
		return fmt.Errorf("the destination buffer is too small")
	}
	c.queue = append(c.queue, func() error {
		c.converts++
		return nil
	})
	return nil
}

func (c *fakeConverter) CopyToHost(
	ctx context.Context,
	src engine.DeviceBuffer,
	dst []byte,
) error {
	c.queue = append(c.queue, func() error {
		c.copies++
		for i := range dst {
			dst[i] = fakeConverterFill
		}
		return nil
	})
	return nil
}

func (c *fakeConverter) Sync(ctx context.Context) error {
	c.syncs++
	queue := c.queue
	c.queue = nil
	for _, item := range queue {
		if err := item(); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeConverter) Close(ctx context.Context) error {
	c.closed++
	return nil
}

type fakeEngine struct {
	script []fakeEvent

	strictDecoders bool
	parserErr      error
	decoderErr     error

	parsers    []*fakeParser
	decoders   []*fakeDecoder
	buffers    []*fakeBuffer
	converters []*fakeConverter
}

var _ engine.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) String() string {
	return "Fake"
}

func (e *fakeEngine) NewParser(
	ctx context.Context,
	params engine.ParserParams,
) (engine.Parser, error) {
	if e.parserErr != nil {
		return nil, e.parserErr
	}
	p := &fakeParser{
		params: params,
		script: e.script,
	}
	e.parsers = append(e.parsers, p)
	return p, nil
}

func (e *fakeEngine) NewDecoder(
	ctx context.Context,
	params engine.DecoderParams,
) (engine.Decoder, error) {
	if e.decoderErr != nil {
		return nil, e.decoderErr
	}
	d := &fakeDecoder{params: params, strict: e.strictDecoders}
	e.decoders = append(e.decoders, d)
	return d, nil
}

func (e *fakeEngine) AllocBuffer(
	ctx context.Context,
	size uint64,
) (engine.DeviceBuffer, error) {
	b := &fakeBuffer{size: size}
	e.buffers = append(e.buffers, b)
	return b, nil
}

func (e *fakeEngine) NewConverter(
	ctx context.Context,
) (engine.Converter, error) {
	c := &fakeConverter{}
	e.converters = append(e.converters, c)
	return c, nil
}

// lastParser is a convenience accessor: the session creates exactly one.
func (e *fakeEngine) lastParser() *fakeParser {
	return e.parsers[len(e.parsers)-1]
}

func (e *fakeEngine) lastDecoder() *fakeDecoder {
	return e.decoders[len(e.decoders)-1]
}

func (e *fakeEngine) totalSubmits() int {
	total := 0
	for _, p := range e.parsers {
		total += p.submits
	}
	return total
}
