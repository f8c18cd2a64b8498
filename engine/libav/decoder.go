package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/internal"
	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/xsync"
)

// decoder scales pictures announced by the parser to the target
// resolution in the engine's native NV12 layout. Like a hardware
// decoder instance, it is bound to the geometry it was created with and
// must be recreated when the geometry changes.
type decoder struct {
	params engine.DecoderParams

	locker     xsync.Mutex
	closer     *astikit.Closer
	sws        *astiav.SoftwareScaleContext
	nv12       *astiav.Frame
	hasPicture bool
	mapped     bool
}

var _ engine.Decoder = (*decoder)(nil)

// picture is a mapped decoded surface: an NV12 frame at the decoder's
// target resolution.
type picture struct {
	frame *astiav.Frame
}

var _ engine.Picture = (*picture)(nil)

func (p *picture) Pitch() uint32 {
	return uint32(p.frame.Linesize()[0])
}

func newDecoder(
	ctx context.Context,
	params engine.DecoderParams,
) (_ret *decoder, _err error) {
	logger.Tracef(ctx, "newDecoder(ctx, %s -> %s)", params.CodedResolution, params.TargetResolution)
	defer func() {
		logger.Tracef(ctx, "/newDecoder(ctx, %s -> %s): %v", params.CodedResolution, params.TargetResolution, _err)
	}()

	if params.CodedResolution.IsZero() || params.TargetResolution.IsZero() {
		return nil, fmt.Errorf("invalid geometry %s -> %s", params.CodedResolution, params.TargetResolution)
	}

	d := &decoder{
		params: params,
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			_ = d.Close(ctx)
		}
	}()

	sws, err := astiav.CreateSoftwareScaleContext(
		int(params.CodedResolution.Width),
		int(params.CodedResolution.Height),
		astiav.PixelFormatYuv420P,
		int(params.TargetResolution.Width),
		int(params.TargetResolution.Height),
		astiav.PixelFormatNv12,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create a software scale context: %w", err)
	}
	internal.SetFinalizerFree(ctx, sws)
	d.sws = sws

	d.nv12 = astiav.AllocFrame()
	d.closer.Add(d.nv12.Free)
	return d, nil
}

func (d *decoder) DecodePicture(
	ctx context.Context,
	info engine.PictureInfo,
) error {
	return xsync.DoA2R1(ctx, &d.locker, d.decodePicture, ctx, info)
}

func (d *decoder) decodePicture(
	ctx context.Context,
	info engine.PictureInfo,
) (_err error) {
	// The payload frame is owned by the parser that fired the callback we
	// are running inside of; it must not be retained or released here.
	src, ok := info.Payload.(*astiav.Frame)
	if !ok {
		return fmt.Errorf("expected a libav frame payload, got %T", info.Payload)
	}

	if d.sws == nil {
		return fmt.Errorf("the decoder is closed")
	}
	if d.mapped {
		return fmt.Errorf("the current picture is still mapped")
	}
	switch src.PixelFormat() {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P:
	default:
		return fmt.Errorf("unsupported pixel format %v", src.PixelFormat())
	}
	if uint32(src.Width()) != d.params.CodedResolution.Width ||
		uint32(src.Height()) != d.params.CodedResolution.Height {
		return fmt.Errorf(
			"the picture is %dx%d, but the decoder was created for %s",
			src.Width(), src.Height(), d.params.CodedResolution,
		)
	}

	d.nv12.Unref()
	if err := d.sws.ScaleFrame(src, d.nv12); err != nil {
		return fmt.Errorf("unable to scale the frame: %w", err)
	}
	d.hasPicture = true
	return nil
}

func (d *decoder) MapPicture(
	ctx context.Context,
) (engine.Picture, error) {
	return xsync.DoR2(ctx, &d.locker, func() (engine.Picture, error) {
		if !d.hasPicture {
			return nil, fmt.Errorf("no decoded picture to map")
		}
		if d.mapped {
			return nil, fmt.Errorf("the picture is already mapped")
		}
		d.mapped = true
		return &picture{frame: d.nv12}, nil
	})
}

func (d *decoder) UnmapPicture(
	ctx context.Context,
	pic engine.Picture,
) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		p, ok := pic.(*picture)
		if !ok {
			return fmt.Errorf("expected a libav picture, got %T", pic)
		}
		if p.frame != d.nv12 || !d.mapped {
			return fmt.Errorf("the picture is not mapped by this decoder")
		}
		d.mapped = false
		return nil
	})
}

func (d *decoder) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.closer == nil {
			return nil
		}
		err := d.closer.Close()
		d.closer = nil
		d.sws = nil
		d.nv12 = nil
		return err
	})
}
