package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/vidpipe/engine"
	"github.com/xaionaro-go/vidpipe/internal"
	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
	"github.com/xaionaro-go/xsync"
)

// converter reorganizes NV12 pictures into packed RGB24. The
// asynchronous-queue contract of a device stream is emulated: Convert
// and CopyToHost only enqueue work, Sync executes it in order.
type converter struct {
	locker xsync.Mutex
	closer *astikit.Closer
	queue  []func(context.Context) error

	sws    *astiav.SoftwareScaleContext
	swsRes types.Resolution
	rgb    *astiav.Frame
}

var _ engine.Converter = (*converter)(nil)

func newConverter(ctx context.Context) *converter {
	c := &converter{
		closer: astikit.NewCloser(),
	}
	c.rgb = astiav.AllocFrame()
	c.closer.Add(c.rgb.Free)
	return c
}

func (c *converter) Convert(
	ctx context.Context,
	src engine.Picture,
	res types.Resolution,
	dst engine.DeviceBuffer,
) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		pic, ok := src.(*picture)
		if !ok {
			return fmt.Errorf("expected a libav picture, got %T", src)
		}
		buf, ok := dst.(*deviceBuffer)
		if !ok {
			return fmt.Errorf("expected a libav buffer, got %T", dst)
		}
		if buf.Size() < res.RGB24Size() {
			return fmt.Errorf("the destination buffer is %d bytes, need %d", buf.Size(), res.RGB24Size())
		}
		c.queue = append(c.queue, func(ctx context.Context) error {
			return c.convert(ctx, pic, res, buf)
		})
		return nil
	})
}

func (c *converter) convert(
	ctx context.Context,
	pic *picture,
	res types.Resolution,
	dst *deviceBuffer,
) (_err error) {
	logger.Tracef(ctx, "convert: %s", res)
	defer func() { logger.Tracef(ctx, "/convert: %s: %v", res, _err) }()

	srcRes := types.Resolution{
		Width:  uint32(pic.frame.Width()),
		Height: uint32(pic.frame.Height()),
	}
	if srcRes != res {
		return fmt.Errorf("the mapped picture is %s, expected %s", srcRes, res)
	}

	if c.sws == nil || c.swsRes != res {
		sws, err := astiav.CreateSoftwareScaleContext(
			int(res.Width), int(res.Height), astiav.PixelFormatNv12,
			int(res.Width), int(res.Height), astiav.PixelFormatRgb24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagPoint),
		)
		if err != nil {
			return fmt.Errorf("unable to create a software scale context: %w", err)
		}
		// The previous context (if any) is released by its finalizer.
		internal.SetFinalizerFree(ctx, sws)
		c.sws = sws
		c.swsRes = res
	}

	c.rgb.Unref()
	if err := c.sws.ScaleFrame(pic.frame, c.rgb); err != nil {
		return fmt.Errorf("unable to convert the frame: %w", err)
	}

	data, err := c.rgb.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("unable to read the converted frame: %w", err)
	}
	nb := res.RGB24Size()
	if uint64(len(data)) < nb {
		return fmt.Errorf("the converted frame is %d bytes, expected %d", len(data), nb)
	}
	copy(dst.data, data[:nb])
	return nil
}

func (c *converter) CopyToHost(
	ctx context.Context,
	src engine.DeviceBuffer,
	dst []byte,
) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		buf, ok := src.(*deviceBuffer)
		if !ok {
			return fmt.Errorf("expected a libav buffer, got %T", src)
		}
		if uint64(len(dst)) > buf.Size() {
			return fmt.Errorf("the source buffer is %d bytes, the destination wants %d", buf.Size(), len(dst))
		}
		c.queue = append(c.queue, func(context.Context) error {
			copy(dst, buf.data)
			return nil
		})
		return nil
	})
}

func (c *converter) Sync(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		queue := c.queue
		c.queue = nil
		for _, item := range queue {
			if err := item(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *converter) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.closer == nil {
			return nil
		}
		err := c.closer.Close()
		c.closer = nil
		c.sws = nil
		c.rgb = nil
		c.queue = nil
		return err
	})
}
