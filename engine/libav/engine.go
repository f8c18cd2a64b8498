// Package libav implements the engine boundary on top of libav (via
// go-astiav): a software fallback with the same contract as a hardware
// decode engine. Device memory is emulated in host memory and the
// asynchronous conversion queue is emulated by deferring work until
// Sync.
package libav

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/vidpipe/engine"
)

type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

func (e *Engine) String() string {
	return "Libav"
}

func (e *Engine) NewParser(
	ctx context.Context,
	params engine.ParserParams,
) (engine.Parser, error) {
	return newParser(ctx, params)
}

func (e *Engine) NewDecoder(
	ctx context.Context,
	params engine.DecoderParams,
) (engine.Decoder, error) {
	return newDecoder(ctx, params)
}

func (e *Engine) AllocBuffer(
	ctx context.Context,
	size uint64,
) (engine.DeviceBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("refusing to allocate an empty buffer")
	}
	return &deviceBuffer{data: make([]byte, size)}, nil
}

func (e *Engine) NewConverter(
	ctx context.Context,
) (engine.Converter, error) {
	return newConverter(ctx), nil
}
