package vidpipe

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/vidpipe/logger"
	"github.com/xaionaro-go/vidpipe/types"
)

// Encode always fails: a decode session cannot encode.
func (s *DecodeSession) Encode(
	ctx context.Context,
	_ []byte,
	_ []byte,
	_ types.Resolution,
) error {
	logger.Errorf(ctx, "a decode session cannot encode; create an encoder instead")
	assertDebug(ctx, false) // such use always indicates a programmer error
	return ErrInvalidArgument{Err: fmt.Errorf("a decode session cannot encode")}
}

// SetBitrate always fails: the bitrate is encoded into the stream and
// can only be changed on the encode side.
func (s *DecodeSession) SetBitrate(
	ctx context.Context,
	_ uint64,
) error {
	logger.Errorf(ctx, "the bitrate is encoded into the stream; it can only be changed on the encode side")
	assertDebug(ctx, false) // such use always indicates a programmer error
	return ErrInvalidArgument{Err: fmt.Errorf("the bitrate can only be changed on the encode side")}
}
