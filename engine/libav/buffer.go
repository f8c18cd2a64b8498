package libav

import (
	"context"
	"fmt"
)

// deviceBuffer emulates a device-owned buffer in host memory.
type deviceBuffer struct {
	data []byte
}

func (b *deviceBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *deviceBuffer) Free(ctx context.Context) error {
	if b.data == nil {
		return fmt.Errorf("the buffer is already freed")
	}
	b.data = nil
	return nil
}
