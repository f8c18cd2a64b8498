package libav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocBuffer(t *testing.T) {
	ctx := context.Background()
	e := New()

	buf, err := e.AllocBuffer(ctx, 1920*1080*3)
	require.NoError(t, err)
	require.EqualValues(t, 1920*1080*3, buf.Size())

	require.NoError(t, buf.Free(ctx))
	require.Error(t, buf.Free(ctx), "double free must be detected")
}

func TestAllocBufferZeroSize(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.AllocBuffer(ctx, 0)
	require.Error(t, err)
}
