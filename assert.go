package vidpipe

import (
	"context"

	"github.com/xaionaro-go/vidpipe/internal"
)

// debugAsserts additionally crashes on programmer-error API misuse
// (e.g. calling Encode on a decode session). Disabled in release: the
// misuse is still reported through ErrInvalidArgument.
const debugAsserts = false

func assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	internal.Assert(ctx, mustBeTrue, extraArgs...)
}

func assertDebug(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if !debugAsserts {
		return
	}
	internal.Assert(ctx, mustBeTrue, extraArgs...)
}
