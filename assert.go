package avhwdecoder

import (
	"context"

	"github.com/xaionaro-go/avhwdecoder/internal"
)

func assert(ctx context.Context, mustBeTrue bool, extraArgs ...any) {
	internal.Assert(ctx, mustBeTrue, extraArgs...)
}
