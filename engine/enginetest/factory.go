package enginetest

import (
	"context"
	"slices"

	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/types"
)

const (
	DefaultSurfaceCount = 2
)

var DefaultFrameSize = types.Size{Width: 320, Height: 240}

// Factory builds enginetest Engines. The zero value is usable: it accepts
// every profile and produces engines with DefaultSurfaceCount surfaces of
// DefaultFrameSize.
type Factory struct {
	SurfaceCount      int
	FrameSize         types.Size
	ResizeAfterFrames int
	ResizeTo          types.Size

	FailCreateSurfaces bool

	// SupportedProfiles empty means "everything is supported".
	SupportedProfiles []engine.Profile

	NewEngineFn        func(ctx context.Context, profile engine.Profile, surfaceReady engine.SurfaceReadyFunc) (engine.Engine, error)
	NewEngineCallCount int

	// Engines accumulates every engine this factory has built.
	Engines []*Engine
}

var _ engine.Factory = (*Factory)(nil)

func (f *Factory) NewEngine(
	ctx context.Context,
	profile engine.Profile,
	surfaceReady engine.SurfaceReadyFunc,
) (engine.Engine, error) {
	f.NewEngineCallCount++
	if f.NewEngineFn != nil {
		return f.NewEngineFn(ctx, profile, surfaceReady)
	}
	if len(f.SupportedProfiles) > 0 && !slices.Contains(f.SupportedProfiles, profile) {
		return nil, engine.ErrUnsupportedProfile{Profile: profile}
	}

	e := &Engine{
		SurfaceReady:       surfaceReady,
		SurfaceCount:       f.SurfaceCount,
		FrameSize:          f.FrameSize,
		ResizeAfterFrames:  f.ResizeAfterFrames,
		ResizeTo:           f.ResizeTo,
		FailCreateSurfaces: f.FailCreateSurfaces,
	}
	if e.SurfaceCount == 0 {
		e.SurfaceCount = DefaultSurfaceCount
	}
	if e.FrameSize.IsZero() {
		e.FrameSize = DefaultFrameSize
	}
	f.Engines = append(f.Engines, e)
	return e, nil
}
