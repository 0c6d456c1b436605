// Package enginetest provides a deterministic in-memory decode engine. Its
// default behavior is one decoded frame per bitstream buffer (no frame
// reordering, no reference frames kept), which is enough to exercise every
// path of the coordinator; any method can be overridden via the
// corresponding ...Fn field.
package enginetest

import (
	"context"

	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
)

type Engine struct {
	SurfaceReady engine.SurfaceReadyFunc

	// SurfaceCount and FrameSize describe the surface set the engine asks
	// for before decoding the first frame.
	SurfaceCount int
	FrameSize    types.Size

	// ResizeAfterFrames > 0 makes the engine request a new surface set of
	// size ResizeTo once that many frames were decoded (a mid-stream
	// resolution change).
	ResizeAfterFrames int
	ResizeTo          types.Size

	FailCreateSurfaces bool

	SetStreamFn             func(ctx context.Context, data []byte, bufferID types.BufferID)
	SetStreamCallCount      int
	DecodeFn                func(ctx context.Context) engine.StepResult
	DecodeCallCount         int
	FlushFn                 func(ctx context.Context) error
	FlushCallCount          int
	ResetFn                 func(ctx context.Context) error
	ResetCallCount          int
	ReuseSurfaceFn          func(ctx context.Context, surf *surface.Surface)
	ReuseSurfaceCallCount   int
	CloseFn                 func(ctx context.Context) error
	CloseCallCount          int
	CreateSurfacesCallCount int

	surfacesRequested bool
	resizeRequested   bool
	framePending      bool
	pendingBufferID   types.BufferID
	freeSurfaces      []*surface.Surface
	decodedFrames     int
	nextSurfaceID     types.SurfaceID
	allocatedCount    int
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) String() string {
	return "enginetest.Engine"
}

func (e *Engine) SetStream(
	ctx context.Context,
	data []byte,
	bufferID types.BufferID,
) {
	e.SetStreamCallCount++
	if e.SetStreamFn != nil {
		e.SetStreamFn(ctx, data, bufferID)
		return
	}
	e.framePending = true
	e.pendingBufferID = bufferID
}

func (e *Engine) Decode(ctx context.Context) engine.StepResult {
	e.DecodeCallCount++
	if e.DecodeFn != nil {
		return e.DecodeFn(ctx)
	}

	if !e.surfacesRequested {
		e.surfacesRequested = true
		return engine.StepAllocateNewSurfaces
	}
	if !e.framePending {
		return engine.StepRanOutOfStreamData
	}
	if e.ResizeAfterFrames > 0 && e.decodedFrames >= e.ResizeAfterFrames && !e.resizeRequested {
		e.resizeRequested = true
		e.FrameSize = e.ResizeTo
		e.releaseFreeSurfaces(ctx)
		return engine.StepAllocateNewSurfaces
	}
	if len(e.freeSurfaces) == 0 {
		return engine.StepRanOutOfSurfaces
	}

	surf := e.freeSurfaces[0]
	e.freeSurfaces = e.freeSurfaces[1:]
	bufferID := e.pendingBufferID
	e.framePending = false
	e.decodedFrames++

	surf.Ref()
	e.SurfaceReady(ctx, bufferID, surf)
	// one frame per buffer, no reference frames kept:
	surf.Unref(ctx)
	return engine.StepRanOutOfStreamData
}

func (e *Engine) Flush(ctx context.Context) error {
	e.FlushCallCount++
	if e.FlushFn != nil {
		return e.FlushFn(ctx)
	}
	// nothing is ever held back by the default behavior
	return nil
}

func (e *Engine) Reset(ctx context.Context) error {
	e.ResetCallCount++
	if e.ResetFn != nil {
		return e.ResetFn(ctx)
	}
	e.framePending = false
	return nil
}

func (e *Engine) ReuseSurface(
	ctx context.Context,
	surf *surface.Surface,
) {
	e.ReuseSurfaceCallCount++
	if e.ReuseSurfaceFn != nil {
		e.ReuseSurfaceFn(ctx, surf)
		return
	}
	e.freeSurfaces = append(e.freeSurfaces, surf)
}

func (e *Engine) CreateSurfaces(
	ctx context.Context,
	count int,
	size types.Size,
) ([]types.SurfaceID, error) {
	e.CreateSurfacesCallCount++
	if e.FailCreateSurfaces {
		return nil, ErrOutOfSurfaceMemory{}
	}
	ids := make([]types.SurfaceID, 0, count)
	for i := 0; i < count; i++ {
		e.nextSurfaceID++
		ids = append(ids, e.nextSurfaceID)
	}
	e.allocatedCount = count
	return ids, nil
}

func (e *Engine) DestroySurfaces(ctx context.Context) error {
	e.allocatedCount = 0
	return nil
}

func (e *Engine) RequiredSurfaceCount() int {
	return e.SurfaceCount
}

func (e *Engine) PictureSize() types.Size {
	return e.FrameSize
}

func (e *Engine) Close(ctx context.Context) error {
	e.CloseCallCount++
	if e.CloseFn != nil {
		return e.CloseFn(ctx)
	}
	e.releaseFreeSurfaces(ctx)
	return nil
}

func (e *Engine) releaseFreeSurfaces(ctx context.Context) {
	for _, surf := range e.freeSurfaces {
		surf.Unref(ctx)
	}
	e.freeSurfaces = nil
}

type ErrOutOfSurfaceMemory struct{}

func (e ErrOutOfSurfaceMemory) Error() string {
	return "out of surface memory"
}
