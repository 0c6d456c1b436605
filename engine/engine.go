// Package engine defines the contract of the stateful hardware decode engine
// that the coordinator drives. The engine itself (a libva/MediaCodec/...
// binding) is an external collaborator; this package only pins down the
// semantics the coordinator relies on.
package engine

import (
	"context"

	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
)

// SurfaceReadyFunc is how the engine reports one decoded frame. The call
// transfers one reference of the surface to the callee. The engine may keep
// its own references (e.g. for use as a reference frame) and drops them on
// its own schedule.
//
// The callback is invoked synchronously from within Decode or Flush, on the
// goroutine that called them.
type SurfaceReadyFunc func(ctx context.Context, bufferID types.BufferID, surf *surface.Surface)

// StepResult is the outcome of one decode step.
type StepResult int

const (
	// StepAllocateNewSurfaces means the engine needs a different surface
	// set (count and/or size) before it can continue; see
	// RequiredSurfaceCount and PictureSize.
	StepAllocateNewSurfaces = StepResult(iota)

	// StepRanOutOfStreamData means the current bitstream buffer is fully
	// consumed.
	StepRanOutOfStreamData

	// StepRanOutOfSurfaces means the engine needs more decode-target
	// surfaces (via ReuseSurface) to make progress.
	StepRanOutOfSurfaces

	// StepDecodeError means an unrecoverable decode failure.
	StepDecodeError
)

func (r StepResult) String() string {
	switch r {
	case StepAllocateNewSurfaces:
		return "allocate_new_surfaces"
	case StepRanOutOfStreamData:
		return "ran_out_of_stream_data"
	case StepRanOutOfSurfaces:
		return "ran_out_of_surfaces"
	case StepDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Engine is one instance of the hardware decode engine. Unless noted
// otherwise, all methods are invoked from the coordinator's single worker
// goroutine, so implementations do not have to be concurrency-safe across
// them.
type Engine interface {
	// SetStream points the engine at the next bitstream fragment to
	// consume.
	SetStream(ctx context.Context, data []byte, bufferID types.BufferID)

	// Decode performs one decode step against the current stream,
	// reporting any completed frames via the SurfaceReadyFunc it was
	// constructed with.
	Decode(ctx context.Context) StepResult

	// Flush makes the engine emit every frame it is still holding back
	// (via SurfaceReadyFunc). It must not require new input or new
	// surfaces to do so.
	Flush(ctx context.Context) error

	// Reset drops all in-progress decode state, including the current
	// stream and any held-back frames, and drops the engine's references
	// to the surfaces backing them. The engine must be ready to accept a
	// new stream afterwards.
	Reset(ctx context.Context) error

	// ReuseSurface hands one decode-target surface (with one reference,
	// which becomes the engine's) to the engine.
	ReuseSurface(ctx context.Context, surf *surface.Surface)

	// CreateSurfaces allocates `count` hardware surfaces of size `size`
	// and returns their IDs. Invoked from the control context while the
	// worker is suspended.
	CreateSurfaces(ctx context.Context, count int, size types.Size) ([]types.SurfaceID, error)

	// DestroySurfaces frees every surface previously allocated via
	// CreateSurfaces. Only legal once all of them were returned. Invoked
	// from the control context while the worker is suspended.
	DestroySurfaces(ctx context.Context) error

	// RequiredSurfaceCount and PictureSize describe the surface set the
	// engine asked for with StepAllocateNewSurfaces.
	RequiredSurfaceCount() int
	PictureSize() types.Size

	// Close releases the engine. May be invoked from any goroutine, but
	// never concurrently with the methods above.
	Close(ctx context.Context) error
}
