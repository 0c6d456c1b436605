package avhwdecoder

import (
	"context"

	"github.com/xaionaro-go/xsync"
)

// Statistics is a snapshot of the pipeline's observable counters.
type Statistics struct {
	State                  State `json:"state"`
	QueuedInputBuffers     int   `json:"queued_input_buffers"`
	StreamBuffersAtDecoder int32 `json:"stream_buffers_at_decoder"`
	FramesAtClient         int32 `json:"frames_at_client"`
	SurfacesAllocated      int   `json:"surfaces_allocated"`
	SurfacesAvailable      int   `json:"surfaces_available"`
	PendingOutputs         int   `json:"pending_outputs"`
	FreePictures           int   `json:"free_pictures"`
}

// GetStats returns the current snapshot of the pipeline counters.
func (d *Decoder) GetStats(ctx context.Context) Statistics {
	ctx = xsync.WithNoLogging(ctx, true)
	return xsync.DoR1(ctx, &d.locker, func() Statistics {
		return Statistics{
			State:                  d.state,
			QueuedInputBuffers:     len(d.inputQueue),
			StreamBuffersAtDecoder: d.streamBufsAtDecoder.Load(),
			FramesAtClient:         d.framesAtClient.Load(),
			SurfacesAllocated:      d.surfacePool.AllocatedCount(),
			SurfacesAvailable:      d.surfacePool.AvailableCount(),
			PendingOutputs:         len(d.pendingOutputs),
			FreePictures:           len(d.freePictures),
		}
	})
}

// GetState returns the current pipeline state.
func (d *Decoder) GetState(ctx context.Context) State {
	ctx = xsync.WithNoLogging(ctx, true)
	return xsync.DoR1(ctx, &d.locker, func() State {
		return d.state
	})
}
