package avhwdecoder

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/picture"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
)

// surfaceReady is the callback the decode engine was constructed with. It is
// invoked on the worker goroutine (with the lock released), and carries one
// reference of the surface; staging and delivery happen on the control
// context.
func (d *Decoder) surfaceReady(
	ctx context.Context,
	bufferID types.BufferID,
	surf *surface.Surface,
) {
	logger.Tracef(ctx, "surfaceReady(%d, surface %d)", bufferID, surf.ID())
	posted := d.controlQueue.Post(ctx, func(ctx context.Context) {
		d.stageOutput(ctx, bufferID, surf)
	})
	if !posted {
		surf.Unref(ctx)
	}
}

func (d *Decoder) stageOutput(
	ctx context.Context,
	bufferID types.BufferID,
	surf *surface.Surface,
) {
	discard := false
	d.locker.Do(ctx, func() {
		// drop any requests to output if we are resetting or being
		// destroyed (or the teardown already completed)
		if d.state == StateResetting || d.state == StateDestroying || d.state == StateUninitialized {
			discard = true
			return
		}
		assert(ctx, !d.awaitingSurfaceSetChange)
		d.pendingOutputs = append(d.pendingOutputs, pendingOutput{
			surf:     surf,
			bufferID: bufferID,
		})
	})
	if discard {
		logger.Debugf(ctx, "dropping the decoded frame of buffer %d: state forbids outputting", bufferID)
		surf.Unref(ctx)
		return
	}
	d.tryOutputPicture(ctx)
}

// tryOutputPicture matches the oldest pending output with any free output
// target; if either side is missing, delivery stays deferred until the next
// trigger (a new pending output or a returned picture). Control context
// only.
func (d *Decoder) tryOutputPicture(ctx context.Context) {
	var out pendingOutput
	var pic *picture.Picture
	got := false
	d.locker.Do(ctx, func() {
		if len(d.pendingOutputs) == 0 || len(d.freePictures) == 0 {
			return
		}
		out = d.pendingOutputs[0]
		d.pendingOutputs = d.pendingOutputs[1:]
		pictureID := d.freePictures[0]
		d.freePictures = d.freePictures[1:]
		pic = d.pictures[pictureID]
		assert(ctx, pic != nil)
		got = true
	})
	if got {
		d.outputPicture(ctx, out, pic)
	}

	// a pending flush can complete once the staging is empty
	flushDone := false
	d.locker.Do(ctx, func() {
		flushDone = d.finishFlushPending && len(d.pendingOutputs) == 0
	})
	if flushDone {
		d.finishFlush(ctx)
	}
}

func (d *Decoder) outputPicture(
	ctx context.Context,
	out pendingOutput,
	pic *picture.Picture,
) {
	logger.Debugf(ctx, "outputting surface %d into picture %d (buffer %d)",
		out.surf.ID(), pic.ID(), out.bufferID)

	if err := d.cfg.Sink.CopySurface(ctx, out.surf, pic); err != nil {
		out.surf.Unref(ctx)
		d.notifyError(ctx, ErrPlatformFailure{
			Err: fmt.Errorf("unable to copy surface %d into picture %d: %w", out.surf.ID(), pic.ID(), err),
		})
		return
	}

	d.framesAtClient.Inc()
	logger.Tracef(ctx, "frames at client: %d", d.framesAtClient.Load())
	d.emitPictureReady(ctx, pic.ID(), out.bufferID, types.RectFromSize(pic.Size()))
	out.surf.Unref(ctx)
}

// ReusePicture returns a previously delivered output target to the free
// list and immediately attempts to satisfy the oldest pending output with
// it. Returns of targets which were dismissed in the meantime are ignored.
func (d *Decoder) ReusePicture(
	ctx context.Context,
	pictureID types.PictureID,
) {
	logger.Debugf(ctx, "ReusePicture(%d)", pictureID)
	defer func() { logger.Debugf(ctx, "/ReusePicture(%d)", pictureID) }()

	known := true
	d.locker.Do(ctx, func() {
		if _, ok := d.pictures[pictureID]; !ok {
			known = false
			return
		}
		for _, freeID := range d.freePictures {
			if freeID == pictureID {
				logger.Warnf(ctx, "picture %d was returned twice, ignoring", pictureID)
				known = false
				return
			}
		}
		d.framesAtClient.Dec()
		d.freePictures = append(d.freePictures, pictureID)
	})
	if !known {
		logger.Debugf(ctx, "not reusing picture %d: not a held member of the current picture set", pictureID)
		return
	}
	d.controlQueue.Post(ctx, d.tryOutputPicture)
}

// onSurfaceReleased fires when the last reference to a loaned surface is
// dropped; that may happen on any goroutine (e.g. the graphics runtime
// recycling a resource), so the pool mutation is posted into the control
// context instead of being performed in place.
func (d *Decoder) onSurfaceReleased(
	ctx context.Context,
	surfaceID types.SurfaceID,
) {
	posted := d.controlQueue.Post(ctx, func(ctx context.Context) {
		d.recycleSurface(ctx, surfaceID)
	})
	if !posted {
		logger.Debugf(ctx, "not recycling surface %d: the coordinator is gone", surfaceID)
	}
}

func (d *Decoder) recycleSurface(
	ctx context.Context,
	surfaceID types.SurfaceID,
) {
	recycled := true
	d.locker.Do(ctx, func() {
		if err := d.surfacePool.Recycle(surfaceID); err != nil {
			// a leftover of an already dismissed surface set
			logger.Debugf(ctx, "not recycling surface %d: %v", surfaceID, err)
			recycled = false
		}
	})
	if !recycled {
		return
	}
	d.surfacesAvailable.Broadcast()
	d.tryFinishSurfaceSetChange(ctx)
}
