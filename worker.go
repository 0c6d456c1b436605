package avhwdecoder

import (
	"context"
	"errors"

	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/xsync"
)

// decodeTask runs on the worker goroutine and performs decode steps until it
// runs out of input, gets suspended by a surface set change, or observes a
// state that forbids continuing.
func (d *Decoder) decodeTask(ctx context.Context) {
	ctx = xsync.WithNoLogging(ctx, true)
	logger.Tracef(ctx, "decodeTask")
	defer func() { logger.Tracef(ctx, "/decodeTask") }()

	d.locker.Do(ctx, func() {
		if d.state != StateDecoding && d.state != StateFlushing {
			logger.Debugf(ctx, "skipping the decode task: state == '%v'", d.state)
			return
		}

		for d.getInputBuffer(ctx) {
			assert(ctx, d.currInput != nil)

			var stepResult engine.StepResult
			// It is OK to release the lock here: the engine never calls
			// into the control interface directly, and we re-check the
			// state on every iteration. Keeping the lock for the duration
			// of the decode step would defeat the purpose of having a
			// separate worker goroutine.
			d.locker.UDo(ctx, func() {
				stepResult = d.engine.Decode(ctx)
			})
			logger.Tracef(ctx, "decode step result: %v", stepResult)

			switch stepResult {
			case engine.StepAllocateNewSurfaces:
				count := d.engine.RequiredSurfaceCount()
				size := d.engine.PictureSize()
				logger.Debugf(ctx, "the engine requests a new set of %d surfaces of size %s", count, size)
				d.controlQueue.Post(ctx, func(ctx context.Context) {
					d.initiateSurfaceSetChange(ctx, count, size)
				})
				// we get rescheduled once the new pictures are assigned
				return
			case engine.StepRanOutOfStreamData:
				d.returnCurrInputBuffer(ctx)
			case engine.StepRanOutOfSurfaces:
				if !d.feedEngineWithSurfaces(ctx) {
					return
				}
			case engine.StepDecodeError:
				d.notifyError(ctx, ErrPlatformFailure{Err: errors.New("error decoding stream")})
				return
			}
		}
	})
}

// getInputBuffer makes sure there is a current bitstream buffer, waiting for
// one to be queued if necessary. Returns false if decoding must not continue
// in the observed state. Must be called under the lock, on the worker.
func (d *Decoder) getInputBuffer(ctx context.Context) bool {
	if d.currInput != nil {
		return true
	}

	// Only wait if it is expected that new buffers will still be queued by
	// the client via Decode(). The state can change during the wait.
	for len(d.inputQueue) == 0 && (d.state == StateDecoding || d.state == StateIdle) {
		waitCh := d.inputReady.WaitChan()
		d.locker.UDo(ctx, func() {
			select {
			case <-waitCh:
			case <-d.CloseChan():
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil || d.IsClosed() {
			return false
		}
	}

	// We could have been woken up in a different state, or never got to
	// sleep because of the current state; check for that.
	switch d.state {
	case StateFlushing:
		// only interested in finishing up the buffers that are already
		// queued; otherwise stop decoding
		if len(d.inputQueue) == 0 {
			return false
		}
		fallthrough
	case StateDecoding, StateIdle:
		assert(ctx, len(d.inputQueue) != 0)
		d.currInput = d.inputQueue[0]
		d.inputQueue = d.inputQueue[1:]
		logger.Debugf(ctx, "new current bitstream buffer: %s", d.currInput)
		d.engine.SetStream(ctx, d.currInput.Bytes(), d.currInput.ID())
		return true
	default:
		// woken up because of a reset or a teardown; leave any queued
		// inputs alone
		return false
	}
}

// returnCurrInputBuffer releases the fully consumed (or discarded) current
// buffer and schedules its end-of-buffer notification. Must be called under
// the lock.
func (d *Decoder) returnCurrInputBuffer(ctx context.Context) {
	assert(ctx, d.currInput != nil)
	bufferID := d.currInput.ID()
	d.currInput = nil
	d.streamBufsAtDecoder.Dec()
	logger.Debugf(ctx, "end of bitstream buffer %d", bufferID)
	d.postEndOfBuffer(ctx, bufferID)
}

// feedEngineWithSurfaces waits until the pool has available surfaces (or the
// state forbids continuing) and hands every available surface to the engine.
// Must be called under the lock, on the worker.
func (d *Decoder) feedEngineWithSurfaces(ctx context.Context) bool {
	for d.surfacePool.AvailableCount() == 0 &&
		(d.state == StateDecoding || d.state == StateFlushing || d.state == StateIdle) {
		waitCh := d.surfacesAvailable.WaitChan()
		d.locker.UDo(ctx, func() {
			select {
			case <-waitCh:
			case <-d.CloseChan():
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil || d.IsClosed() {
			return false
		}
	}

	if d.state != StateDecoding && d.state != StateFlushing && d.state != StateIdle {
		return false
	}

	assert(ctx, !d.awaitingSurfaceSetChange)
	for {
		surfaceID, ok := d.surfacePool.TakeAvailable()
		if !ok {
			break
		}
		surf := surface.New(surfaceID, d.surfacePool.SurfaceSize(), d.onSurfaceReleased)
		logger.Tracef(ctx, "handing surface %d to the engine", surfaceID)
		d.engine.ReuseSurface(ctx, surf)
	}
	return true
}
