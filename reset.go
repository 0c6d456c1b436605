package avhwdecoder

import (
	"context"
	"fmt"
	"io"

	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// Reset asynchronously drops everything in flight: every buffer still
// queued is discarded (but still acknowledged with OnEndOfBuffer), decoded
// frames not yet delivered are never delivered, and OnResetDone fires once
// the engine is quiesced. If new buffers were queued by then, decoding
// resumes automatically.
func (d *Decoder) Reset(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Reset()")
	defer func() { logger.Debugf(ctx, "/Reset(): %v", _err) }()
	if d.IsClosed() {
		return io.ErrClosedPipe
	}

	err := xsync.DoA1R1(ctx, &d.locker, d.reset, ctx)
	if err != nil {
		return err
	}
	// make any in-progress wait on the worker exit early
	d.inputReady.Broadcast()
	d.surfacesAvailable.Broadcast()
	return nil
}

func (d *Decoder) reset(ctx context.Context) error {
	switch d.state {
	case StateIdle, StateDecoding, StateFlushing:
	default:
		err := ErrPlatformFailure{Err: fmt.Errorf("reset request in state '%v'", d.state)}
		d.notifyError(ctx, err)
		return err
	}
	d.state = StateResetting
	// a reset supersedes a flush still waiting for its last deliveries
	d.finishFlushPending = false

	// drop all the buffers that are still queued; each of them is still
	// acknowledged as consumed ("discarded, not decoded")
	for _, buf := range d.inputQueue {
		d.streamBufsAtDecoder.Dec()
		d.postEndOfBuffer(ctx, buf.ID())
	}
	d.inputQueue = nil

	d.workerQueue.Post(ctx, d.resetTask)
	return nil
}

// resetTask runs on the worker after all the decode tasks queued before the
// reset request.
func (d *Decoder) resetTask(ctx context.Context) {
	logger.Debugf(ctx, "resetTask")
	defer func() { logger.Debugf(ctx, "/resetTask") }()

	if err := d.engine.Reset(ctx); err != nil {
		d.notifyError(ctx, ErrPlatformFailure{Err: fmt.Errorf("unable to reset the decode engine: %w", err)})
		return
	}

	d.locker.Do(ctx, func() {
		// release the current input buffer, if present
		if d.currInput != nil {
			d.returnCurrInputBuffer(ctx)
		}
	})

	d.controlQueue.Post(ctx, d.finishReset)
}

// finishReset completes the reset on the control context. If a surface set
// change is in progress, its completion takes precedence and the reset is
// re-attempted afterwards.
func (d *Decoder) finishReset(ctx context.Context) {
	logger.Debugf(ctx, "finishReset")
	defer func() { logger.Debugf(ctx, "/finishReset") }()

	var dropped []pendingOutput
	repost := false
	notify := false
	resume := false
	d.locker.Do(ctx, func() {
		if d.state != StateResetting {
			// we could have been destroyed in the meantime
			return
		}

		// pending outputs of before-the-reset buffers are never delivered
		dropped = d.pendingOutputs
		d.pendingOutputs = nil

		if d.awaitingSurfaceSetChange {
			// the engine requested a new surface set while we were
			// waiting for it to finish the last decode task; let the
			// change finish first
			repost = true
			return
		}

		d.streamBufsAtDecoder.Store(0)
		d.state = StateIdle
		notify = true

		if len(d.inputQueue) != 0 {
			// the client queued new buffers while we were resetting;
			// resume without waiting for another Decode() call
			d.state = StateDecoding
			resume = true
		}
	})

	// the surfaces go back to the pool (which also lets an in-progress
	// surface set change finish)
	for _, out := range dropped {
		out.surf.Unref(ctx)
	}

	if repost {
		d.controlQueue.Post(ctx, d.finishReset)
		return
	}
	if notify {
		d.emitResetDone(ctx)
	}
	if resume {
		d.workerQueue.Post(ctx, d.decodeTask)
	}
}
