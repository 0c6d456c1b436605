package avhwdecoder

import (
	"context"
	"fmt"
	"io"

	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// Flush asynchronously drains the pipeline: every queued buffer is decoded,
// the engine emits everything it was holding back, and OnFlushDone fires
// only once every decoded frame was also delivered to the client.
//
// A Flush issued while a picture set request (OnProvidePictures) is still
// unanswered may complete before the buffers queued behind that request are
// decoded; answer the request first.
func (d *Decoder) Flush(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Flush()")
	defer func() { logger.Debugf(ctx, "/Flush(): %v", _err) }()
	if d.IsClosed() {
		return io.ErrClosedPipe
	}

	err := xsync.DoA1R1(ctx, &d.locker, d.flush, ctx)
	if err != nil {
		return err
	}
	// wake the worker from any wait so it can drain and run the flush task
	d.inputReady.Broadcast()
	d.surfacesAvailable.Broadcast()
	return nil
}

func (d *Decoder) flush(ctx context.Context) error {
	switch d.state {
	case StateIdle, StateDecoding:
	default:
		err := ErrPlatformFailure{Err: fmt.Errorf("flush request in state '%v'", d.state)}
		d.notifyError(ctx, err)
		return err
	}
	d.state = StateFlushing
	// queued after all the pending decode tasks, so by the time it runs
	// the input queue is drained
	d.workerQueue.Post(ctx, d.flushTask)
	return nil
}

// flushTask runs on the worker once all the already-queued decode work is
// done.
func (d *Decoder) flushTask(ctx context.Context) {
	logger.Debugf(ctx, "flushTask")
	defer func() { logger.Debugf(ctx, "/flushTask") }()

	if err := d.engine.Flush(ctx); err != nil {
		d.notifyError(ctx, ErrPlatformFailure{Err: fmt.Errorf("unable to flush the decode engine: %w", err)})
		return
	}
	// put the engine into an idle state, ready to resume
	if err := d.engine.Reset(ctx); err != nil {
		d.notifyError(ctx, ErrPlatformFailure{Err: fmt.Errorf("unable to quiesce the decode engine: %w", err)})
		return
	}

	d.controlQueue.Post(ctx, d.finishFlush)
}

// finishFlush completes the flush if possible; if frames are still awaiting
// delivery, completion is re-attempted after every delivery. Control context
// only.
func (d *Decoder) finishFlush(ctx context.Context) {
	logger.Debugf(ctx, "finishFlush")
	defer func() { logger.Debugf(ctx, "/finishFlush") }()

	notify := false
	d.locker.Do(ctx, func() {
		d.finishFlushPending = false
		if d.state != StateFlushing {
			// we could have been reset or destroyed in the meantime
			return
		}
		if len(d.pendingOutputs) != 0 {
			// still waiting for the client to return output targets
			d.finishFlushPending = true
			return
		}
		d.state = StateIdle
		notify = true
	})
	if notify {
		d.emitFlushDone(ctx)
	}
}
