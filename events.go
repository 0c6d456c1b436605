package avhwdecoder

import (
	"context"

	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/types"
)

// EventHandler receives the client-facing notifications of a Decoder.
//
// All the methods are invoked sequentially from one dedicated goroutine (the
// control context), so implementations do not need their own locking against
// each other. It is legal to call back into the Decoder from a handler, with
// one exception: Destroy must not be called from a handler (it waits for the
// control context to finish).
type EventHandler interface {
	// OnPictureReady: a decoded frame was copied into the given output
	// target. Frames are always delivered in decode order.
	OnPictureReady(ctx context.Context, pictureID types.PictureID, bufferID types.BufferID, visibleRect types.Rect)

	// OnEndOfBuffer: the given bitstream buffer was fully consumed (or
	// discarded by a reset); its bytes are handed back to the client.
	OnEndOfBuffer(ctx context.Context, bufferID types.BufferID)

	// OnProvidePictures: the decoder needs `count` fresh output targets of
	// size `size`; the client responds with AssignPictures.
	OnProvidePictures(ctx context.Context, count int, size types.Size)

	// OnDismissPicture: the association with a previously assigned output
	// target is invalidated (a surface set change); the target must not be
	// returned via ReusePicture anymore.
	OnDismissPicture(ctx context.Context, pictureID types.PictureID)

	// OnFlushDone: every queued buffer was decoded and every decoded frame
	// was delivered.
	OnFlushDone(ctx context.Context)

	// OnResetDone: the reset completed; no frame decoded from a
	// before-the-reset buffer will be delivered anymore.
	OnResetDone(ctx context.Context)

	// OnError: the pipeline failed; reported exactly once, after which the
	// instance is torn down.
	OnError(ctx context.Context, err error)
}

func (d *Decoder) postEndOfBuffer(
	ctx context.Context,
	bufferID types.BufferID,
) {
	d.controlQueue.Post(ctx, func(ctx context.Context) {
		d.emitEndOfBuffer(ctx, bufferID)
	})
}

func (d *Decoder) emitEndOfBuffer(
	ctx context.Context,
	bufferID types.BufferID,
) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnEndOfBuffer(%d)", bufferID)
	d.cfg.EventHandler.OnEndOfBuffer(ctx, bufferID)
}

func (d *Decoder) emitPictureReady(
	ctx context.Context,
	pictureID types.PictureID,
	bufferID types.BufferID,
	visibleRect types.Rect,
) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnPictureReady(%d, %d, %s)", pictureID, bufferID, visibleRect)
	d.cfg.EventHandler.OnPictureReady(ctx, pictureID, bufferID, visibleRect)
}

func (d *Decoder) emitProvidePictures(
	ctx context.Context,
	count int,
	size types.Size,
) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnProvidePictures(%d, %s)", count, size)
	d.cfg.EventHandler.OnProvidePictures(ctx, count, size)
}

func (d *Decoder) emitDismissPicture(
	ctx context.Context,
	pictureID types.PictureID,
) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnDismissPicture(%d)", pictureID)
	d.cfg.EventHandler.OnDismissPicture(ctx, pictureID)
}

func (d *Decoder) emitFlushDone(ctx context.Context) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnFlushDone()")
	d.cfg.EventHandler.OnFlushDone(ctx)
}

func (d *Decoder) emitResetDone(ctx context.Context) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnResetDone()")
	d.cfg.EventHandler.OnResetDone(ctx)
}

func (d *Decoder) emitError(ctx context.Context, err error) {
	if d.clientGone.Load() {
		return
	}
	logger.Debugf(ctx, "OnError(%v)", err)
	d.cfg.EventHandler.OnError(ctx, err)
}
