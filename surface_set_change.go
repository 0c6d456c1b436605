package avhwdecoder

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/picture"
	"github.com/xaionaro-go/avhwdecoder/types"
	"github.com/xaionaro-go/xsync"
)

// initiateSurfaceSetChange starts the drain-and-recreate protocol after the
// engine demanded a different surface set (e.g. a mid-stream resolution
// change). The worker has already suspended stepping by this point; it gets
// rescheduled by AssignPictures. Control context only.
func (d *Decoder) initiateSurfaceSetChange(
	ctx context.Context,
	count int,
	size types.Size,
) {
	logger.Debugf(ctx, "initiating surface set change: %d surfaces of %s", count, size)

	proceed := false
	d.locker.Do(ctx, func() {
		if d.state == StateDestroying || d.state == StateUninitialized {
			return
		}
		// only one surface set change can be in progress: the worker does
		// not step while one is pending, so the engine cannot request
		// another
		assert(ctx, !d.awaitingSurfaceSetChange)
		d.awaitingSurfaceSetChange = true
		d.requestedPictureCount = count
		d.requestedPictureSize = size
		proceed = true
	})
	if !proceed {
		return
	}
	d.tryFinishSurfaceSetChange(ctx)
}

// tryFinishSurfaceSetChange completes the change once every pending output
// was delivered (or discarded) and every surface returned to the pool.
// Satisfaction is client-driven, so this is re-attempted from every surface
// recycle. Control context only.
func (d *Decoder) tryFinishSurfaceSetChange(ctx context.Context) {
	var dismissed []types.PictureID
	var count int
	var size types.Size
	var destroyErr error
	proceed := false
	d.locker.Do(ctx, func() {
		if !d.awaitingSurfaceSetChange {
			return
		}

		if len(d.pendingOutputs) != 0 || !d.surfacePool.AllReturned() {
			// either not every decoded frame was delivered yet, or some
			// of the delivered ones still hold their surfaces; wait for
			// the client to return enough output targets and retry
			logger.Debugf(ctx, "awaiting surface set change: %d pending outputs, %d surfaces in flight",
				len(d.pendingOutputs),
				d.surfacePool.AllocatedCount()-d.surfacePool.AvailableCount())
			return
		}

		// everything is back; destroy the old surfaces and dismiss every
		// picture of the old set
		d.awaitingSurfaceSetChange = false
		if d.surfacePool.AllocatedCount() != 0 {
			destroyErr = d.engine.DestroySurfaces(ctx)
		}
		d.surfacePool.Clear()

		dismissed = make([]types.PictureID, 0, len(d.pictures))
		for pictureID := range d.pictures {
			dismissed = append(dismissed, pictureID)
		}
		slices.Sort(dismissed)
		d.pictures = map[types.PictureID]*picture.Picture{}
		d.freePictures = nil

		count = d.requestedPictureCount
		size = d.requestedPictureSize
		proceed = true
	})
	if destroyErr != nil {
		d.notifyError(ctx, ErrPlatformFailure{Err: fmt.Errorf("unable to destroy the old surfaces: %w", destroyErr)})
		return
	}
	if !proceed {
		return
	}

	for _, pictureID := range dismissed {
		d.emitDismissPicture(ctx, pictureID)
	}
	d.emitProvidePictures(ctx, count, size)
}

// AssignPictures is the client's response to OnProvidePictures. The count
// and the sizes must exactly match what was requested. On success the
// matching hardware surfaces are allocated, the free-target list is seeded
// and decoding resumes.
func (d *Decoder) AssignPictures(
	ctx context.Context,
	infos []picture.Info,
) (_err error) {
	logger.Debugf(ctx, "AssignPictures(%d pictures)", len(infos))
	defer func() { logger.Debugf(ctx, "/AssignPictures(%d pictures): %v", len(infos), _err) }()
	logger.Tracef(ctx, "AssignPictures: %s", spew.Sdump(infos))
	if d.IsClosed() {
		return io.ErrClosedPipe
	}

	err := xsync.DoA2R1(ctx, &d.locker, d.assignPictures, ctx, infos)
	if err != nil {
		return err
	}
	d.surfacesAvailable.Broadcast()
	return nil
}

func (d *Decoder) assignPictures(
	ctx context.Context,
	infos []picture.Info,
) error {
	switch d.state {
	case StateUninitialized, StateDestroying:
		return fmt.Errorf("assign request in state '%v'", d.state)
	}

	if d.requestedPictureCount == 0 {
		err := ErrInvalidArgument{Err: fmt.Errorf("no picture set was requested")}
		d.notifyError(ctx, err)
		return err
	}
	if len(d.pictures) != 0 {
		err := ErrInvalidArgument{Err: fmt.Errorf("pictures are already assigned")}
		d.notifyError(ctx, err)
		return err
	}
	if len(infos) != d.requestedPictureCount {
		err := ErrInvalidArgument{Err: fmt.Errorf("got %d pictures, requested %d", len(infos), d.requestedPictureCount)}
		d.notifyError(ctx, err)
		return err
	}
	for _, info := range infos {
		if info.Size != d.requestedPictureSize {
			err := ErrInvalidArgument{Err: fmt.Errorf("picture %d has size %s, requested %s", info.ID, info.Size, d.requestedPictureSize)}
			d.notifyError(ctx, err)
			return err
		}
	}
	seen := map[types.PictureID]struct{}{}
	for _, info := range infos {
		if _, ok := seen[info.ID]; ok {
			err := ErrInvalidArgument{Err: fmt.Errorf("duplicate picture id %d", info.ID)}
			d.notifyError(ctx, err)
			return err
		}
		seen[info.ID] = struct{}{}
	}

	surfaceIDs, err := d.engine.CreateSurfaces(ctx, len(infos), d.requestedPictureSize)
	if err != nil {
		wrappedErr := ErrPlatformFailure{Err: fmt.Errorf("unable to create %d surfaces of size %s: %w", len(infos), d.requestedPictureSize, err)}
		d.notifyError(ctx, wrappedErr)
		return wrappedErr
	}
	assert(ctx, len(surfaceIDs) == len(infos))
	d.surfacePool.Seed(surfaceIDs, d.requestedPictureSize)

	d.freePictures = make([]types.PictureID, 0, len(infos))
	for _, info := range infos {
		logger.Debugf(ctx, "assigning picture %d (surface set of %s)", info.ID, info.Size)
		d.pictures[info.ID] = picture.New(info)
		d.freePictures = append(d.freePictures, info.ID)
	}

	switch d.state {
	case StateResetting:
		// a deferred reset is still completing; it resumes (or idles) the
		// pipeline itself
	case StateFlushing:
		d.workerQueue.Post(ctx, d.decodeTask)
	default:
		d.state = StateDecoding
		d.workerQueue.Post(ctx, d.decodeTask)
	}
	return nil
}
