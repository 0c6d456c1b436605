package avhwdecoder

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/engine/enginetest"
	"github.com/xaionaro-go/avhwdecoder/picture"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
)

type pictureReadyEvent struct {
	PictureID   types.PictureID
	BufferID    types.BufferID
	VisibleRect types.Rect
}

type provideEvent struct {
	Count int
	Size  types.Size
}

// testClient records every notification into buffered channels; optionally
// it plays the role of a well-behaving client (responding to picture
// requests and returning every delivered picture right away).
type testClient struct {
	decoder *Decoder

	autoAssign bool
	autoReuse  bool

	nextPictureID types.PictureID

	pictureReadyCh    chan pictureReadyEvent
	endOfBufferCh     chan types.BufferID
	providePicturesCh chan provideEvent
	dismissPictureCh  chan types.PictureID
	flushDoneCh       chan struct{}
	resetDoneCh       chan struct{}
	errorCh           chan error
}

var _ EventHandler = (*testClient)(nil)

func newTestClient(autoAssign, autoReuse bool) *testClient {
	return &testClient{
		autoAssign:        autoAssign,
		autoReuse:         autoReuse,
		pictureReadyCh:    make(chan pictureReadyEvent, 100),
		endOfBufferCh:     make(chan types.BufferID, 100),
		providePicturesCh: make(chan provideEvent, 100),
		dismissPictureCh:  make(chan types.PictureID, 100),
		flushDoneCh:       make(chan struct{}, 100),
		resetDoneCh:       make(chan struct{}, 100),
		errorCh:           make(chan error, 100),
	}
}

func (c *testClient) OnPictureReady(
	ctx context.Context,
	pictureID types.PictureID,
	bufferID types.BufferID,
	visibleRect types.Rect,
) {
	c.pictureReadyCh <- pictureReadyEvent{
		PictureID:   pictureID,
		BufferID:    bufferID,
		VisibleRect: visibleRect,
	}
	if c.autoReuse {
		c.decoder.ReusePicture(ctx, pictureID)
	}
}

func (c *testClient) OnEndOfBuffer(ctx context.Context, bufferID types.BufferID) {
	c.endOfBufferCh <- bufferID
}

func (c *testClient) OnProvidePictures(ctx context.Context, count int, size types.Size) {
	c.providePicturesCh <- provideEvent{Count: count, Size: size}
	if !c.autoAssign {
		return
	}
	infos := make([]picture.Info, 0, count)
	for i := 0; i < count; i++ {
		c.nextPictureID++
		infos = append(infos, picture.Info{
			ID:   c.nextPictureID,
			Size: size,
		})
	}
	if err := c.decoder.AssignPictures(ctx, infos); err != nil {
		c.errorCh <- fmt.Errorf("unable to assign pictures: %w", err)
	}
}

func (c *testClient) OnDismissPicture(ctx context.Context, pictureID types.PictureID) {
	c.dismissPictureCh <- pictureID
}

func (c *testClient) OnFlushDone(ctx context.Context) {
	c.flushDoneCh <- struct{}{}
}

func (c *testClient) OnResetDone(ctx context.Context) {
	c.resetDoneCh <- struct{}{}
}

func (c *testClient) OnError(ctx context.Context, err error) {
	c.errorCh <- err
}

type dummySink struct {
	CopySurfaceFn        func(ctx context.Context, src *surface.Surface, dst *picture.Picture) error
	CopySurfaceCallCount int
}

var _ picture.Sink = (*dummySink)(nil)

func (s *dummySink) CopySurface(
	ctx context.Context,
	src *surface.Surface,
	dst *picture.Picture,
) error {
	s.CopySurfaceCallCount++
	if s.CopySurfaceFn == nil {
		return nil
	}
	return s.CopySurfaceFn(ctx, src, dst)
}

func newTestDecoder(
	t *testing.T,
	factory *enginetest.Factory,
	client *testClient,
	sink picture.Sink,
) *Decoder {
	if sink == nil {
		sink = &dummySink{}
	}
	d := New(Config{
		EngineFactory: factory,
		Sink:          sink,
		EventHandler:  client,
	})
	client.decoder = d
	return d
}

func recvEvent[T any](t *testing.T, ch <-chan T, description string) T {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", description)
		panic("unreachable")
	}
}

func requireNoEvent[T any](t *testing.T, ch <-chan T, description string) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("received an unexpected %s: %v", description, ev)
	default:
	}
}

func TestDecodeDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	for bufferID := types.BufferID(1); bufferID <= 3; bufferID++ {
		require.NoError(t, d.Decode(ctx, bufferID, []byte{1, 2, 3}))
	}

	provide := recvEvent(t, client.providePicturesCh, "the picture set request")
	require.Equal(t, enginetest.DefaultSurfaceCount, provide.Count)
	require.Equal(t, enginetest.DefaultFrameSize, provide.Size)

	for bufferID := types.BufferID(1); bufferID <= 3; bufferID++ {
		ev := recvEvent(t, client.pictureReadyCh, "a decoded frame")
		require.Equal(t, bufferID, ev.BufferID)
		require.Equal(t, types.RectFromSize(enginetest.DefaultFrameSize), ev.VisibleRect)
	}
	for bufferID := types.BufferID(1); bufferID <= 3; bufferID++ {
		require.Equal(t, bufferID, recvEvent(t, client.endOfBufferCh, "an end-of-buffer acknowledgment"))
	}

	require.NoError(t, d.Flush(ctx))
	recvEvent(t, client.flushDoneCh, "the flush completion")

	stats := d.GetStats(ctx)
	require.Equal(t, StateIdle, stats.State)
	require.Equal(t, 0, stats.QueuedInputBuffers)
	require.Equal(t, int32(0), stats.StreamBuffersAtDecoder)
	require.Equal(t, int32(0), stats.FramesAtClient)
	require.Equal(t, 0, stats.PendingOutputs)

	requireNoEvent(t, client.errorCh, "error")

	d.Destroy(ctx)
	require.ErrorIs(t, d.Decode(ctx, 4, []byte{1}), io.ErrClosedPipe)
	require.ErrorIs(t, d.Flush(ctx), io.ErrClosedPipe)
	require.ErrorIs(t, d.Reset(ctx), io.ErrClosedPipe)
}

func TestRequestsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{}, client, nil)
	defer d.Destroy(ctx)

	var errPlatform ErrPlatformFailure
	require.ErrorAs(t, d.Decode(ctx, 1, []byte{1}), &errPlatform)
	require.ErrorAs(t, d.Flush(ctx), &errPlatform)
	require.ErrorAs(t, d.Reset(ctx), &errPlatform)

	// before Initialize the violations are reported synchronously only:
	requireNoEvent(t, client.errorCh, "error")

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.Error(t, d.Initialize(ctx, engine.ProfileH264Main))
}

func TestInitializeUnsupportedProfile(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{
		SupportedProfiles: []engine.Profile{engine.ProfileVP8},
	}, client, nil)
	defer d.Destroy(ctx)

	err := d.Initialize(ctx, engine.ProfileH264High)
	var errUnsupported engine.ErrUnsupportedProfile
	require.ErrorAs(t, err, &errUnsupported)
	require.Equal(t, engine.ProfileH264High, errUnsupported.Profile)

	// a failed Initialize is retryable with another profile:
	require.NoError(t, d.Initialize(ctx, engine.ProfileVP8))
}

func TestDecodeUnreadableBuffer(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	err := d.Decode(ctx, 1, nil)
	var errUnreadable ErrUnreadableInput
	require.ErrorAs(t, err, &errUnreadable)
	require.Equal(t, types.BufferID(1), errUnreadable.BufferID)

	notified := recvEvent(t, client.errorCh, "the fatal error notification")
	require.ErrorAs(t, notified, &errUnreadable)

	// the pipeline is dead now, and the error is never reported twice:
	require.Eventually(t, func() bool {
		return d.GetState(ctx) == StateUninitialized
	}, 10*time.Second, 10*time.Millisecond)
	require.Error(t, d.Decode(ctx, 2, []byte{1}))
	requireNoEvent(t, client.errorCh, "error")
}

func TestInitializeAfterFatalError(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	var errUnreadable ErrUnreadableInput
	require.ErrorAs(t, d.Decode(ctx, 1, nil), &errUnreadable)
	recvEvent(t, client.errorCh, "the fatal error notification")
	require.Eventually(t, func() bool {
		return d.GetState(ctx) == StateUninitialized
	}, 10*time.Second, 10*time.Millisecond)

	// the goroutines of the failed incarnation are drained; a fresh
	// Initialize is rejected instead of being accepted into a dead pipeline
	require.Error(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.Equal(t, StateUninitialized, d.GetState(ctx))
	requireNoEvent(t, client.errorCh, "error")
}

func TestResetDropsQueuedBuffers(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(false, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	for bufferID := types.BufferID(1); bufferID <= 3; bufferID++ {
		require.NoError(t, d.Decode(ctx, bufferID, []byte{1, 2, 3}))
	}

	// once the picture set was requested, buffer 1 is the current one and
	// buffers 2 and 3 are still queued; we never assign pictures, so
	// nothing gets decoded
	recvEvent(t, client.providePicturesCh, "the picture set request")

	require.NoError(t, d.Reset(ctx))

	// the queued buffers are acknowledged first, the current one last
	for _, expected := range []types.BufferID{2, 3, 1} {
		require.Equal(t, expected, recvEvent(t, client.endOfBufferCh, "an end-of-buffer acknowledgment"))
	}
	recvEvent(t, client.resetDoneCh, "the reset completion")

	requireNoEvent(t, client.pictureReadyCh, "decoded frame")
	requireNoEvent(t, client.errorCh, "error")
	require.Equal(t, StateIdle, d.GetState(ctx))
	require.Equal(t, int32(0), d.GetStats(ctx).StreamBuffersAtDecoder)
}

func TestFlushWaitsForDeliveries(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	for bufferID := types.BufferID(1); bufferID <= 3; bufferID++ {
		require.NoError(t, d.Decode(ctx, bufferID, []byte{1, 2, 3}))
	}

	// only 2 output targets were assigned and we are not returning them:
	// the first two frames arrive, the third one has no target yet
	first := recvEvent(t, client.pictureReadyCh, "the first decoded frame")
	require.Equal(t, types.BufferID(1), first.BufferID)
	second := recvEvent(t, client.pictureReadyCh, "the second decoded frame")
	require.Equal(t, types.BufferID(2), second.BufferID)

	require.NoError(t, d.Flush(ctx))
	time.Sleep(100 * time.Millisecond)
	requireNoEvent(t, client.pictureReadyCh, "decoded frame")
	requireNoEvent(t, client.flushDoneCh, "flush completion")

	// returning one target releases the third frame, which in turn
	// completes the flush
	d.ReusePicture(ctx, first.PictureID)
	third := recvEvent(t, client.pictureReadyCh, "the third decoded frame")
	require.Equal(t, types.BufferID(3), third.BufferID)
	require.Equal(t, first.PictureID, third.PictureID)
	recvEvent(t, client.flushDoneCh, "the flush completion")

	for _, expected := range []types.BufferID{1, 2, 3} {
		require.Equal(t, expected, recvEvent(t, client.endOfBufferCh, "an end-of-buffer acknowledgment"))
	}

	stats := d.GetStats(ctx)
	require.Equal(t, StateIdle, stats.State)
	require.Equal(t, int32(2), stats.FramesAtClient)
	require.Equal(t, 0, stats.PendingOutputs)
	requireNoEvent(t, client.errorCh, "error")
}

func TestMidStreamResize(t *testing.T) {
	ctx := context.Background()
	resizeTo := types.Size{Width: 640, Height: 480}
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{
		SurfaceCount:      2,
		ResizeAfterFrames: 2,
		ResizeTo:          resizeTo,
	}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	for bufferID := types.BufferID(1); bufferID <= 4; bufferID++ {
		require.NoError(t, d.Decode(ctx, bufferID, []byte{1, 2, 3}))
	}

	provide := recvEvent(t, client.providePicturesCh, "the initial picture set request")
	require.Equal(t, enginetest.DefaultFrameSize, provide.Size)

	for bufferID := types.BufferID(1); bufferID <= 2; bufferID++ {
		ev := recvEvent(t, client.pictureReadyCh, "a pre-resize decoded frame")
		require.Equal(t, bufferID, ev.BufferID)
		require.Equal(t, types.RectFromSize(enginetest.DefaultFrameSize), ev.VisibleRect)
	}

	// the resolution change dismisses every picture of the old set exactly
	// once and requests a new set
	dismissed := map[types.PictureID]struct{}{}
	for i := 0; i < provide.Count; i++ {
		pictureID := recvEvent(t, client.dismissPictureCh, "a picture dismissal")
		_, ok := dismissed[pictureID]
		require.False(t, ok, "picture %d was dismissed twice", pictureID)
		dismissed[pictureID] = struct{}{}
	}

	resizedProvide := recvEvent(t, client.providePicturesCh, "the post-resize picture set request")
	require.Equal(t, resizeTo, resizedProvide.Size)

	for bufferID := types.BufferID(3); bufferID <= 4; bufferID++ {
		ev := recvEvent(t, client.pictureReadyCh, "a post-resize decoded frame")
		require.Equal(t, bufferID, ev.BufferID)
		require.Equal(t, types.RectFromSize(resizeTo), ev.VisibleRect)
		_, isOld := dismissed[ev.PictureID]
		require.False(t, isOld, "frame delivered into a dismissed picture %d", ev.PictureID)
	}

	for _, expected := range []types.BufferID{1, 2, 3, 4} {
		require.Equal(t, expected, recvEvent(t, client.endOfBufferCh, "an end-of-buffer acknowledgment"))
	}

	require.NoError(t, d.Flush(ctx))
	recvEvent(t, client.flushDoneCh, "the flush completion")
	requireNoEvent(t, client.errorCh, "error")
}

func TestResetDuringSurfaceSetChange(t *testing.T) {
	ctx := context.Background()
	resizeTo := types.Size{Width: 640, Height: 480}
	client := newTestClient(true, false)
	d := newTestDecoder(t, &enginetest.Factory{
		SurfaceCount:      2,
		ResizeAfterFrames: 3,
		ResizeTo:          resizeTo,
	}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	for bufferID := types.BufferID(1); bufferID <= 4; bufferID++ {
		require.NoError(t, d.Decode(ctx, bufferID, []byte{1, 2, 3}))
	}

	provide := recvEvent(t, client.providePicturesCh, "the initial picture set request")

	// we hold on to the first two delivered frames, so the third one gets
	// stuck awaiting a free output target, and the resolution change
	// triggered by buffer 4 cannot complete: everything is in flight when
	// the reset arrives
	for bufferID := types.BufferID(1); bufferID <= 2; bufferID++ {
		ev := recvEvent(t, client.pictureReadyCh, "a pre-resize decoded frame")
		require.Equal(t, bufferID, ev.BufferID)
	}
	for _, expected := range []types.BufferID{1, 2, 3} {
		require.Equal(t, expected, recvEvent(t, client.endOfBufferCh, "an end-of-buffer acknowledgment"))
	}

	require.NoError(t, d.Reset(ctx))

	// the reset lets the surface set change finish first: the undelivered
	// frame is discarded, the old pictures get dismissed and a new set is
	// requested, and only then the reset completes
	require.Equal(t, types.BufferID(4), recvEvent(t, client.endOfBufferCh, "the current-buffer acknowledgment"))
	dismissed := map[types.PictureID]struct{}{}
	for i := 0; i < provide.Count; i++ {
		pictureID := recvEvent(t, client.dismissPictureCh, "a picture dismissal")
		_, ok := dismissed[pictureID]
		require.False(t, ok, "picture %d was dismissed twice", pictureID)
		dismissed[pictureID] = struct{}{}
	}
	resizedProvide := recvEvent(t, client.providePicturesCh, "the post-resize picture set request")
	require.Equal(t, resizeTo, resizedProvide.Size)
	recvEvent(t, client.resetDoneCh, "the reset completion")

	requireNoEvent(t, client.resetDoneCh, "second reset completion")
	requireNoEvent(t, client.pictureReadyCh, "decoded frame")
	require.Equal(t, StateIdle, d.GetState(ctx))
	require.Equal(t, int32(0), d.GetStats(ctx).StreamBuffersAtDecoder)
	require.Equal(t, 0, d.GetStats(ctx).PendingOutputs)

	// decoding resumes into the new picture set
	require.NoError(t, d.Decode(ctx, 5, []byte{1, 2, 3}))
	ev := recvEvent(t, client.pictureReadyCh, "the after-reset decoded frame")
	require.Equal(t, types.BufferID(5), ev.BufferID)
	require.Equal(t, types.RectFromSize(resizeTo), ev.VisibleRect)
	_, isOld := dismissed[ev.PictureID]
	require.False(t, isOld, "frame delivered into a dismissed picture %d", ev.PictureID)
	require.Equal(t, types.BufferID(5), recvEvent(t, client.endOfBufferCh, "the after-reset end-of-buffer acknowledgment"))
	requireNoEvent(t, client.errorCh, "error")
}

func TestAssignPicturesCountMismatch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(false, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))

	provide := recvEvent(t, client.providePicturesCh, "the picture set request")
	require.Equal(t, 2, provide.Count)

	err := d.AssignPictures(ctx, []picture.Info{{ID: 1, Size: provide.Size}})
	var errInvalid ErrInvalidArgument
	require.ErrorAs(t, err, &errInvalid)
	notified := recvEvent(t, client.errorCh, "the fatal error notification")
	require.ErrorAs(t, notified, &errInvalid)
}

func TestAssignPicturesSizeMismatch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(false, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))

	provide := recvEvent(t, client.providePicturesCh, "the picture set request")

	err := d.AssignPictures(ctx, []picture.Info{
		{ID: 1, Size: provide.Size},
		{ID: 2, Size: types.Size{Width: 1, Height: 1}},
	})
	var errInvalid ErrInvalidArgument
	require.ErrorAs(t, err, &errInvalid)
	recvEvent(t, client.errorCh, "the fatal error notification")
}

func TestAssignPicturesUnsolicited(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(false, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	// no picture set was requested yet, so even an empty assignment is a
	// protocol violation
	err := d.AssignPictures(ctx, nil)
	var errInvalid ErrInvalidArgument
	require.ErrorAs(t, err, &errInvalid)
	notified := recvEvent(t, client.errorCh, "the fatal error notification")
	require.ErrorAs(t, notified, &errInvalid)
}

func TestSinkFailure(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	sink := &dummySink{
		CopySurfaceFn: func(ctx context.Context, src *surface.Surface, dst *picture.Picture) error {
			return fmt.Errorf("the graphics runtime went away")
		},
	}
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, sink)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))

	notified := recvEvent(t, client.errorCh, "the fatal error notification")
	var errPlatform ErrPlatformFailure
	require.ErrorAs(t, notified, &errPlatform)
	requireNoEvent(t, client.pictureReadyCh, "decoded frame")
}

func TestResetResumesWithNewBuffers(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))

	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))
	ev := recvEvent(t, client.pictureReadyCh, "the first decoded frame")
	require.Equal(t, types.BufferID(1), ev.BufferID)
	require.Equal(t, types.BufferID(1), recvEvent(t, client.endOfBufferCh, "the first end-of-buffer acknowledgment"))

	require.NoError(t, d.Reset(ctx))
	// buffers submitted while resetting accumulate and resume decoding
	// automatically after the reset is done
	require.NoError(t, d.Decode(ctx, 2, []byte{1, 2, 3}))
	recvEvent(t, client.resetDoneCh, "the reset completion")

	ev = recvEvent(t, client.pictureReadyCh, "the after-reset decoded frame")
	require.Equal(t, types.BufferID(2), ev.BufferID)
	require.Equal(t, types.BufferID(2), recvEvent(t, client.endOfBufferCh, "the second end-of-buffer acknowledgment"))
	requireNoEvent(t, client.errorCh, "error")
}

func TestReusePictureIgnoresUnknownIDs(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, false)
	d := newTestDecoder(t, &enginetest.Factory{SurfaceCount: 2}, client, nil)
	defer d.Destroy(ctx)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))

	ev := recvEvent(t, client.pictureReadyCh, "the decoded frame")

	d.ReusePicture(ctx, 12345)
	d.ReusePicture(ctx, ev.PictureID)
	d.ReusePicture(ctx, ev.PictureID) // a double return is ignored, too

	require.NoError(t, d.Flush(ctx))
	recvEvent(t, client.flushDoneCh, "the flush completion")
	require.Equal(t, int32(0), d.GetStats(ctx).FramesAtClient)
	requireNoEvent(t, client.errorCh, "error")
}

func TestDestroyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(true, true)
	d := newTestDecoder(t, &enginetest.Factory{}, client, nil)

	require.NoError(t, d.Initialize(ctx, engine.ProfileH264Main))
	require.NoError(t, d.Decode(ctx, 1, []byte{1, 2, 3}))

	d.Destroy(ctx)
	d.Destroy(ctx)

	require.ErrorIs(t, d.Decode(ctx, 2, []byte{1}), io.ErrClosedPipe)
	require.ErrorIs(t, d.AssignPictures(ctx, nil), io.ErrClosedPipe)
	require.Equal(t, StateUninitialized, d.GetState(ctx))
}
