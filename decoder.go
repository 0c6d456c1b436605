// Package avhwdecoder implements an asynchronous hardware video-decode
// pipeline coordinator: it accepts a stream of compressed bitstream buffers,
// drives a stateful hardware decode engine on a dedicated worker goroutine,
// manages a pool of hardware decode-target surfaces, and delivers decoded
// frames back to the client strictly in decode order, while supporting
// asynchronous flush, reset and mid-stream resolution changes without ever
// blocking the caller.
package avhwdecoder

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avhwdecoder/bitstream"
	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/helpers/closuresignaler"
	"github.com/xaionaro-go/avhwdecoder/helpers/condsignal"
	"github.com/xaionaro-go/avhwdecoder/helpers/taskqueue"
	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/picture"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Config struct {
	// EngineFactory builds the decode engine at Initialize time.
	EngineFactory engine.Factory

	// Sink copies decoded surfaces into the client's output targets.
	Sink picture.Sink

	// EventHandler receives all the client-facing notifications.
	EventHandler EventHandler
}

type pendingOutput struct {
	surf     *surface.Surface
	bufferID types.BufferID
}

// Decoder is the pipeline coordinator. Construct it with New, then
// Initialize it; all public methods are safe to call from any goroutine and
// never block on decoding.
//
// Internally there are two execution contexts: the control context (one
// goroutine owning all client-visible callbacks and the client-driven
// protocols) and the worker context (one goroutine driving the decode
// engine; the only one allowed to block). All shared state is guarded by one
// lock; `inputReady` and `surfacesAvailable` wake the worker from its two
// possible waits.
type Decoder struct {
	*closuresignaler.ClosureSignaler

	cfg     Config
	profile engine.Profile

	locker xsync.Mutex
	state  State

	inputReady        *condsignal.CondSignal
	surfacesAvailable *condsignal.CondSignal

	workerQueue  *taskqueue.TaskQueue
	controlQueue *taskqueue.TaskQueue

	engine engine.Engine

	inputQueue []*bitstream.Buffer
	currInput  *bitstream.Buffer

	surfacePool *surface.Pool

	pictures       map[types.PictureID]*picture.Picture
	freePictures   []types.PictureID
	pendingOutputs []pendingOutput

	finishFlushPending       bool
	awaitingSurfaceSetChange bool
	requestedPictureCount    int
	requestedPictureSize     types.Size

	started       atomic.Bool
	errorNotified atomic.Bool
	clientGone    atomic.Bool

	streamBufsAtDecoder atomic.Int32
	framesAtClient      atomic.Int32
}

func New(cfg Config) *Decoder {
	return &Decoder{
		ClosureSignaler:   closuresignaler.New(),
		cfg:               cfg,
		inputReady:        condsignal.New(),
		surfacesAvailable: condsignal.New(),
		workerQueue:       taskqueue.New(),
		controlQueue:      taskqueue.New(),
		surfacePool:       surface.NewPool(),
		pictures:          map[types.PictureID]*picture.Picture{},
	}
}

func (d *Decoder) String() string {
	if d.profile == "" {
		return "Decoder"
	}
	return fmt.Sprintf("Decoder(%s)", d.profile)
}

// Initialize constructs the decode engine for the given profile and starts
// the worker and control goroutines (their lifetime is additionally bounded
// by `ctx`). An error here is permanent: the platform cannot decode this
// profile (see engine.ErrUnsupportedProfile).
//
// A Decoder whose pipeline was already torn down (by Destroy or by a fatal
// error) cannot be initialized again; construct a new one.
func (d *Decoder) Initialize(
	ctx context.Context,
	profile engine.Profile,
) (_err error) {
	logger.Debugf(ctx, "Initialize(%s)", profile)
	defer func() { logger.Debugf(ctx, "/Initialize(%s): %v", profile, _err) }()
	if d.IsClosed() {
		return io.ErrClosedPipe
	}
	return xsync.DoA2R1(ctx, &d.locker, d.init, ctx, profile)
}

func (d *Decoder) init(
	ctx context.Context,
	profile engine.Profile,
) error {
	if d.state != StateUninitialized {
		return fmt.Errorf("initialize request in state '%v'", d.state)
	}
	if d.started.Load() {
		// the goroutines of the torn-down pipeline are drained and are
		// never restarted; a failed pipeline stays failed
		return fmt.Errorf("initialize request after the pipeline was torn down")
	}
	eng, err := d.cfg.EngineFactory.NewEngine(ctx, profile, d.surfaceReady)
	if err != nil {
		return fmt.Errorf("unable to initialize a decode engine for profile '%s': %w", profile, err)
	}
	d.engine = eng
	d.profile = profile
	d.started.Store(true)
	observability.Go(ctx, d.workerQueue.Serve)
	observability.Go(ctx, d.controlQueue.Serve)
	d.state = StateIdle
	return nil
}

// Decode submits one bitstream buffer. The bytes are owned by the Decoder
// until OnEndOfBuffer fires for the same bufferID.
func (d *Decoder) Decode(
	ctx context.Context,
	bufferID types.BufferID,
	data []byte,
) (_err error) {
	logger.Debugf(ctx, "Decode(%d, %s)", bufferID, humanize.IBytes(uint64(len(data))))
	defer func() { logger.Debugf(ctx, "/Decode(%d): %v", bufferID, _err) }()
	if d.IsClosed() {
		return io.ErrClosedPipe
	}

	buf, err := bitstream.Map(bufferID, data)
	if err != nil {
		err = ErrUnreadableInput{BufferID: bufferID, Err: err}
		d.notifyError(ctx, err)
		return err
	}

	err = xsync.DoA2R1(ctx, &d.locker, d.decode, ctx, buf)
	if err == nil {
		d.inputReady.Broadcast()
	}
	return err
}

func (d *Decoder) decode(
	ctx context.Context,
	buf *bitstream.Buffer,
) error {
	switch d.state {
	case StateIdle:
		d.queueInputBuffer(ctx, buf)
		d.state = StateDecoding
		d.workerQueue.Post(ctx, d.decodeTask)
	case StateDecoding, StateResetting:
		// while resetting, buffers are allowed to accumulate, so the
		// client can queue after-seek buffers while we finish with the
		// before-seek ones
		d.queueInputBuffer(ctx, buf)
	default:
		err := ErrPlatformFailure{Err: fmt.Errorf("decode request in state '%v'", d.state)}
		d.notifyError(ctx, err)
		return err
	}
	return nil
}

func (d *Decoder) queueInputBuffer(
	ctx context.Context,
	buf *bitstream.Buffer,
) {
	d.inputQueue = append(d.inputQueue, buf)
	d.streamBufsAtDecoder.Inc()
	logger.Tracef(ctx, "stream buffers at decoder: %d", d.streamBufsAtDecoder.Load())
}

// notifyError reports a fatal error to the client (exactly once per Decoder
// instance) and initiates the teardown. Never retried: a failed pipeline
// stays failed.
func (d *Decoder) notifyError(ctx context.Context, err error) {
	logger.Errorf(ctx, "fatal error: %v", err)
	if !d.started.Load() {
		// nothing is running yet; the error was returned to the caller
		// synchronously
		return
	}
	if !d.errorNotified.CompareAndSwap(false, true) {
		return
	}
	d.controlQueue.Post(ctx, func(ctx context.Context) {
		d.emitError(ctx, err)
		d.clientGone.Store(true)
		d.cleanup(ctx)
	})
}

// Destroy tears the pipeline down: it wakes every waiter, stops the worker
// and the control goroutines and releases all resources. Idempotent; safe to
// invoke from any state (but not from an EventHandler callback).
func (d *Decoder) Destroy(ctx context.Context) {
	logger.Debugf(ctx, "Destroy()")
	defer func() { logger.Debugf(ctx, "/Destroy()") }()

	d.clientGone.Store(true)
	d.ClosureSignaler.Close(ctx)
	d.cleanup(ctx)
	if d.started.Load() {
		d.controlQueue.Close(ctx)
		_ = d.controlQueue.Wait(ctx)
	}
}

func (d *Decoder) cleanup(ctx context.Context) {
	logger.Debugf(ctx, "cleanup()")
	defer func() { logger.Debugf(ctx, "/cleanup()") }()

	proceed := false
	d.locker.Do(ctx, func() {
		if d.state == StateUninitialized || d.state == StateDestroying {
			return
		}
		d.state = StateDestroying
		proceed = true
	})
	if !proceed {
		return
	}

	// wake all the potential waiters on the worker, let them observe
	// the new state and exit early, then wait for the worker to finish
	d.inputReady.Broadcast()
	d.surfacesAvailable.Broadcast()
	d.workerQueue.Close(ctx)
	if err := d.workerQueue.Wait(ctx); err != nil {
		logger.Errorf(ctx, "unable to wait for the worker to stop: %v", err)
	}

	d.locker.Do(ctx, func() {
		if d.engine != nil {
			if err := d.engine.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the decode engine: %v", err)
			}
		}
		for _, out := range d.pendingOutputs {
			out.surf.Unref(ctx)
		}
		d.pendingOutputs = nil
		d.pictures = map[types.PictureID]*picture.Picture{}
		d.freePictures = nil
		d.surfacePool.Clear()
		d.inputQueue = nil
		d.currInput = nil
		d.awaitingSurfaceSetChange = false
		d.finishFlushPending = false
		d.streamBufsAtDecoder.Store(0)
		d.framesAtClient.Store(0)
		d.state = StateUninitialized
	})
}
