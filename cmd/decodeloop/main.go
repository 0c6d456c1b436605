package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avhwdecoder"
	"github.com/xaionaro-go/avhwdecoder/engine"
	"github.com/xaionaro-go/avhwdecoder/engine/enginetest"
	"github.com/xaionaro-go/avhwdecoder/picture"
	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
	"github.com/xaionaro-go/observability"
	"go.uber.org/atomic"
)

// decodeloop drives the full decode pipeline against the deterministic
// in-memory engine: it feeds synthetic bitstream buffers, auto-assigns output
// targets, auto-returns every delivered frame and flushes at the end. Useful
// for eyeballing the event flow (run with --log-level=debug) and for
// profiling the coordination overhead.

type loopClient struct {
	decoder *avhwdecoder.Decoder
	l       logger.Logger
	cancel  context.CancelFunc

	framesDelivered  atomic.Int64
	buffersReturned  atomic.Int64
	picturesAssigned atomic.Int64

	flushedCh chan struct{}
}

var _ avhwdecoder.EventHandler = (*loopClient)(nil)

func (c *loopClient) OnPictureReady(
	ctx context.Context,
	pictureID types.PictureID,
	bufferID types.BufferID,
	visibleRect types.Rect,
) {
	c.framesDelivered.Inc()
	c.decoder.ReusePicture(ctx, pictureID)
}

func (c *loopClient) OnEndOfBuffer(ctx context.Context, bufferID types.BufferID) {
	c.buffersReturned.Inc()
}

func (c *loopClient) OnProvidePictures(ctx context.Context, count int, size types.Size) {
	infos := make([]picture.Info, 0, count)
	for i := 0; i < count; i++ {
		infos = append(infos, picture.Info{
			ID:   types.PictureID(c.picturesAssigned.Inc()),
			Size: size,
		})
	}
	if err := c.decoder.AssignPictures(ctx, infos); err != nil {
		c.l.Errorf("unable to assign %d pictures: %v", count, err)
		c.cancel()
	}
}

func (c *loopClient) OnDismissPicture(ctx context.Context, pictureID types.PictureID) {
	c.l.Debugf("picture %d was dismissed", pictureID)
}

func (c *loopClient) OnFlushDone(ctx context.Context) {
	close(c.flushedCh)
}

func (c *loopClient) OnResetDone(ctx context.Context) {
	c.l.Debugf("the reset is done")
}

func (c *loopClient) OnError(ctx context.Context, err error) {
	c.l.Errorf("the pipeline failed: %v", err)
	c.cancel()
}

type nopSink struct{}

var _ picture.Sink = (*nopSink)(nil)

func (nopSink) CopySurface(
	ctx context.Context,
	src *surface.Surface,
	dst *picture.Picture,
) error {
	return nil
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	frameCount := pflag.Uint("frames", 100, "how many bitstream buffers to feed")
	frameSize := pflag.Uint("frame-size", 4096, "synthetic bitstream buffer size in bytes")
	surfaceCount := pflag.Uint("surfaces", 4, "how many decode surfaces the engine demands")
	resizeAfter := pflag.Uint("resize-after", 0, "simulate a mid-stream resolution change after this many frames (0 to disable)")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	client := &loopClient{
		l:         l,
		cancel:    cancelFn,
		flushedCh: make(chan struct{}),
	}
	decoder := avhwdecoder.New(avhwdecoder.Config{
		EngineFactory: &enginetest.Factory{
			SurfaceCount:      int(*surfaceCount),
			ResizeAfterFrames: int(*resizeAfter),
			ResizeTo:          types.Size{Width: 1280, Height: 720},
		},
		Sink:         nopSink{},
		EventHandler: client,
	})
	client.decoder = decoder

	if err := decoder.Initialize(ctx, engine.ProfileH264Main); err != nil {
		l.Fatalf("unable to initialize the decoder: %v", err)
	}
	defer decoder.Destroy(ctx)

	payload := make([]byte, *frameSize)
	for idx := range payload {
		payload[idx] = byte(idx)
	}
	l.Debugf("feeding %d buffers of %s each...", *frameCount, humanize.IBytes(uint64(len(payload))))

	startedAt := time.Now()
	for bufferIdx := uint(0); bufferIdx < *frameCount; bufferIdx++ {
		if err := decoder.Decode(ctx, types.BufferID(bufferIdx+1), payload); err != nil {
			l.Fatalf("unable to submit buffer %d: %v", bufferIdx+1, err)
		}
	}
	if err := decoder.Flush(ctx); err != nil {
		l.Fatalf("unable to flush: %v", err)
	}

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.flushedCh:
			stats := decoder.GetStats(ctx)
			statsJSON, err := json.Marshal(stats)
			if err != nil {
				l.Fatal(err)
			}
			fmt.Printf(
				"done in %v: %d frames delivered, %d buffers returned; final:%s\n",
				time.Since(startedAt),
				client.framesDelivered.Load(),
				client.buffersReturned.Load(),
				statsJSON,
			)
			return
		case <-t.C:
			stats := decoder.GetStats(ctx)
			statsJSON, err := json.Marshal(stats)
			if err != nil {
				l.Fatal(err)
			}
			fmt.Printf("frames:%d buffers:%d stats:%s\n",
				client.framesDelivered.Load(),
				client.buffersReturned.Load(),
				statsJSON,
			)
		}
	}
}
