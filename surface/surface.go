// Package surface provides the hardware decode-target surface handle and the
// pool that tracks the surfaces' whereabouts.
package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/avhwdecoder/types"
	"go.uber.org/atomic"
)

// ReleaseFunc is invoked exactly once, when the last reference to a Surface
// is dropped. It may be invoked from any goroutine; implementations are
// expected to defer the actual pool mutation into the pool owner's lock
// domain (e.g. by posting a task).
type ReleaseFunc func(ctx context.Context, surfaceID types.SurfaceID)

// Surface is a loan of one hardware decode-target surface. A fresh Surface
// handle is created each time a surface is handed to the decode engine; the
// handle starts with one reference (the engine's). The engine takes an
// additional reference for every output it reports, and the coordinator
// drops that reference once the surface's content was copied out (or the
// output was discarded).
type Surface struct {
	id        types.SurfaceID
	size      types.Size
	refCount  atomic.Int32
	release   ReleaseFunc
	closeOnce sync.Once
}

func New(
	id types.SurfaceID,
	size types.Size,
	release ReleaseFunc,
) *Surface {
	s := &Surface{
		id:      id,
		size:    size,
		release: release,
	}
	s.refCount.Store(1)
	return s
}

func (s *Surface) ID() types.SurfaceID {
	return s.id
}

func (s *Surface) Size() types.Size {
	return s.size
}

func (s *Surface) String() string {
	return fmt.Sprintf("Surface(%d, %s)", s.id, s.size)
}

// Ref takes an additional reference.
func (s *Surface) Ref() {
	refCount := s.refCount.Inc()
	if refCount <= 1 {
		panic(fmt.Errorf("Ref() on an already released surface %d", s.id))
	}
}

// Unref drops one reference; the last drop fires the release callback.
func (s *Surface) Unref(ctx context.Context) {
	refCount := s.refCount.Dec()
	logger.Tracef(ctx, "Unref: surface %d: refcount == %d", s.id, refCount)
	switch {
	case refCount < 0:
		panic(fmt.Errorf("Unref() on an already released surface %d", s.id))
	case refCount > 0:
		return
	}
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release(ctx, s.id)
		}
	})
}
