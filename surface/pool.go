package surface

import (
	"fmt"

	"github.com/xaionaro-go/avhwdecoder/types"
)

// Pool tracks which of the currently allocated surfaces are available for
// decoding and which are in flight (held by the decode engine or bound to an
// undelivered output).
//
// Pool is not safe for concurrent use by itself: it is supposed to be owned
// by a single coordinator and mutated only under the coordinator's lock
// (surface-release notifications from foreign execution contexts are posted
// into that lock domain first).
type Pool struct {
	size      types.Size
	allocated map[types.SurfaceID]struct{}
	available []types.SurfaceID
}

func NewPool() *Pool {
	return &Pool{
		allocated: map[types.SurfaceID]struct{}{},
	}
}

type ErrUnknownSurface struct {
	ID types.SurfaceID
}

func (e ErrUnknownSurface) Error() string {
	return fmt.Sprintf("unknown surface %d", e.ID)
}

// Seed replaces the surface set: it registers the given (freshly allocated)
// surfaces and marks all of them as available. The pool must be empty.
func (p *Pool) Seed(ids []types.SurfaceID, size types.Size) {
	if len(p.allocated) != 0 {
		panic(fmt.Errorf("seeding a pool that still holds %d surfaces", len(p.allocated)))
	}
	p.size = size
	for _, id := range ids {
		p.allocated[id] = struct{}{}
		p.available = append(p.available, id)
	}
}

// Clear forgets all surfaces. Outside of teardown it should be called only
// once every surface has been returned (see AllReturned).
func (p *Pool) Clear() {
	p.allocated = map[types.SurfaceID]struct{}{}
	p.available = nil
	p.size = types.Size{}
}

// TakeAvailable removes and returns the oldest available surface ID.
func (p *Pool) TakeAvailable() (types.SurfaceID, bool) {
	if len(p.available) == 0 {
		return 0, false
	}
	id := p.available[0]
	p.available = p.available[1:]
	return id, true
}

// Recycle returns a previously taken surface to the available list.
func (p *Pool) Recycle(id types.SurfaceID) error {
	if _, ok := p.allocated[id]; !ok {
		return ErrUnknownSurface{ID: id}
	}
	for _, availableID := range p.available {
		if availableID == id {
			panic(fmt.Errorf("double recycle of surface %d", id))
		}
	}
	p.available = append(p.available, id)
	return nil
}

func (p *Pool) SurfaceSize() types.Size {
	return p.size
}

func (p *Pool) AllocatedCount() int {
	return len(p.allocated)
}

func (p *Pool) AvailableCount() int {
	return len(p.available)
}

// AllReturned reports whether every allocated surface is back in the pool.
func (p *Pool) AllReturned() bool {
	return len(p.available) == len(p.allocated)
}
