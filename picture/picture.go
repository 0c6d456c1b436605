// Package picture provides the client-supplied output target ("picture") and
// the sink that copies a decoded surface into it.
package picture

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avhwdecoder/surface"
	"github.com/xaionaro-go/avhwdecoder/types"
)

// Resource is the client-owned displayable backing of a Picture (e.g. a GPU
// texture handle). The coordinator does not interpret it; it is only passed
// through to the Sink.
type Resource any

// Info describes one output target the client assigns to the coordinator.
type Info struct {
	ID       types.PictureID
	Size     types.Size
	Resource Resource
}

// Picture is one output target, owned by the coordinator from the moment the
// client assigns it until it is either delivered (and later returned for
// reuse) or dismissed.
type Picture struct {
	id       types.PictureID
	size     types.Size
	resource Resource
}

func New(info Info) *Picture {
	return &Picture{
		id:       info.ID,
		size:     info.Size,
		resource: info.Resource,
	}
}

func (p *Picture) ID() types.PictureID {
	return p.id
}

func (p *Picture) Size() types.Size {
	return p.size
}

func (p *Picture) Resource() Resource {
	return p.resource
}

func (p *Picture) String() string {
	return fmt.Sprintf("Picture(%d, %s)", p.id, p.size)
}

// Sink copies (or binds) a decoded surface's content into a picture's
// backing resource. How exactly that happens is outside of the scope of this
// project (it is GPU-API specific).
type Sink interface {
	CopySurface(ctx context.Context, src *surface.Surface, dst *Picture) error
}
