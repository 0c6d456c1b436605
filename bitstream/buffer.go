// Package bitstream provides the mapped representation of one submitted
// compressed bitstream fragment.
package bitstream

import (
	"fmt"

	"github.com/xaionaro-go/avhwdecoder/types"
)

type ErrUnreadable struct {
	ID types.BufferID
}

func (e ErrUnreadable) Error() string {
	return fmt.Sprintf("bitstream buffer %d is unreadable", e.ID)
}

// Buffer is one mapped bitstream fragment. Ownership of the underlying bytes
// transfers to the coordinator on submission and is handed back when the
// end-of-buffer notification for the buffer's ID is emitted; the submitter
// must not mutate the bytes in between.
type Buffer struct {
	id   types.BufferID
	data []byte
}

// Map wraps the submitted bytes into a Buffer. An empty submission is
// considered unreadable.
func Map(id types.BufferID, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrUnreadable{ID: id}
	}
	return &Buffer{
		id:   id,
		data: data,
	}, nil
}

func (b *Buffer) ID() types.BufferID {
	return b.id
}

func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Size() int {
	return len(b.data)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%d, %d bytes)", b.id, len(b.data))
}
