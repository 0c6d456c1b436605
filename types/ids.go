package types

// BufferID identifies one submitted bitstream buffer. It is assigned by the
// client and is unique per submission.
type BufferID int32

// SurfaceID identifies one hardware decode-target surface.
type SurfaceID int32

// PictureID identifies one client-supplied output target.
type PictureID int32
