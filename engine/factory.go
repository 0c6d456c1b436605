package engine

import (
	"context"
	"fmt"
)

type ErrUnsupportedProfile struct {
	Profile Profile
}

func (e ErrUnsupportedProfile) Error() string {
	return fmt.Sprintf("profile '%s' is not supported by the platform", e.Profile)
}

// Factory constructs a decode engine for a profile. It returns
// ErrUnsupportedProfile (possibly wrapped) if the platform or the driver
// cannot decode that profile; this failure is permanent.
type Factory interface {
	NewEngine(ctx context.Context, profile Profile, surfaceReady SurfaceReadyFunc) (Engine, error)
}
