package scale

import (
	"errors"
	"fmt"
)

// Sentinel kinds for scale errors.
var (
	ErrUnknownScale = errors.New("unknown scale")
	ErrInvalidScale = errors.New("invalid scale")
)

// UnknownScaleError reports a conversion to a scale that is not registered.
type UnknownScaleError struct {
	Scale string
}

func (e *UnknownScaleError) Error() string {
	return fmt.Sprintf("unknown scale %q", e.Scale)
}

// Is makes errors.Is(err, ErrUnknownScale) hold.
func (e *UnknownScaleError) Is(target error) bool {
	return target == ErrUnknownScale
}
