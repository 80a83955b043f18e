package referenceframe

import "github.com/pkg/errors"

// ErrTransformUnavailable is the cause of every lookup that the frame graph cannot answer.
var ErrTransformUnavailable = errors.New("transform unavailable")

// NewFrameMissingError returns an error indicating that the given frame is not known.
func NewFrameMissingError(frameName string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frame %q does not exist", frameName)
}

// NewTransformUnavailableError returns an error indicating that no chain of transforms
// connects parent to child.
func NewTransformUnavailableError(parent, child string) error {
	return errors.Wrapf(ErrTransformUnavailable, "no transform from %q to %q", parent, child)
}

// IsTransformUnavailable reports whether err was caused by a lookup the graph could not answer.
func IsTransformUnavailable(err error) bool {
	return errors.Is(err, ErrTransformUnavailable)
}
