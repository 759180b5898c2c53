package workflow

import "errors"

var (
	// ErrInconsistentState is returned when an event cannot be applied to the
	// aggregate as persisted, e.g. completing an already declined signature.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrStore wraps persistence and object storage failures. Nothing is committed when it is returned.
	ErrStore = errors.New("store error")
	// ErrNotFound is returned when an event references an unknown signature or signer.
	// It also matches ErrInconsistentState.
	ErrNotFound error = &notFound{}
)

type notFound struct{}

func (*notFound) Error() string { return "signature or signer not found" }

func (*notFound) Is(target error) bool { return target == ErrInconsistentState }
