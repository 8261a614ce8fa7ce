package sparseht

import "errors"

// ErrInvalidArgument is returned by the constructors for a non-positive
// capacity or missing callbacks.
var ErrInvalidArgument = errors.New("sparseht: invalid argument")
