package tree

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrListNotAllowed  = errors.New("list not allowed for entity kind")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrRootImmutable   = errors.New("script root cannot be moved or replaced")
	ErrInvalidValue    = errors.New("invalid property value")
)

type NotFoundError struct {
	Kind string
	Path string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}
