package engine

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type NotFoundError struct {
	Kind string
	ID   int64
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s with id = %d", err.Kind, err.ID)
}
