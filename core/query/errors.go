package query

import (
	"errors"
	"strings"
)

var (
	ErrNoResourceType = errors.New("no resource type to search")
	ErrEmptyQuery     = errors.New("query has no text, filter or facet")
	ErrInvalidFilter  = errors.New("invalid filter")
)

// QuerierError reports a failure the querier could not degrade from, such as
// an unreachable store.
type QuerierError struct {
	Op     string
	Engine string
	Err    error
}

func (err QuerierError) Error() string {
	var s strings.Builder
	s.WriteString("querier error: ")
	if err.Engine != "" {
		s.WriteString("engine '" + err.Engine + "': ")
	}
	if err.Op != "" {
		s.WriteString(err.Op + ": ")
	}
	s.WriteString(err.Err.Error())
	return s.String()
}

func (err QuerierError) Unwrap() error { return err.Err }
