package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/serverinfo"
)

// Kind classifies why a query failed.
type Kind string

// Failure kinds reported in the output.
const (
	KindTimeout  Kind = "timeout"
	KindNetwork  Kind = "network_error"
	KindParse    Kind = "parse_error"
	KindAddress  Kind = "address_error"
	KindCanceled Kind = "canceled"
	KindUnknown  Kind = "unknown"
)

// ErrTimeout is matched by errors.Is for queries that got no complete response in time.
var ErrTimeout = errors.New("no response before deadline")

// QueryError is the error returned by QueryServer.
type QueryError struct {
	Err  error
	Kind Kind
	Op   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// KindOf classifies any error produced while querying a server.
func KindOf(err error) Kind {
	var qe *QueryError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &qe):
		return qe.Kind
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, address.ErrInvalidHost), errors.Is(err, address.ErrInvalidPort):
		return KindAddress
	case errors.Is(err, serverinfo.ErrInvalidNumber), errors.Is(err, serverinfo.ErrTruncated),
		errors.Is(err, serverinfo.ErrTooManyPlayers):
		return KindParse
	default:
		return KindUnknown
	}
}
