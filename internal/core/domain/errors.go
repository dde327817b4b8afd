package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a route-finding attempt failed.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindInvalidPlace    ErrorKind = "invalid_place"
	ErrorKindNoRoute         ErrorKind = "no_route"
	ErrorKindTransport       ErrorKind = "transport"
	ErrorKindIndexOutOfRange ErrorKind = "index_out_of_range"
)

// Message returns the user-facing text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindInvalidPlace:
		return "Invalid place names. Try again!"
	case ErrorKindNoRoute:
		return "No valid route found. Try again!"
	case ErrorKindTransport:
		return "Failed to fetch route. Try again later!"
	case ErrorKindIndexOutOfRange:
		return "That route alternative does not exist."
	default:
		return ""
	}
}

var (
	ErrInvalidPlace    = errors.New("place could not be resolved")
	ErrNoRoute         = errors.New("no valid route found")
	ErrTransport       = errors.New("collaborator call failed")
	ErrIndexOutOfRange = errors.New("candidate index out of range")

	ErrEmptyQuery      = errors.New("start and end are required")
	ErrAttemptInFlight = errors.New("a route attempt is already in flight")
	ErrNotReady        = errors.New("no route set available")
	ErrSessionNotFound = errors.New("session not found")

	ErrCoordinateOutOfRange = errors.New("coordinate out of range")
	ErrMalformedCoordinate  = errors.New("malformed coordinate")
	ErrNoMatches            = errors.New("no geocoding matches")
)

var kindSentinels = map[ErrorKind]error{
	ErrorKindInvalidPlace:    ErrInvalidPlace,
	ErrorKindNoRoute:         ErrNoRoute,
	ErrorKindTransport:       ErrTransport,
	ErrorKindIndexOutOfRange: ErrIndexOutOfRange,
}

// RouteError is the error a failed attempt surfaces to the rendering layer.
type RouteError struct {
	Kind    ErrorKind
	Queries []PlaceQuery // places that failed, for InvalidPlace
	Err     error
}

func (e *RouteError) Error() string {
	msg := string(e.Kind)
	if len(e.Queries) > 0 {
		qs := make([]string, len(e.Queries))
		for i, q := range e.Queries {
			qs[i] = string(q)
		}
		msg += " [" + strings.Join(qs, ", ") + "]"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that belongs to the error's kind.
func (e *RouteError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf maps err to its ErrorKind, or ErrorKindNone if it is not a route failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var re *RouteError
	if errors.As(err, &re) {
		return re.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ErrorKindNone
}

// ResolutionFailure records why a single place could not be resolved.
type ResolutionFailure struct {
	Query PlaceQuery
	Err   error
}

func (f *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolve %q: %v", string(f.Query), f.Err)
}

func (f *ResolutionFailure) Unwrap() error {
	return f.Err
}
