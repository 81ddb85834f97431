package locator

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies controller failures.
type ErrorKind int

const (
	// KindUnknown is any error outside the taxonomy.
	KindUnknown ErrorKind = iota
	// KindNoLocationFound means the geocoder returned zero matches.
	KindNoLocationFound
	// KindGeocodingUnavailable means the geocoder could not be reached or failed.
	KindGeocodingUnavailable
	// KindInvalidSearchResponse means the search body was malformed or had no list.
	KindInvalidSearchResponse
	// KindSearchUnavailable means the search backend could not be reached or failed.
	KindSearchUnavailable
)

// Sentinels for errors.Is checks.
var (
	ErrNoLocationFound       = eris.New("locator: no location found")
	ErrGeocodingUnavailable  = eris.New("locator: geocoding unavailable")
	ErrInvalidSearchResponse = eris.New("locator: invalid search response")
	ErrSearchUnavailable     = eris.New("locator: search unavailable")

	// ErrSuperseded is returned by an invocation whose results were discarded
	// because a later-started invocation already completed.
	ErrSuperseded = eris.New("locator: superseded by a newer search")
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoLocationFound:
		return "no_location_found"
	case KindGeocodingUnavailable:
		return "geocoding_unavailable"
	case KindInvalidSearchResponse:
		return "invalid_search_response"
	case KindSearchUnavailable:
		return "search_unavailable"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNoLocationFound:
		return ErrNoLocationFound
	case KindGeocodingUnavailable:
		return ErrGeocodingUnavailable
	case KindInvalidSearchResponse:
		return ErrInvalidSearchResponse
	case KindSearchUnavailable:
		return ErrSearchUnavailable
	default:
		return nil
	}
}

// Error is a classified failure carrying its underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError classifies cause under kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	s := e.Kind.sentinel()
	if s == nil {
		if e.Err == nil {
			return "locator: unknown error"
		}
		return e.Err.Error()
	}
	if e.Err == nil {
		return s.Error()
	}
	return s.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the taxonomy sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the taxonomy kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	for _, k := range []ErrorKind{KindNoLocationFound, KindGeocodingUnavailable, KindInvalidSearchResponse, KindSearchUnavailable} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}
