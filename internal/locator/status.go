package locator

import (
	"errors"
	"fmt"
)

// Level is the banner severity.
type Level string

const (
	LevelNone    Level = ""
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Status is the text and severity shown in the status banner.
type Status struct {
	Level Level  `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Fixed banner texts.
const (
	MsgLoading               = "loading"
	MsgNoStores              = "No stores found in this location"
	MsgNoLocationFound       = "Error: No location found for that address"
	MsgGeocodingUnavailable  = "Error: Address search is unavailable"
	MsgInvalidSearchResponse = "Error: No results returned"
	MsgSearchUnavailable     = "Error: Store search is unavailable"
	MsgUnknownError          = "Error: Search failed"
)

// Blocking notices raised for geocoding failures.
const (
	NoticeNotFound = "Search result not found."
	noticeErrorFmt = "Address Search error: %s"
)

// LoadingStatus is shown while a search request is in flight.
func LoadingStatus() Status {
	return Status{Level: LevelInfo, Text: MsgLoading}
}

// CountStatus derives the banner for a successful search of count facilities.
func CountStatus(count int) Status {
	switch {
	case count <= 0:
		return Status{Level: LevelWarning, Text: MsgNoStores}
	case count == 1:
		return Status{Level: LevelNone, Text: "1 result returned"}
	default:
		return Status{Level: LevelNone, Text: fmt.Sprintf("%d results returned", count)}
	}
}

// ErrorStatus derives the banner for a failed invocation. It depends only on
// the error kind.
func ErrorStatus(err error) Status {
	switch KindOf(err) {
	case KindNoLocationFound:
		return Status{Level: LevelDanger, Text: MsgNoLocationFound}
	case KindGeocodingUnavailable:
		return Status{Level: LevelDanger, Text: MsgGeocodingUnavailable}
	case KindInvalidSearchResponse:
		return Status{Level: LevelDanger, Text: MsgInvalidSearchResponse}
	case KindSearchUnavailable:
		return Status{Level: LevelDanger, Text: MsgSearchUnavailable}
	default:
		return Status{Level: LevelDanger, Text: MsgUnknownError}
	}
}

// geocodeNotice returns the blocking notice for a geocoding failure, or "" if
// err is not a geocoding failure.
func geocodeNotice(err error) string {
	switch KindOf(err) {
	case KindNoLocationFound:
		return NoticeNotFound
	case KindGeocodingUnavailable:
		cause := err
		var le *Error
		if errors.As(err, &le) && le.Err != nil {
			cause = le.Err
		}
		return fmt.Sprintf(noticeErrorFmt, cause.Error())
	default:
		return ""
	}
}
