package archive

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures so callers can map them to responses
// without probing error strings.
type Kind int

const (
	// KindUnsupported: the upload is neither a ZIP archive nor a plain HTML
	// document.
	KindUnsupported Kind = iota
	// KindCorrupt: the upload claims to be a ZIP but cannot be parsed.
	KindCorrupt
	// KindMalicious: an entry name would resolve outside the destination
	// directory (zip slip).
	KindMalicious
	// KindQuotaExceeded: cumulative uncompressed size exceeds the ceiling.
	KindQuotaExceeded
	// KindIO: a filesystem operation failed mid-extraction.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindCorrupt:
		return "corrupt"
	case KindMalicious:
		return "malicious"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// Error is the tagged error returned from Extract. Entry names the offending
// archive entry when one is known.
type Error struct {
	Kind  Kind
	Entry string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Entry != "" && e.Err != nil:
		return fmt.Sprintf("archive: %s: entry %q: %v", e.Kind, e.Entry, e.Err)
	case e.Entry != "":
		return fmt.Sprintf("archive: %s: entry %q", e.Kind, e.Entry)
	case e.Err != nil:
		return fmt.Sprintf("archive: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("archive: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or ok=false for foreign errors.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
