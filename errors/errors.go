// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package errors

import (
	"fmt"
	"strings"
)

// ErrorKind is the closed taxonomy of failure categories a caller can switch
// on. It mirrors the error taxonomy every stage of the pipeline (config
// loader, mangler, composer, parser, validator) is specified against.
type ErrorKind int

const (
	// InputError covers schema violations, unknown enum values, and
	// inconsistent or unsatisfiable transforms.
	InputError ErrorKind = iota

	// SourceError covers failures resolving a ROM's byte source: local file
	// I/O, HTTP fetch, or archive extraction.
	SourceError

	// LayoutError covers alignment and offset-table failures during compose.
	LayoutError

	// IntegrityError covers parse-time and validate-time verification
	// failures: bad magic, bad version, checksum mismatch, round-trip
	// mismatch.
	IntegrityError

	// Unsupported covers chip types, hardware revisions, or metadata
	// versions the catalog or parser does not recognise.
	Unsupported
)

// String names an ErrorKind for diagnostics and for the CLI's JSON error
// object.
func (k ErrorKind) String() string {
	switch k {
	case InputError:
		return "input_error"
	case SourceError:
		return "source_error"
	case LayoutError:
		return "layout_error"
	case IntegrityError:
		return "integrity_error"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown_error"
	}
}

// curated errors allow code to specify a predefined kind and not worry too
// much about how the message will be formatted on output.
type curated struct {
	kind   ErrorKind
	detail string
	cause  error
}

// New creates a curated error of the given kind, formatting detail the same
// way fmt.Sprintf does.
func New(kind ErrorKind, format string, args ...interface{}) error {
	return curated{
		kind:   kind,
		detail: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a curated error of the given kind that chains an underlying
// cause.
func Wrap(kind ErrorKind, cause error, format string, args ...interface{}) error {
	return curated{
		kind:   kind,
		detail: fmt.Sprintf(format, args...),
		cause:  cause,
	}
}

// Error returns the normalised error message. Normalisation being the
// removal of a duplicated leading part: when the first two ": "-separated
// parts of the message are equal, only one of them is kept. Duplicates
// further along the chain are left as they are.
//
// Implements the go language error interface.
func (e curated) Error() string {
	msg := e.detail
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}

	p := strings.SplitN(msg, ": ", 3)
	if len(p) > 1 && p[0] == p[1] {
		return strings.Join(p[1:], ": ")
	}
	return strings.Join(p, ": ")
}

// Unwrap allows errors.Is / errors.As from the standard library to see
// through a curated error to its cause.
func (e curated) Unwrap() error {
	return e.cause
}

// Kind extracts the taxonomy kind from err, if err (or anything in its
// Unwrap chain) is a curated error produced by this package.
func Kind(err error) (ErrorKind, bool) {
	for err != nil {
		if c, ok := err.(curated); ok {
			return c.kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}

// Is reports whether err is a curated error of the given kind.
func Is(err error, kind ErrorKind) bool {
	k, ok := Kind(err)
	return ok && k == kind
}
