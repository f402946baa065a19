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

// Package errors is a helper package for the plain Go language error type. We
// think of these errors as curated errors. External to this package, curated
// errors are referenced as plain errors (ie. they implement the error
// interface), but every curated error also carries a closed ErrorKind that
// callers can recover with errors.Kind() to decide an exit code or pick the
// right entry in the CLI's structured JSON failure object.
//
// Internally, errors are thought of as being composed of parts, as described
// by The Go Programming Language (Donovan, Kernighan): "When the error is
// ultimately handled by the program's main function, it should provide a clear
// causal chain from the root of the problem to the overall failure".
//
// The Error() function implementation for curated errors ensures that this
// chain is normalised. Specifically, that the chain does not start with two
// identical parts. The practical advantage of this is that it alleviates the
// problem of when and how to wrap errors. For example:
//
//	func A() error {
//		err := B()
//		if err != nil {
//			return errors.Wrap(errors.SourceError, err, "fetching rom")
//		}
//		return nil
//	}
//
//	func B() error {
//		return errors.New(errors.SourceError, "fetching rom: timeout")
//	}
//
// will result in the message:
//
//	fetching rom: timeout
//
// and not a doubled "fetching rom: fetching rom: timeout".
package errors
