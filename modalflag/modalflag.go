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

// Package modalflag wraps the standard library flag package with an
// optional sub-mode: a leading non-flag argument that selects which mode
// the rest of the command line applies to, the way "compose", "parse" and
// "validate" select the mode of the onerom command line.
package modalflag

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ParseResult is returned by Parse and tells the caller whether it should
// continue on to running the selected mode, or whether help text has
// already been written to Output and the program should simply exit.
type ParseResult int

const (
	ParseContinue ParseResult = iota
	ParseHelp
)

// Modes parses a command line that may optionally be split into a leading
// sub-mode followed by flags specific to that mode.
type Modes struct {
	// Output is where help text is written to. It must be set before
	// Parse() is called.
	Output io.Writer

	flags    *flag.FlagSet
	numFlags int
	args     []string
	remain   []string

	subModes []string
	mode     string
	path     string
}

func (md *Modes) ensure() {
	if md.flags == nil {
		md.flags = flag.NewFlagSet("", flag.ContinueOnError)
		md.flags.SetOutput(io.Discard)
		md.flags.Usage = func() {}
	}
}

// NewArgs sets the argument list to be parsed, not including the name of
// the program being run.
func (md *Modes) NewArgs(args []string) {
	md.ensure()
	md.args = args
}

// AddBool defines a boolean flag and returns a pointer to the variable
// that stores its value.
func (md *Modes) AddBool(name string, value bool, usage string) *bool {
	md.ensure()
	md.numFlags++
	return md.flags.Bool(name, value, usage)
}

// AddString defines a string flag and returns a pointer to the variable
// that stores its value.
func (md *Modes) AddString(name string, value string, usage string) *string {
	md.ensure()
	md.numFlags++
	return md.flags.String(name, value, usage)
}

// AddInt defines an integer flag and returns a pointer to the variable
// that stores its value.
func (md *Modes) AddInt(name string, value int, usage string) *int {
	md.ensure()
	md.numFlags++
	return md.flags.Int(name, value, usage)
}

// AddSubModes declares the names of the available sub-modes. The first
// name given is the default, selected when no mode is named on the
// command line. AddSubModes is a no-op if called more than once.
func (md *Modes) AddSubModes(modes ...string) {
	if md.subModes != nil {
		return
	}
	md.subModes = modes
}

// Parse processes the argument list set by NewArgs. If the argument list
// requests help (via -help or -h) then help text is written to Output and
// ParseHelp is returned; the caller should not proceed any further. On
// ParseContinue, Mode, Path and RemainingArgs are ready to be consulted.
func (md *Modes) Parse() (ParseResult, error) {
	md.ensure()

	args := md.args
	peeled := false
	if len(md.subModes) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		chosen := args[0]
		found := false
		for _, s := range md.subModes {
			if strings.EqualFold(s, chosen) {
				md.mode = s
				md.path = s
				found = true
				break
			}
		}
		if !found {
			return ParseContinue, fmt.Errorf("unrecognised mode %q", chosen)
		}
		args = args[1:]
		peeled = true
	} else if len(md.subModes) > 0 {
		md.mode = md.subModes[0]
		md.path = md.subModes[0]
	}

	// A Modes instance used purely to dispatch between sub-modes, with no
	// flags of its own, leaves its flags entirely to whichever Modes the
	// caller builds next for the selected mode.
	if peeled && md.numFlags == 0 {
		md.remain = args
		return ParseContinue, nil
	}

	err := md.flags.Parse(args)
	if err == flag.ErrHelp {
		md.writeHelp()
		return ParseHelp, nil
	}
	if err != nil {
		return ParseContinue, err
	}

	md.remain = md.flags.Args()

	return ParseContinue, nil
}

// Mode returns the sub-mode selected by Parse, or the empty string if no
// sub-modes were declared.
func (md *Modes) Mode() string {
	return md.mode
}

// Path returns the selected sub-mode in a form suitable for display in a
// command prompt or log line. For the single level of nesting this package
// supports, it is identical to Mode.
func (md *Modes) Path() string {
	return md.path
}

// RemainingArgs returns the non-flag arguments left over after Parse.
func (md *Modes) RemainingArgs() []string {
	return md.remain
}

func (md *Modes) writeHelp() {
	if md.numFlags == 0 && len(md.subModes) == 0 {
		fmt.Fprint(md.Output, "No help available\n")
		return
	}

	fmt.Fprint(md.Output, "Usage:\n")

	if md.numFlags > 0 {
		md.flags.SetOutput(md.Output)
		md.flags.PrintDefaults()
		md.flags.SetOutput(io.Discard)
	}

	if md.numFlags > 0 && len(md.subModes) > 0 {
		fmt.Fprint(md.Output, "\n")
	}

	if len(md.subModes) > 0 {
		fmt.Fprintf(md.Output, "  available sub-modes: %s\n", strings.Join(md.subModes, ", "))
		fmt.Fprintf(md.Output, "    default: %s\n", md.subModes[0])
	}
}
