// Package inspect renders a human-readable summary of a composed image's
// metadata — one page per ROM set — and, on a real terminal, pages through
// them interactively a screen at a time.
package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/term"

	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/parse"
	"github.com/sweproj/onerom/romset"
)

// Page is the rendered summary of one ROM set.
type Page struct {
	Index int
	Lines []string
}

// BuildPages renders one Page per ROM set in img.
func BuildPages(img *parse.Image) []Page {
	pages := make([]Page, len(img.Sets))
	for i, s := range img.Sets {
		var lines []string
		lines = append(lines, fmt.Sprintf("ROM set %d: serve mode %s, %d ROM(s)", i, serveModeName(s.ServeMode), len(s.ROMs)))
		for j, r := range s.ROMs {
			lines = append(lines, fmt.Sprintf("  ROM %d: chip %s, CS1 %s, CS2 %s, CS3 %s",
				j, r.Chip, r.CS1, r.CS2, r.CS3))
		}
		if s.Overrides != nil {
			lines = append(lines, "  firmware overrides present")
		}
		if len(s.Params) > 0 {
			lines = append(lines, fmt.Sprintf("  serve_alg_params: % x", s.Params))
		}
		pages[i] = Page{Index: i, Lines: lines}
	}
	return pages
}

func serveModeName(m romset.ServeMode) string {
	switch m {
	case romset.ServeSingle:
		return "single"
	case romset.ServeMulti:
		return "multi"
	case romset.ServeBanked:
		return "banked"
	default:
		return "unknown"
	}
}

// WriteAll writes every page to out, separated by a blank line, without
// any pagination. Used when out is not an interactive terminal.
func WriteAll(out io.Writer, pages []Page) error {
	for _, p := range pages {
		if _, err := fmt.Fprintln(out, strings.Join(p.Lines, "\n")); err != nil {
			return err
		}
	}
	return nil
}

// RunPager writes each page to out and, between pages, waits for a single
// keypress read from ttyPath before continuing; "q" stops early. It is the
// interactive path used by the inspect sub-command on a real terminal.
func RunPager(out io.Writer, ttyPath string, pages []Page) error {
	t, err := term.Open(ttyPath)
	if err != nil {
		return WriteAll(out, pages)
	}
	defer t.Close()

	if err := term.RawMode(t); err != nil {
		return WriteAll(out, pages)
	}
	defer t.Restore()

	buf := make([]byte, 1)
	for i, p := range pages {
		fmt.Fprintln(out, strings.Join(p.Lines, "\n"))
		if i == len(pages)-1 {
			break
		}
		fmt.Fprintf(out, "\r\n-- press any key for next ROM set, q to quit --\r\n")
		if _, err := t.Read(buf); err != nil {
			return nil
		}
		if buf[0] == 'q' || buf[0] == 'Q' {
			return nil
		}
	}
	return nil
}

// PinMapSummary renders the handful of pin-map facts that matter most
// when sanity-checking an image against the board it will be flashed to.
func PinMapSummary(pm hardware.PinMap) string {
	return fmt.Sprintf("pin map %s: %d address lines, %d X lines, data shares port: %v",
		pm.Revision, addressLineCount(pm), len(pm.X), pm.DataSharesPort)
}

func addressLineCount(pm hardware.PinMap) int {
	n := 0
	for _, a := range pm.Address {
		if a != 0xFF {
			n++
		}
	}
	return n
}
