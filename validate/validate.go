package validate

import (
	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/logger"
	"github.com/sweproj/onerom/mangle"
	"github.com/sweproj/onerom/parse"
	"github.com/sweproj/onerom/romset"
)

// bankBits mirrors romset.bankBits: the X1/X2 bank-select space the
// validator must enumerate alongside address and CS lines.
const bankBits = 2

// Mismatch records one tuple whose demangled byte disagreed with the
// source ROM.
type Mismatch struct {
	ROMIndex int
	Address  int
	CS       [3]bool
	X        [2]bool
	Got      byte
	Want     byte
}

// SetReport is the per-ROM-set result of a validation pass.
type SetReport struct {
	TuplesChecked int
	Mismatches    []Mismatch // capped at the first 5, per the specification
}

// Report is the full result of validating every ROM set in an image.
type Report struct {
	Sets []SetReport
}

// OK reports whether every set in the report validated with no mismatches.
func (r Report) OK() bool {
	for _, s := range r.Sets {
		if len(s.Mismatches) > 0 {
			return false
		}
	}
	return true
}

const maxMismatchesReported = 5

// Validate re-derives, for each ROM set, the expected byte at every legal
// (address, cs1, cs2, cs3, x1, x2) tuple and compares it against what
// image actually serves, using sets as the source of truth the image was
// composed from. For 28-pin chips, whose CS lines do not enter the table
// index, only the CS combination that activates the selected ROM is
// checked at each (address, bank).
func Validate(pm hardware.PinMap, image []byte, sets []cartridgeloader.ResolvedSet) (Report, error) {
	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		return Report{}, err
	}
	if len(img.Sets) != len(sets) {
		return Report{}, errors.New(errors.IntegrityError, "image has %d ROM sets, config describes %d", len(img.Sets), len(sets))
	}

	report := Report{Sets: make([]SetReport, len(sets))}

	for i, s := range sets {
		sr, err := validateSet(pm, img, i, s)
		if err != nil {
			return Report{}, errors.Wrap(errors.IntegrityError, err, "ROM set %d", i)
		}
		report.Sets[i] = sr
		logger.Logf("validate", "set %d: %d tuples checked, %d mismatches", i, sr.TuplesChecked, len(sr.Mismatches))
	}

	return report, nil
}

func validateSet(pm hardware.PinMap, img *parse.Image, setIdx int, s cartridgeloader.ResolvedSet) (SetReport, error) {
	if len(s.ROMs) == 0 {
		return SetReport{}, errors.New(errors.InputError, "ROM set has no ROMs")
	}
	chip := s.ROMs[0].Chip
	desc, err := hardware.Lookup(chip)
	if err != nil {
		return SetReport{}, err
	}

	table, err := img.TableBytes(setIdx)
	if err != nil {
		return SetReport{}, err
	}

	var mode romset.ServeMode
	switch s.Mode {
	case cartridgeloader.Single:
		mode = romset.ServeSingle
	case cartridgeloader.Multi:
		mode = romset.ServeMulti
	case cartridgeloader.Banked:
		mode = romset.ServeBanked
	default:
		return SetReport{}, errors.New(errors.InputError, "unknown serve mode %v", s.Mode)
	}
	useX := mode != romset.ServeSingle

	polarities := make([][3]hardware.Polarity, len(s.ROMs))
	for i, r := range s.ROMs {
		polarities[i] = romset.CSPolarities(r.Spec)
	}

	numCS := len(desc.ControlLines)
	if numCS > 3 {
		numCS = 3
	}
	xCombos := 1
	if useX {
		xCombos = 1 << bankBits
	}

	// CS does not participate in the table index for 28-pin chips (§4.4):
	// the CE/OE decode happens in hardware outside the table, so every CS
	// combination at a given (address, bank) aliases the same table entry.
	// Enumerating them independently would compare that one entry against
	// several different expectations. Only the combination that actually
	// activates the selected ROM is meaningful here, so that is the only
	// one checked.
	csParticipates := desc.PinCount != 28
	csCombos := 1 << uint(numCS)
	if !csParticipates {
		csCombos = 1
	}

	var sr SetReport

	for addr := 0; addr < desc.Capacity; addr++ {
		for csBits := 0; csBits < csCombos; csBits++ {
			var cs [3]bool
			if csParticipates {
				for k := 0; k < numCS; k++ {
					cs[k] = csBits&(1<<uint(k)) != 0
				}
			}

			for xVal := 0; xVal < xCombos; xVal++ {
				x := [2]bool{xVal&1 != 0, xVal&2 != 0}
				bank := pm.LogicalBank(xVal)

				var romIdx int
				var activated bool
				if csParticipates {
					romIdx, activated = romset.SelectROM(mode, len(s.ROMs), bank, polarities, cs)
				} else {
					var inRange bool
					romIdx, inRange = selectedROMIndex(mode, len(s.ROMs), bank)
					if inRange {
						cs = activatingCS(polarities[romIdx])
					}
					activated = inRange
				}

				idx, err := mangle.Index(pm, chip, mangle.Tuple{Addr: uint32(addr), CS: cs, X: x}, true, useX)
				if err != nil {
					return SetReport{}, err
				}
				if int(idx) >= len(table) {
					return SetReport{}, errors.New(errors.IntegrityError, "computed index %d exceeds table size %d", idx, len(table))
				}

				want := mangle.FillByte
				if activated {
					want = s.ROMs[romIdx].Bytes[addr]
				}
				got := mangle.DemangleByte(pm, table[idx])

				sr.TuplesChecked++
				if got != want && len(sr.Mismatches) < maxMismatchesReported {
					sr.Mismatches = append(sr.Mismatches, Mismatch{
						ROMIndex: romIdx, Address: addr, CS: cs, X: x, Got: got, Want: want,
					})
				}
			}
		}
	}

	return sr, nil
}

// selectedROMIndex mirrors the bank-selection half of romset.SelectROM
// without the CS-dependent activation check, for chips where CS cannot be
// used to derive an activating tuple up front because it carries no
// index information at all. bank is the logical bank-select value (after
// jumper-pull inversion), not the raw X1/X2 electrical reading.
func selectedROMIndex(mode romset.ServeMode, numROMs, bank int) (int, bool) {
	switch mode {
	case romset.ServeSingle:
		return 0, true
	case romset.ServeMulti:
		if bank >= numROMs {
			return 0, false
		}
		return bank, true
	case romset.ServeBanked:
		return bank % numROMs, true
	default:
		return 0, false
	}
}

// activatingCS derives the one CS tuple that activates a ROM declaring
// polarities p, the same way parse.Demangle picks its representative
// combination for a 28-pin chip's CE/OE lines.
func activatingCS(p [3]hardware.Polarity) [3]bool {
	var cs [3]bool
	for k, pol := range p {
		cs[k] = pol == hardware.ActiveHigh
	}
	return cs
}
