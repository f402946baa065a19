package romset

import (
	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/mangle"
)

// ServeMode is the on-image discriminator byte identifying how a ROM set's
// table is meant to be indexed and interpreted by the runtime.
type ServeMode byte

const (
	ServeSingle ServeMode = 0
	ServeMulti  ServeMode = 1
	ServeBanked ServeMode = 2
)

// Built is the output of Build: the mangled table ready to be placed in
// the image, and the serve-mode discriminator that goes with it.
type Built struct {
	Table     []byte
	ServeMode ServeMode
	Chip      hardware.ChipType
}

// bankBits is fixed at two, giving the "up to 4 ROMs" bank space the
// specification describes for multi and banked sets.
const bankBits = 2

// Build constructs the mangled table for one resolved ROM set on board pm.
func Build(pm hardware.PinMap, set cartridgeloader.ResolvedSet) (Built, error) {
	if len(set.ROMs) == 0 {
		return Built{}, errors.New(errors.InputError, "ROM set has no ROMs")
	}

	chip := set.ROMs[0].Chip
	for _, r := range set.ROMs[1:] {
		if r.Chip != chip {
			return Built{}, errors.New(errors.InputError, "ROM set mixes chip types %v and %v", chip, r.Chip)
		}
	}

	desc, err := hardware.Lookup(chip)
	if err != nil {
		return Built{}, err
	}
	if desc.Unsupported {
		return Built{}, errors.New(errors.Unsupported, "chip %v has no table-driven serving path in this runtime generation", chip)
	}

	var mode ServeMode
	switch set.Mode {
	case cartridgeloader.Single:
		mode = ServeSingle
	case cartridgeloader.Multi:
		mode = ServeMulti
	case cartridgeloader.Banked:
		mode = ServeBanked
	default:
		return Built{}, errors.New(errors.InputError, "unknown serve mode %v", set.Mode)
	}

	useX := mode != ServeSingle

	bits, err := mangle.TableBits(pm, chip, true, useX)
	if err != nil {
		return Built{}, errors.Wrap(errors.LayoutError, err, "sizing table for %v", chip)
	}
	table := make([]byte, 1<<uint(bits))
	for i := range table {
		table[i] = mangle.FillByte
	}

	polarities := make([][3]hardware.Polarity, len(set.ROMs))
	for i, r := range set.ROMs {
		polarities[i] = CSPolarities(r.Spec)
	}

	numCS := len(desc.ControlLines)
	if numCS > 3 {
		numCS = 3
	}
	xCombos := 1
	if useX {
		xCombos = 1 << bankBits
	}

	for addr := 0; addr < desc.Capacity; addr++ {
		for csBits := 0; csBits < (1 << uint(numCS)); csBits++ {
			var cs [3]bool
			for k := 0; k < numCS; k++ {
				cs[k] = csBits&(1<<uint(k)) != 0
			}

			for xVal := 0; xVal < xCombos; xVal++ {
				x := [2]bool{xVal&1 != 0, xVal&2 != 0}

				romIdx, activated := SelectROM(mode, len(set.ROMs), pm.LogicalBank(xVal), polarities, cs)
				if !activated {
					continue
				}

				idx, err := mangle.Index(pm, chip, mangle.Tuple{Addr: uint32(addr), CS: cs, X: x}, true, useX)
				if err != nil {
					return Built{}, err
				}
				if int(idx) >= len(table) {
					return Built{}, errors.New(errors.LayoutError, "computed index %d exceeds table size %d", idx, len(table))
				}

				table[idx] = mangle.MangleByte(pm, set.ROMs[romIdx].Bytes[addr])
			}
		}
	}

	return Built{Table: table, ServeMode: mode, Chip: chip}, nil
}

// SelectROM decides which ROM in a set answers for the given serve mode,
// bank-select value, and CS combination, and whether that ROM is activated
// at all for this combination.
//
// multi never wraps: a bank value with no corresponding ROM is simply
// never activated. banked wraps by modulo, per the specification's tie
// break for a bank-switched set declaring fewer ROMs than banks.
func SelectROM(mode ServeMode, numROMs int, xVal int, polarities [][3]hardware.Polarity, cs [3]bool) (int, bool) {
	switch mode {
	case ServeSingle:
		return 0, mangle.Activates(polarities[0], cs)

	case ServeMulti:
		if xVal >= numROMs {
			return 0, false
		}
		return xVal, mangle.Activates(polarities[xVal], cs)

	case ServeBanked:
		romIdx := xVal % numROMs
		return romIdx, mangle.Activates(polarities[romIdx], cs)

	default:
		return 0, false
	}
}

// CSPolarities reads the per-line active polarity a ROM descriptor
// declares, defaulting an empty or unrecognised string to NotUsed.
func CSPolarities(spec cartridgeloader.ROMSpec) [3]hardware.Polarity {
	parse := func(s string) hardware.Polarity {
		switch s {
		case "active_low":
			return hardware.ActiveLow
		case "active_high":
			return hardware.ActiveHigh
		default:
			return hardware.NotUsed
		}
	}
	return [3]hardware.Polarity{parse(spec.CS1), parse(spec.CS2), parse(spec.CS3)}
}
