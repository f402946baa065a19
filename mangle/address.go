package mangle

import (
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
)

const unusedPin = 0xFF

// addressPins returns the logical-address-bit -> GPIO-pin table to use for
// chip on board pm, after applying any chip-specific wiring quirk and the
// 28-pin dense-packing rule.
//
// The 2732 physically swaps A11 and A12 relative to every other 24-pin part
// this catalog describes, so its logical-to-pin assignment is swapped here
// before anything else touches it.
func addressPins(pm hardware.PinMap, desc hardware.ChipDescriptor) [17]uint8 {
	pins := pm.Address

	if desc.Type == hardware.C2732 {
		pins[11], pins[12] = pins[12], pins[11]
	}

	if desc.PinCount == 28 {
		min := uint8(unusedPin)
		for i := 0; i < desc.AddressWidth; i++ {
			if pins[i] != unusedPin && pins[i] < min {
				min = pins[i]
			}
		}
		if min != unusedPin && min != 0 {
			for i := 0; i < desc.AddressWidth; i++ {
				if pins[i] != unusedPin {
					pins[i] -= min
				}
			}
		}
	}

	return pins
}

// Tuple is one (address, CS, bank/extension) combination the table is
// indexed by.
type Tuple struct {
	Addr uint32
	CS   [3]bool // raw electrical level of CS1/CS2/CS3 (true = driven high)
	X    [2]bool // raw electrical level of X1/X2
}

// Index computes the GPIO-port bit pattern for tuple on board pm serving
// chip. useCS controls whether CS bits participate at all (they never do
// for 28-pin chips, regardless of useCS); useX controls whether X1/X2
// participate (multi and banked modes only).
func Index(pm hardware.PinMap, chip hardware.ChipType, t Tuple, useCS, useX bool) (uint32, error) {
	desc, err := hardware.Lookup(chip)
	if err != nil {
		return 0, err
	}

	pins := addressPins(pm, desc)

	var idx uint32
	for i := 0; i < desc.AddressWidth; i++ {
		if pins[i] == unusedPin {
			continue
		}
		if t.Addr&(1<<uint(i)) != 0 {
			idx |= 1 << uint(pins[i])
		}
	}

	if useCS && desc.PinCount != 28 {
		cs := pm.CSFor(chip)
		for k := 0; k < len(desc.ControlLines) && k < 3; k++ {
			if cs[k] == unusedPin {
				continue
			}
			if t.CS[k] {
				idx |= 1 << uint(cs[k])
			}
		}
	}

	if useX {
		if pm.X[0] != unusedPin && t.X[0] {
			idx |= 1 << uint(pm.X[0])
		}
		if pm.X[1] != unusedPin && t.X[1] {
			idx |= 1 << uint(pm.X[1])
		}
	}

	return idx, nil
}

// TableBits returns the width, in bits, of the table Index indexes into:
// the position of the highest bit any participating pin can set, plus one.
func TableBits(pm hardware.PinMap, chip hardware.ChipType, useCS, useX bool) (int, error) {
	desc, err := hardware.Lookup(chip)
	if err != nil {
		return 0, err
	}

	pins := addressPins(pm, desc)

	max := -1
	consider := func(p uint8) {
		if p != unusedPin && int(p) > max {
			max = int(p)
		}
	}

	for i := 0; i < desc.AddressWidth; i++ {
		consider(pins[i])
	}
	if useCS && desc.PinCount != 28 {
		cs := pm.CSFor(chip)
		for k := 0; k < len(desc.ControlLines) && k < 3; k++ {
			consider(cs[k])
		}
	}
	if useX {
		consider(pm.X[0])
		consider(pm.X[1])
	}

	if max < 0 {
		return 0, errors.New(errors.LayoutError, "chip %v has no wired address/CS/X pins on this board", chip)
	}
	return max + 1, nil
}

// Activates reports whether driving every control line to the electrical
// level recorded in cs would assert the chip, given the per-line active
// polarities declared by the ROM's descriptor. A line with polarity
// hardware.NotUsed never blocks activation.
func Activates(polarities [3]hardware.Polarity, cs [3]bool) bool {
	for k, p := range polarities {
		switch p {
		case hardware.ActiveLow:
			if cs[k] {
				return false
			}
		case hardware.ActiveHigh:
			if !cs[k] {
				return false
			}
		case hardware.NotUsed:
			// no constraint
		}
	}
	return true
}
