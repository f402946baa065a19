package hardware

import "github.com/sweproj/onerom/errors"

// unusedPin marks a logical line that this PCB revision does not wire up.
const unusedPin = 0xFF

// PinMap is the GPIO assignment for one PCB revision. Address, control and
// X (bank-select) lines are expressed as bit positions within the single
// GPIO word the mangler packs into a table index, so that the runtime can
// use the raw GPIO-port read as the index with no arithmetic. The positions
// are used as given and need not start at bit 0 or be contiguous; the
// table is as wide as the highest position a chip uses.
//
// Data pins are a separate GPIO word entirely, except on revisions where
// DataSharesPort is true, in which case data occupies the low byte of the
// same port and address/control/X bits are recorded already shifted up by
// 8 (SharedPortShift) to keep them out of the data byte's way.
type PinMap struct {
	Revision string

	// Address[i] is the bit position of address line Ai, or unusedPin.
	Address [17]uint8

	// Data[i] is the bit position of data line Di on the data GPIO word.
	Data [16]uint8

	// CS holds, per chip type, the bit position of CS1/CS2/CS3 (in that
	// order) for chips that need a variant mapping on this revision.
	// A chip type absent from this map uses DefaultCS.
	CS map[ChipType][3]uint8

	// DefaultCS is used for any chip type not listed in CS.
	DefaultCS [3]uint8

	// X holds the bit positions of the X1/X2 bank-select lines.
	X [2]uint8

	// Sel holds the bit positions of the SEL0..SEL6 configuration jumpers.
	Sel [7]uint8

	// SelJumperPull is a bitmask: bit i set means SELi reads 1 when its
	// jumper is closed (pulled to the active rail); bit i clear means SELi
	// reads 1 when its jumper is open.
	SelJumperPull uint8

	// XJumperPull is the same kind of bitmask as SelJumperPull, but for the
	// X1/X2 bank-select lines: bit 0 covers X1, bit 1 covers X2. It is
	// separate from SelJumperPull because a bank-switched set's X pins are
	// wired as board jumpers independently of the image-select jumpers.
	XJumperPull uint8

	LED  uint8
	VBUS uint8

	SWDClk uint8
	SWDDio uint8

	DataSharesPort  bool
	SharedPortShift uint8 // always 8 when DataSharesPort is true
}

// CSFor returns the CS1/CS2/CS3 bit positions to use for chip type t on
// this revision.
func (pm PinMap) CSFor(t ChipType) [3]uint8 {
	if v, ok := pm.CS[t]; ok {
		return v
	}
	return pm.DefaultCS
}

// LogicalBank converts a raw X1/X2 electrical reading (bit 0 = X1, bit 1 =
// X2) into the logical bank-select value it represents, applying this
// revision's X-jumper-pull polarity. The mapping is its own inverse, so
// the same call also recovers the raw electrical bits a given logical
// bank number must be driven from.
func (pm PinMap) LogicalBank(xVal int) int {
	return xVal ^ int(pm.XJumperPull&0x3)
}

// revisions is the closed set of PCB revisions the catalog recognises.
var revisions = map[string]PinMap{
	// ice-24-j: STM32-based board, 24-pin socket. Address, CS and X share
	// one 16-bit GPIO port; data lives on a separate port entirely.
	"ice-24-j": {
		Revision:  "ice-24-j",
		Address:   [17]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, unusedPin, unusedPin, unusedPin, unusedPin},
		Data:      [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin},
		DefaultCS: [3]uint8{13, 14, 15},
		X:         [2]uint8{unusedPin, unusedPin},
		Sel:       [7]uint8{0, 1, 2, 3, 4, 5, 6},
		LED:       7,
		VBUS:      8,
		SWDClk:    9,
		SWDDio:    10,
	},

	// fire-24-d: RP2350-based board. Data shares the low byte of the same
	// GPIO word as address/CS, so address/CS bit positions start at 8.
	"fire-24-d": {
		Revision:        "fire-24-d",
		Address:         [17]uint8{8, 9, 10, 11, 12, 13, 14, 15, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin},
		Data:            [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin},
		DefaultCS:       [3]uint8{unusedPin, unusedPin, unusedPin},
		X:               [2]uint8{unusedPin, unusedPin},
		Sel:             [7]uint8{16, 17, 18, 19, 20, 21, 22},
		LED:             23,
		VBUS:            24,
		SWDClk:          25,
		SWDDio:          26,
		DataSharesPort:  true,
		SharedPortShift: 8,
	},

	// ice-28-c: STM32-based board, 28-pin socket. Two extra address bits and
	// always exactly CE/OE, no CS3.
	"ice-28-c": {
		Revision:  "ice-28-c",
		Address:   [17]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, unusedPin, unusedPin},
		Data:      [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin},
		DefaultCS: [3]uint8{15, unusedPin, unusedPin}, // CE at 15, OE unassigned; 28-pin control lines never enter the table index
		X:         [2]uint8{unusedPin, unusedPin},
		Sel:       [7]uint8{0, 1, 2, 3, 4, 5, 6},
		LED:       7,
		VBUS:      8,
		SWDClk:    9,
		SWDDio:    10,
	},

	// fire-28-b: RP2350-based board, 28-pin socket, bank-switched character
	// ROM configurations. Data pins sit at GPIO16..23 and the byte mangler's
	// mod-8 projection brings them back into a single output byte; address,
	// CS and X pins occupy the rest of the 32-bit SIO register directly, so
	// no port-sharing shift is needed here.
	"fire-28-b": {
		Revision:  "fire-28-b",
		Address:   [17]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, unusedPin, unusedPin},
		Data:      [16]uint8{16, 17, 18, 19, 20, 21, 22, 23, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin, unusedPin},
		DefaultCS: [3]uint8{15, unusedPin, unusedPin},
		X:         [2]uint8{24, 25},
		Sel:       [7]uint8{28, 29, 30, 31, 32, 33, 34},
		LED:       35,
		VBUS:      36,
		SWDClk:    37,
		SWDDio:    38,
	},
}

// LookupPCB returns the pin map for the given PCB revision identifier.
func LookupPCB(revision string) (PinMap, error) {
	pm, ok := revisions[revision]
	if !ok {
		return PinMap{}, errors.New(errors.Unsupported, "unknown PCB revision %q", revision)
	}
	return pm, nil
}

// Known returns every PCB revision identifier the catalog recognises, for
// schema validation error messages.
func Known() []string {
	names := make([]string, 0, len(revisions))
	for k := range revisions {
		names = append(names, k)
	}
	return names
}
