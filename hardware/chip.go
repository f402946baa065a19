package hardware

import "github.com/sweproj/onerom/errors"

// Polarity describes how a control line must be driven for the chip to
// consider itself selected.
type Polarity int

const (
	ActiveLow Polarity = iota
	ActiveHigh
	NotUsed
)

func (p Polarity) String() string {
	switch p {
	case ActiveLow:
		return "active_low"
	case ActiveHigh:
		return "active_high"
	case NotUsed:
		return "unused"
	default:
		return "unknown"
	}
}

// ChipType is the closed set of ROM/EPROM/SRAM parts the catalog knows how
// to describe. The set never grows at runtime; a new part means a new
// constant and a new ChipDescriptor entry in the package var below.
type ChipType int

const (
	// 24-pin mask ROMs and EPROMs, up to three chip-select lines.
	C2304 ChipType = iota
	C2308
	C2316
	C2332
	C2364
	C2516
	C2532
	C2716
	C2732
	C2758
	C6116
	C231024

	// 28-pin EPROMs, always exactly CE and OE, both active-low.
	C2764
	C27128
	C27256
	C27512
	C27010
	C27020
	C27040
	C27080

	// 40-pin, 16-bit data path. Cataloged for completeness; romset.Build
	// refuses to serve it (see Unsupported below).
	C27400
)

func (t ChipType) String() string {
	if d, ok := catalog[t]; ok {
		return d.Name
	}
	return "unknown"
}

// ControlLine is one chip-select / output-enable pin and the polarity the
// silicon expects when the chip is meant to drive its data bus.
type ControlLine struct {
	Name     string
	Polarity Polarity
}

// ChipDescriptor is everything the mangler and the ROM-set builder need to
// know about a chip type: its package size, its capacity, and the control
// lines it exposes.
type ChipDescriptor struct {
	Type         ChipType
	Name         string
	PinCount     int
	DataWidth    int // bits per transfer: 8, or 16 for the 40-pin part
	AddressWidth int // bits of address space implied by Capacity
	Capacity     int // bytes
	ControlLines []ControlLine
	Unsupported  bool
}

// catalog is the closed, immutable table backing Lookup. Every entry's
// AddressWidth is derived from Capacity at init time via addressWidth, so
// the two never drift apart by hand-editing mistake.
var catalog = buildCatalog()

func buildCatalog() map[ChipType]ChipDescriptor {
	entries := []ChipDescriptor{
		{Type: C2304, Name: "2304", PinCount: 24, DataWidth: 8, Capacity: 2048,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C2308, Name: "2308", PinCount: 24, DataWidth: 8, Capacity: 2048,
			ControlLines: []ControlLine{{"CS1", ActiveLow}, {"CS2", ActiveHigh}}},
		{Type: C2316, Name: "2316", PinCount: 24, DataWidth: 8, Capacity: 4096,
			ControlLines: []ControlLine{{"CS1", ActiveLow}, {"CS2", ActiveHigh}, {"CS3", ActiveLow}}},
		{Type: C2332, Name: "2332", PinCount: 24, DataWidth: 8, Capacity: 4096,
			ControlLines: []ControlLine{{"CS1", ActiveLow}, {"CS2", ActiveHigh}}},
		{Type: C2364, Name: "2364", PinCount: 24, DataWidth: 8, Capacity: 8192,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C2516, Name: "2516", PinCount: 24, DataWidth: 8, Capacity: 2048,
			ControlLines: []ControlLine{{"CS1", ActiveLow}, {"CS2", ActiveHigh}}},
		{Type: C2532, Name: "2532", PinCount: 24, DataWidth: 8, Capacity: 4096,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C2716, Name: "2716", PinCount: 24, DataWidth: 8, Capacity: 2048,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		// Special case: silicon has A11 and A12 physically swapped relative
		// to every other 24-pin part in this catalog. See mangle.Index.
		{Type: C2732, Name: "2732", PinCount: 24, DataWidth: 8, Capacity: 4096,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C2758, Name: "2758", PinCount: 24, DataWidth: 8, Capacity: 1024,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C6116, Name: "6116", PinCount: 24, DataWidth: 8, Capacity: 2048,
			ControlLines: []ControlLine{{"CS1", ActiveLow}}},
		{Type: C231024, Name: "231024", PinCount: 24, DataWidth: 8, Capacity: 131072,
			ControlLines: []ControlLine{{"CS1", ActiveLow}, {"CS2", ActiveHigh}}},

		{Type: C2764, Name: "2764", PinCount: 28, DataWidth: 8, Capacity: 8192,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27128, Name: "27128", PinCount: 28, DataWidth: 8, Capacity: 16384,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27256, Name: "27256", PinCount: 28, DataWidth: 8, Capacity: 32768,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27512, Name: "27512", PinCount: 28, DataWidth: 8, Capacity: 65536,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27010, Name: "27010", PinCount: 28, DataWidth: 8, Capacity: 131072,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27020, Name: "27020", PinCount: 28, DataWidth: 8, Capacity: 262144,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27040, Name: "27040", PinCount: 28, DataWidth: 8, Capacity: 524288,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},
		{Type: C27080, Name: "27080", PinCount: 28, DataWidth: 8, Capacity: 1048576,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}},

		{Type: C27400, Name: "27400", PinCount: 40, DataWidth: 16, Capacity: 2097152,
			ControlLines: []ControlLine{{"CE", ActiveLow}, {"OE", ActiveLow}}, Unsupported: true},
	}

	m := make(map[ChipType]ChipDescriptor, len(entries))
	for _, e := range entries {
		e.AddressWidth = addressWidth(e.Capacity, e.DataWidth)
		m[e.Type] = e
	}
	return m
}

// addressWidth returns the number of address lines needed to reach every
// byte of capacity, given a transfer width of dataWidth bits.
func addressWidth(capacity, dataWidth int) int {
	words := capacity / (dataWidth / 8)
	n := 0
	for (1 << n) < words {
		n++
	}
	return n
}

// Lookup returns the descriptor for t, or an Unsupported error if t is not
// a member of the closed ChipType enum.
func Lookup(t ChipType) (ChipDescriptor, error) {
	d, ok := catalog[t]
	if !ok {
		return ChipDescriptor{}, errors.New(errors.Unsupported, "unknown chip type %d", int(t))
	}
	return d, nil
}

// NumControlLines returns the number of control lines t exposes (1..3).
func NumControlLines(t ChipType) (int, error) {
	d, err := Lookup(t)
	if err != nil {
		return 0, err
	}
	return len(d.ControlLines), nil
}

// CapacityBytes returns the storage capacity of t in bytes.
func CapacityBytes(t ChipType) (int, error) {
	d, err := Lookup(t)
	if err != nil {
		return 0, err
	}
	return d.Capacity, nil
}
