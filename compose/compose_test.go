package compose_test

import (
	"encoding/binary"
	"testing"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/compose"
	"github.com/sweproj/onerom/digest"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/mangle"
)

func mustPCB(t *testing.T, revision string) hardware.PinMap {
	t.Helper()
	pm, err := hardware.LookupPCB(revision)
	if err != nil {
		t.Fatalf("LookupPCB(%q): %v", revision, err)
	}
	return pm
}

func TestComposeEmptyConfigProducesZeroCountHeader(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")

	image, err := compose.Compose([]byte("firmware"), pm, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	body, err := digest.Verify(image)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	headerStart := 16 // align(len("firmware")=8, 16) == 16
	if string(body[headerStart:headerStart+15]) != "ONEROM_METADATA" {
		t.Fatalf("bad magic: %q", body[headerStart:headerStart+16])
	}
	if body[headerStart+16] != compose.Version {
		t.Errorf("version byte = %d, want %d", body[headerStart+16], compose.Version)
	}
	if body[headerStart+17] != 0 {
		t.Errorf("rom_set_count = %d, want 0", body[headerStart+17])
	}
}

func TestComposeDeterministic(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	sets := singleC2364Set()

	a, err := compose.Compose([]byte("firmware-blob"), pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b, err := compose.Compose([]byte("firmware-blob"), pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if string(a) != string(b) {
		t.Errorf("Compose is not deterministic across invocations")
	}
}

func TestComposeSingle2364RoundTripsThroughMangle(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	sets := singleC2364Set()

	image, err := compose.Compose([]byte("fw"), pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	body, err := digest.Verify(image)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	headerStart := 16
	setRecOff := headerStart + 20 // first (only) offset table entry
	relSetOff := binary.LittleEndian.Uint32(body[setRecOff:])
	rec := body[int(relSetOff)+headerStart:]

	tableSize := binary.LittleEndian.Uint32(rec[4:])
	chip := sets[0].ROMs[0].Chip

	bits, err := mangle.TableBits(pm, chip, true, false)
	if err != nil {
		t.Fatalf("TableBits: %v", err)
	}
	if int(tableSize) != 1<<uint(bits) {
		t.Fatalf("table size = %d, want %d", tableSize, 1<<uint(bits))
	}

	idx, err := mangle.Index(pm, chip, mangle.Tuple{Addr: 0, CS: [3]bool{false, false, false}}, true, false)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	tableOff := findTableOffset(t, body, headerStart)
	got := mangle.DemangleByte(pm, body[tableOff+int(idx)])
	if got != sets[0].ROMs[0].Bytes[0] {
		t.Errorf("demangled byte at addr 0 (activating CS) = %#x, want %#x", got, sets[0].ROMs[0].Bytes[0])
	}

	idxInactive, err := mangle.Index(pm, chip, mangle.Tuple{Addr: 0, CS: [3]bool{true, false, false}}, true, false)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	gotInactive := mangle.DemangleByte(pm, body[tableOff+int(idxInactive)])
	if gotInactive != mangle.FillByte {
		t.Errorf("demangled byte at addr 0 (non-activating CS) = %#x, want fill byte %#x", gotInactive, mangle.FillByte)
	}
}

func TestComposeFirmwareOverridesEncodesBitmapAndValues(t *testing.T) {
	pm := mustPCB(t, "fire-24-d")
	overclock := true
	vreg := cartridgeloader.VregSetting{Code: "1.20V"}
	sets := []cartridgeloader.ResolvedSet{
		{
			Mode: cartridgeloader.Single,
			ROMs: []cartridgeloader.ResolvedROM{{
				Spec:  cartridgeloader.ROMSpec{Type: "2364", CS1: "active_low"},
				Chip:  hardware.C2364,
				Bytes: make([]byte, 8192),
			}},
			Spec: cartridgeloader.ROMSetSpec{
				Type: "single",
				FirmwareOverrides: &cartridgeloader.FirmwareOverrides{
					FireCPUFreq:   &cartridgeloader.FreqSetting{MHz: 300},
					FireOverclock: &overclock,
					FireVreg:      &vreg,
				},
			},
		},
	}

	image, err := compose.Compose([]byte{}, pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	body, err := digest.Verify(image)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	headerStart := 0
	relSetOff := binary.LittleEndian.Uint32(body[headerStart+20:])
	rec := body[int(relSetOff)+headerStart:]
	relOverridesOff := binary.LittleEndian.Uint32(rec[8:])
	if relOverridesOff == 0xFFFFFFFF {
		t.Fatalf("firmware_overrides offset is the absent sentinel")
	}
	ov := body[int(relOverridesOff)+headerStart:]

	present := ov[0]
	wantBits := byte(1<<2 | 1<<3 | 1<<4) // fire.cpu_freq, fire.overclock, fire.vreg
	if present != wantBits {
		t.Errorf("override_present = %08b, want %08b", present, wantBits)
	}

	fireFreq := binary.LittleEndian.Uint16(ov[4:])
	if fireFreq != 300 {
		t.Errorf("fire_freq = %d, want 300", fireFreq)
	}
	if ov[6] != 0x0D {
		t.Errorf("fire_vreg = %#x, want 0x0D", ov[6])
	}
}

func TestComposeRejectsMixedChipTypesInOneSet(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	sets := []cartridgeloader.ResolvedSet{
		{
			Mode: cartridgeloader.Multi,
			ROMs: []cartridgeloader.ResolvedROM{
				{Spec: cartridgeloader.ROMSpec{Type: "2364", CS1: "active_low"}, Chip: hardware.C2364, Bytes: make([]byte, 8192)},
				{Spec: cartridgeloader.ROMSpec{Type: "2316", CS1: "active_low"}, Chip: hardware.C2316, Bytes: make([]byte, 4096)},
			},
			Spec: cartridgeloader.ROMSetSpec{Type: "multi"},
		},
	}

	if _, err := compose.Compose([]byte{}, pm, sets); err == nil {
		t.Fatalf("expected an error composing a set with mismatched chip types")
	}
}

func singleC2364Set() []cartridgeloader.ResolvedSet {
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i)
	}
	return []cartridgeloader.ResolvedSet{
		{
			Mode: cartridgeloader.Single,
			ROMs: []cartridgeloader.ResolvedROM{{
				Spec:  cartridgeloader.ROMSpec{Type: "2364", CS1: "active_low"},
				Chip:  hardware.C2364,
				Bytes: data,
			}},
			Spec: cartridgeloader.ROMSetSpec{Type: "single"},
		},
	}
}

// findTableOffset recomputes the absolute offset of the first (only) ROM
// set's table by reading back its size from the set record and mirroring
// the power-of-two alignment rule the composer applies.
func findTableOffset(t *testing.T, body []byte, headerStart int) int {
	t.Helper()
	relSetOff := binary.LittleEndian.Uint32(body[headerStart+20:])
	rec := body[int(relSetOff)+headerStart:]
	size := int(binary.LittleEndian.Uint32(rec[4:]))

	recordSize := 1 + 1 + 1 + 1 + 4 + 4 + 4 + 4 // one ROM's worth of offset table
	descriptorSize := 4                         // chip_type + cs1 + cs2 + cs3
	pos := int(relSetOff) + headerStart + recordSize + descriptorSize
	aligned := (pos + size - 1) &^ (size - 1)
	return aligned
}
