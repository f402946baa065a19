package parse_test

import (
	"testing"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/compose"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/parse"
	"github.com/sweproj/onerom/romset"
)

func mustPCB(t *testing.T, revision string) hardware.PinMap {
	t.Helper()
	pm, err := hardware.LookupPCB(revision)
	if err != nil {
		t.Fatalf("LookupPCB(%q): %v", revision, err)
	}
	return pm
}

func TestParseEmptyConfigReturnsNoSets(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	image, err := compose.Compose([]byte("fw"), pm, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(img.Sets) != 0 {
		t.Errorf("got %d sets, want 0", len(img.Sets))
	}
}

func TestParseRejectsChecksumMismatch(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	image, err := compose.Compose([]byte("fw"), pm, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	image[0] ^= 0xFF

	_, err = parse.Parse(image, parse.Options{})
	if err == nil {
		t.Fatalf("expected a checksum error")
	}
	if k, ok := errors.Kind(err); !ok || k != errors.IntegrityError {
		t.Errorf("got kind %v, want IntegrityError", k)
	}
}

func TestParseSkipChecksumToleratesCorruption(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	image, err := compose.Compose([]byte("fw"), pm, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	image[0] ^= 0xFF // corrupt a code-region byte, outside anything Parse reads

	if _, err := parse.Parse(image, parse.Options{SkipChecksum: true}); err != nil {
		t.Fatalf("Parse with SkipChecksum: %v", err)
	}
}

func TestParseSingle2364RoundTripsDemangle(t *testing.T) {
	pm := mustPCB(t, "ice-24-j")
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i * 7)
	}
	sets := []cartridgeloader.ResolvedSet{
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

	image, err := compose.Compose([]byte("firmware"), pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(img.Sets) != 1 {
		t.Fatalf("got %d sets, want 1", len(img.Sets))
	}
	set := img.Sets[0]
	if set.ServeMode != romset.ServeSingle {
		t.Errorf("serve mode = %v, want ServeSingle", set.ServeMode)
	}
	if len(set.ROMs) != 1 || set.ROMs[0].Chip != hardware.C2364 {
		t.Fatalf("unexpected ROM descriptors: %+v", set.ROMs)
	}

	got, err := img.Demangle(pm, 0, 0)
	if err != nil {
		t.Fatalf("Demangle: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("demangled bytes do not round-trip the source ROM")
	}
}

func TestParseFirmwareOverridesDecodesPresentBitsAndValues(t *testing.T) {
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

	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ov := img.Sets[0].Overrides
	if ov == nil {
		t.Fatalf("expected decoded firmware overrides")
	}

	wantPresent := byte(1<<2 | 1<<3 | 1<<4)
	if ov.RawPresent != wantPresent {
		t.Errorf("override_present = %08b, want %08b", ov.RawPresent, wantPresent)
	}
	if !ov.FireFreqPresent || ov.FireFreqStock || ov.FireFreqMHz != 300 {
		t.Errorf("fire freq: present=%v stock=%v mhz=%d, want present stock=false mhz=300", ov.FireFreqPresent, ov.FireFreqStock, ov.FireFreqMHz)
	}
	if !ov.FireOverclockPresent || !ov.FireOverclock {
		t.Errorf("fire overclock: present=%v value=%v, want true/true", ov.FireOverclockPresent, ov.FireOverclock)
	}
	if !ov.FireVregPresent || ov.FireVregStock || ov.FireVregCode != "1.20V" {
		t.Errorf("fire vreg: present=%v stock=%v code=%q, want present stock=false code=1.20V", ov.FireVregPresent, ov.FireVregStock, ov.FireVregCode)
	}
	if ov.IceFreqPresent || ov.LEDPresent || ov.SWDPresent {
		t.Errorf("unset override fields decoded as present")
	}
}

func TestParseBankedSetDemanglesEachBankIndependently(t *testing.T) {
	pm := mustPCB(t, "fire-28-b")
	roms := make([]cartridgeloader.ResolvedROM, 4)
	for i := range roms {
		data := make([]byte, 16384)
		for a := range data {
			data[a] = byte(i*64 + a%64)
		}
		roms[i] = cartridgeloader.ResolvedROM{
			Spec:  cartridgeloader.ROMSpec{Type: "27128", CS1: "active_low"},
			Chip:  hardware.C27128,
			Bytes: data,
		}
	}
	sets := []cartridgeloader.ResolvedSet{{
		Mode: cartridgeloader.Banked,
		ROMs: roms,
		Spec: cartridgeloader.ROMSetSpec{Type: "banked"},
	}}

	image, err := compose.Compose([]byte{}, pm, sets)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for i := range roms {
		got, err := img.Demangle(pm, 0, i)
		if err != nil {
			t.Fatalf("Demangle bank %d: %v", i, err)
		}
		if string(got) != string(roms[i].Bytes) {
			t.Errorf("bank %d did not round-trip", i)
		}
	}
}
