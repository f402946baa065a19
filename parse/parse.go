package parse

import (
	"encoding/binary"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/compose"
	"github.com/sweproj/onerom/digest"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/mangle"
	"github.com/sweproj/onerom/romset"
)

// maxMagicScan bounds the magic search so a malformed image with no
// header at all fails quickly instead of scanning to the end of flash.
const maxMagicScan = 4 * 1024 * 1024

const sentinelOffset = 0xFFFFFFFF

// Options controls how Parse reads an image.
type Options struct {
	// OffsetHint, if non-zero, is tried before falling back to a magic
	// scan of the first 4 MiB.
	OffsetHint int

	// SkipChecksum disables the SHA-256 trailer check, for inspecting an
	// image still under construction or one known to be truncated.
	SkipChecksum bool
}

// ROMDescriptor is one ROM entry in a parsed ROM-set record.
type ROMDescriptor struct {
	Chip hardware.ChipType
	CS1  hardware.Polarity
	CS2  hardware.Polarity
	CS3  hardware.Polarity
}

// Overrides is the decoded contents of a ROM set's firmware_overrides
// record.
type Overrides struct {
	RawPresent byte
	RawValue   byte

	IceFreqPresent bool
	IceFreqStock   bool
	IceFreqMHz     int

	IceOverclockPresent bool
	IceOverclock        bool

	FireFreqPresent bool
	FireFreqStock   bool
	FireFreqMHz     int

	FireOverclockPresent bool
	FireOverclock        bool

	FireVregPresent bool
	FireVregStock   bool
	FireVregCode    string

	FireServeModePresent bool
	FireServeMode        cartridgeloader.FireServeMode

	LEDPresent bool
	LEDEnabled bool

	SWDPresent bool
	SWDEnabled bool
}

// Set is one parsed ROM-set record.
type Set struct {
	ServeMode romset.ServeMode
	ROMs      []ROMDescriptor
	Overrides *Overrides
	Params    []byte

	tableOffset int
	tableSize   int
}

// Image is a fully parsed, checksum-verified (unless skipped) composed
// image.
type Image struct {
	HeaderOffset int
	Version      byte
	Sets         []Set

	body []byte // trailer already stripped, or the raw image if checksum was skipped
}

// Parse locates the metadata header in image, validates its version and
// checksum, and returns the enumerated ROM sets.
func Parse(image []byte, opts Options) (*Image, error) {
	body := image
	if !opts.SkipChecksum {
		var err error
		body, err = digest.Verify(image)
		if err != nil {
			return nil, err
		}
	}

	off, err := findHeader(body, opts.OffsetHint)
	if err != nil {
		return nil, err
	}

	if off+20 > len(body) {
		return nil, errors.New(errors.IntegrityError, "image is truncated inside the metadata header")
	}
	version := body[off+16]
	if version != compose.Version {
		return nil, errors.New(errors.Unsupported, "unsupported metadata version %d", version)
	}
	count := int(body[off+17])

	if off+20+4*count > len(body) {
		return nil, errors.New(errors.IntegrityError, "image is truncated inside the offset table")
	}

	sets := make([]Set, count)
	rawTableSize := make([]int, count)

	metaEnd := off + 20 + 4*count
	for i := 0; i < count; i++ {
		relOff := binary.LittleEndian.Uint32(body[off+20+4*i:])
		recOff := off + int(relOff)
		set, tableSize, end, err := parseSetRecord(body, off, recOff)
		if err != nil {
			return nil, errors.Wrap(errors.IntegrityError, err, "ROM set %d", i)
		}
		sets[i] = set
		rawTableSize[i] = tableSize
		if end > metaEnd {
			metaEnd = end
		}
	}

	pos := metaEnd
	for i := range sets {
		size := rawTableSize[i]
		if size == 0 || size&(size-1) != 0 {
			return nil, errors.New(errors.IntegrityError, "ROM set %d: table size %d is not a power of two", i, size)
		}
		pos = alignUp(pos, size)
		if pos+size > len(body) {
			return nil, errors.New(errors.IntegrityError, "ROM set %d: table runs past end of image", i)
		}
		sets[i].tableOffset = pos
		sets[i].tableSize = size
		pos += size
	}

	return &Image{HeaderOffset: off, Version: version, Sets: sets, body: body}, nil
}

func alignUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

func findHeader(body []byte, hint int) (int, error) {
	magic := []byte(compose.Magic)

	if hint > 0 && hint+len(magic) <= len(body) && string(body[hint:hint+len(magic)]) == compose.Magic {
		return hint, nil
	}

	limit := len(body)
	if limit > maxMagicScan {
		limit = maxMagicScan
	}
	for i := 0; i+len(magic) <= limit; i++ {
		if string(body[i:i+len(magic)]) == compose.Magic {
			return i, nil
		}
	}
	return 0, errors.New(errors.IntegrityError, "metadata magic not found in first %d bytes", limit)
}

func parseSetRecord(body []byte, headerOff, recOff int) (Set, int, int, error) {
	if recOff+20 > len(body) {
		return Set{}, 0, 0, errors.New(errors.IntegrityError, "record offset %d runs past end of image", recOff)
	}
	rec := body[recOff:]

	romCount := int(rec[0])
	serveMode := romset.ServeMode(rec[1])
	tableSize := int(binary.LittleEndian.Uint32(rec[4:]))
	overridesRel := binary.LittleEndian.Uint32(rec[8:])
	paramsRel := binary.LittleEndian.Uint32(rec[12:])

	if recOff+20+4*romCount > len(body) {
		return Set{}, 0, 0, errors.New(errors.IntegrityError, "ROM descriptor offset table runs past end of image")
	}

	end := recOff + 20 + 4*romCount

	roms := make([]ROMDescriptor, romCount)
	for j := 0; j < romCount; j++ {
		descRel := binary.LittleEndian.Uint32(rec[16+4*j:])
		descOff := headerOff + int(descRel)
		if descOff+4 > len(body) {
			return Set{}, 0, 0, errors.New(errors.IntegrityError, "ROM descriptor %d runs past end of image", j)
		}
		d := body[descOff:]
		roms[j] = ROMDescriptor{
			Chip: hardware.ChipType(d[0]),
			CS1:  hardware.Polarity(d[1]),
			CS2:  hardware.Polarity(d[2]),
			CS3:  hardware.Polarity(d[3]),
		}
		if descOff+4 > end {
			end = descOff + 4
		}
	}

	var overrides *Overrides
	if overridesRel != sentinelOffset {
		off := headerOff + int(overridesRel)
		o, err := parseOverrides(body, off)
		if err != nil {
			return Set{}, 0, 0, err
		}
		overrides = o
		if off+16 > end {
			end = off + 16
		}
	}

	var params []byte
	if paramsRel != sentinelOffset {
		off := headerOff + int(paramsRel)
		if off+8 > len(body) {
			return Set{}, 0, 0, errors.New(errors.IntegrityError, "serve_alg_params runs past end of image")
		}
		params = append([]byte{}, body[off:off+8]...)
		if off+8 > end {
			end = off + 8
		}
	}

	return Set{ServeMode: serveMode, ROMs: roms, Overrides: overrides, Params: params}, tableSize, end, nil
}

func parseOverrides(body []byte, off int) (*Overrides, error) {
	if off+16 > len(body) {
		return nil, errors.New(errors.IntegrityError, "firmware_overrides record runs past end of image")
	}
	rec := body[off : off+16]

	present := rec[0]
	value := rec[1]
	iceFreq := binary.LittleEndian.Uint16(rec[2:])
	fireFreq := binary.LittleEndian.Uint16(rec[4:])
	fireVreg := rec[6]

	o := &Overrides{RawPresent: present, RawValue: value}

	bit := func(n uint) bool { return present&(1<<n) != 0 }
	valueBit := func(n uint) bool { return value&(1<<n) != 0 }

	if o.IceFreqPresent = bit(0); o.IceFreqPresent {
		o.IceFreqStock = iceFreq == 0xFFFF
		if !o.IceFreqStock {
			o.IceFreqMHz = int(iceFreq)
		}
	}
	if o.IceOverclockPresent = bit(1); o.IceOverclockPresent {
		o.IceOverclock = valueBit(1)
	}
	if o.FireFreqPresent = bit(2); o.FireFreqPresent {
		o.FireFreqStock = fireFreq == 0xFFFF
		if !o.FireFreqStock {
			o.FireFreqMHz = int(fireFreq)
		}
	}
	if o.FireOverclockPresent = bit(3); o.FireOverclockPresent {
		o.FireOverclock = valueBit(3)
	}
	if o.FireVregPresent = bit(4); o.FireVregPresent {
		o.FireVregStock = fireVreg == 0xFF
		if !o.FireVregStock {
			code, ok := cartridgeloader.VregCodeAt(int(fireVreg))
			if !ok {
				return nil, errors.New(errors.IntegrityError, "firmware_overrides: fire_vreg byte %#x is not a published voltage code", fireVreg)
			}
			o.FireVregCode = code
		}
	}
	if o.FireServeModePresent = bit(5); o.FireServeModePresent {
		if valueBit(5) {
			o.FireServeMode = cartridgeloader.FireServePIO
		} else {
			o.FireServeMode = cartridgeloader.FireServeCPU
		}
	}
	if o.LEDPresent = bit(6); o.LEDPresent {
		o.LEDEnabled = valueBit(6)
	}
	if o.SWDPresent = bit(7); o.SWDPresent {
		o.SWDEnabled = valueBit(7)
	}

	return o, nil
}

// Demangle reconstructs the logical byte stream for ROM romIdx of set
// setIdx, using pm to recompute the same mangled indices the composer
// used. The image itself does not record which PCB revision it was
// composed for; the caller must supply the same one.
func (img *Image) Demangle(pm hardware.PinMap, setIdx, romIdx int) ([]byte, error) {
	if setIdx < 0 || setIdx >= len(img.Sets) {
		return nil, errors.New(errors.InputError, "set index %d out of range", setIdx)
	}
	set := img.Sets[setIdx]
	if romIdx < 0 || romIdx >= len(set.ROMs) {
		return nil, errors.New(errors.InputError, "ROM index %d out of range", romIdx)
	}
	chip := set.ROMs[romIdx].Chip

	desc, err := hardware.Lookup(chip)
	if err != nil {
		return nil, err
	}

	useX := set.ServeMode != romset.ServeSingle

	r := set.ROMs[romIdx]
	polarities := [3]hardware.Polarity{r.CS1, r.CS2, r.CS3}
	var cs [3]bool
	for k, p := range polarities {
		cs[k] = p == hardware.ActiveHigh // the level that activates this line
	}

	var x [2]bool
	if useX {
		// LogicalBank is its own inverse: the same call that turns a raw
		// X1/X2 reading into a logical bank number also recovers the raw
		// electrical bits a given logical bank number is driven from.
		raw := pm.LogicalBank(romIdx)
		x = [2]bool{raw&1 != 0, raw&2 != 0}
	}

	out := make([]byte, desc.Capacity)
	for addr := 0; addr < desc.Capacity; addr++ {
		idx, err := mangle.Index(pm, chip, mangle.Tuple{Addr: uint32(addr), CS: cs, X: x}, true, useX)
		if err != nil {
			return nil, err
		}
		if int(idx) >= set.tableSize {
			return nil, errors.New(errors.IntegrityError, "computed index %d exceeds table size %d", idx, set.tableSize)
		}
		out[addr] = mangle.DemangleByte(pm, img.body[set.tableOffset+int(idx)])
	}
	return out, nil
}

// TableBytes returns the raw mangled table bytes for set setIdx, for
// callers (such as the validator) that recompute indices themselves
// instead of asking Demangle for a fully reconstructed ROM.
func (img *Image) TableBytes(setIdx int) ([]byte, error) {
	if setIdx < 0 || setIdx >= len(img.Sets) {
		return nil, errors.New(errors.InputError, "set index %d out of range", setIdx)
	}
	s := img.Sets[setIdx]
	return img.body[s.tableOffset : s.tableOffset+s.tableSize], nil
}
