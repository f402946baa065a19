package compose

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/digest"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/logger"
	"github.com/sweproj/onerom/romset"
)

// Magic is the 16-byte, null-terminated ASCII tag opening the metadata
// header, used by the parser to locate the header inside an image.
const Magic = "ONEROM_METADATA\x00"

// Version is the schema version this package composes and understands.
const Version = 1

const absentOffset uint32 = 0xFFFFFFFF

const overridesRecordSize = 16
const paramsRecordSize = 8

// override bit positions within the firmware_overrides present/value
// bitmaps, in the field order the specification lists them.
const (
	bitIceFreq = iota
	bitIceOverclock
	bitFireFreq
	bitFireOverclock
	bitFireVreg
	bitFireServeMode
	bitLED
	bitSWD
)

// Compose assembles a complete image from a firmware code region, the
// board's pin map, and the resolved ROM sets it should carry, and returns
// the composed bytes with a SHA-256 checksum trailer appended.
//
// Composition is deterministic: the same fw, pm and sets always produce
// byte-identical output, since no timestamp or other incidental state is
// ever written to the image.
func Compose(fw []byte, pm hardware.PinMap, sets []cartridgeloader.ResolvedSet) ([]byte, error) {
	built := make([]romset.Built, len(sets))
	for i, s := range sets {
		b, err := romset.Build(pm, s)
		if err != nil {
			return nil, errors.Wrap(errors.LayoutError, err, "building ROM set %d", i)
		}
		built[i] = b
	}

	lay, err := planLayout(fw, sets, built)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, lay.total)
	copy(buf, fw)

	writeHeader(buf, lay)
	for i, s := range sets {
		writeSetRecord(buf, lay, i, s, built[i])
		writeROMDescriptors(buf, lay, i, s)
		if s.Spec.FirmwareOverrides != nil {
			if err := writeOverrides(buf, lay.overridesOff[i], *s.Spec.FirmwareOverrides); err != nil {
				return nil, err
			}
		}
		if s.Spec.ServeAlgParams != nil {
			writeParams(buf, lay.paramsOff[i], s.Spec.ServeAlgParams.Params)
		}
		copy(buf[lay.tableOff[i]:], built[i].Table)
	}

	logger.Logf("compose", "composed image: %d ROM sets, %d bytes before checksum", len(sets), len(buf))

	return digest.Append(buf), nil
}

// layout is the fully-resolved set of byte offsets for one composition,
// computed in a single analytical pass before any bytes are written since
// every record's size is known in advance from the config alone.
type layout struct {
	headerStart int
	headerSize  int

	setRecordOff []int // relative to headerStart
	descOff      [][]int
	overridesOff []int // absolute offsets into buf; absentOffset sentinel stored on image
	paramsOff    []int

	tableOff []int // absolute offsets into buf

	total int
}

func align(n, to int) int {
	if to <= 0 {
		return n
	}
	return (n + to - 1) &^ (to - 1)
}

func planLayout(fw []byte, sets []cartridgeloader.ResolvedSet, built []romset.Built) (layout, error) {
	var l layout
	l.headerStart = align(len(fw), 16)
	l.headerSize = 16 + 1 + 1 + 2 + 4*len(sets)

	l.setRecordOff = make([]int, len(sets))
	l.descOff = make([][]int, len(sets))
	l.overridesOff = make([]int, len(sets))
	l.paramsOff = make([]int, len(sets))
	l.tableOff = make([]int, len(sets))

	pos := l.headerStart + l.headerSize

	for i, s := range sets {
		l.setRecordOff[i] = pos - l.headerStart
		pos += 1 + 1 + 1 + 1 + 4 + 4 + 4 + 4*len(s.ROMs)
	}
	for i, s := range sets {
		l.descOff[i] = make([]int, len(s.ROMs))
		for j := range s.ROMs {
			l.descOff[i][j] = pos
			pos += 4
		}
	}
	for i, s := range sets {
		if s.Spec.FirmwareOverrides != nil {
			l.overridesOff[i] = pos
			pos += overridesRecordSize
		} else {
			l.overridesOff[i] = -1
		}
	}
	for i, s := range sets {
		if s.Spec.ServeAlgParams != nil {
			l.paramsOff[i] = pos
			pos += paramsRecordSize
		} else {
			l.paramsOff[i] = -1
		}
	}

	for i, b := range built {
		size := len(b.Table)
		if size == 0 || size&(size-1) != 0 {
			return layout{}, errors.New(errors.LayoutError, "ROM set %d: table size %d is not a power of two", i, size)
		}
		pos = align(pos, size)
		l.tableOff[i] = pos
		pos += size
	}

	l.total = pos
	return l, nil
}

func writeHeader(buf []byte, l layout) {
	h := buf[l.headerStart:]
	copy(h[0:16], Magic)
	h[16] = Version
	h[17] = byte(len(l.setRecordOff))
	for i, off := range l.setRecordOff {
		binary.LittleEndian.PutUint32(h[20+4*i:], uint32(off))
	}
}

func writeSetRecord(buf []byte, l layout, i int, s cartridgeloader.ResolvedSet, b romset.Built) {
	rec := buf[l.headerStart+l.setRecordOff[i]:]
	rec[0] = byte(len(s.ROMs))
	rec[1] = byte(b.ServeMode)
	extraInfo := byte(0)
	if s.Spec.FirmwareOverrides != nil || s.Spec.ServeAlgParams != nil {
		extraInfo = 1
	}
	rec[2] = extraInfo
	rec[3] = 0
	binary.LittleEndian.PutUint32(rec[4:], uint32(len(b.Table)))
	binary.LittleEndian.PutUint32(rec[8:], relOrAbsent(l, l.overridesOff[i]))
	binary.LittleEndian.PutUint32(rec[12:], relOrAbsent(l, l.paramsOff[i]))
	for j := range s.ROMs {
		binary.LittleEndian.PutUint32(rec[16+4*j:], uint32(l.descOff[i][j]-l.headerStart))
	}
}

func relOrAbsent(l layout, abs int) uint32 {
	if abs < 0 {
		return absentOffset
	}
	return uint32(abs - l.headerStart)
}

func writeROMDescriptors(buf []byte, l layout, i int, s cartridgeloader.ResolvedSet) {
	for j, r := range s.ROMs {
		d := buf[l.descOff[i][j]:]
		d[0] = byte(r.Chip)
		d[1] = csStateByte(r.Spec.CS1)
		d[2] = csStateByte(r.Spec.CS2)
		d[3] = csStateByte(r.Spec.CS3)
	}
}

func csStateByte(polarity string) byte {
	switch polarity {
	case "active_low":
		return 0
	case "active_high":
		return 1
	default:
		return 2
	}
}

func writeOverrides(buf []byte, off int, o cartridgeloader.FirmwareOverrides) error {
	rec := buf[off : off+overridesRecordSize]
	var present, value byte
	binary.LittleEndian.PutUint16(rec[2:], 0xFFFF)
	binary.LittleEndian.PutUint16(rec[4:], 0xFFFF)
	rec[6] = 0xFF

	if o.IceCPUFreq != nil {
		present |= 1 << bitIceFreq
		if !o.IceCPUFreq.Stock {
			binary.LittleEndian.PutUint16(rec[2:], uint16(o.IceCPUFreq.MHz))
		}
	}
	if o.IceOverclock != nil {
		present |= 1 << bitIceOverclock
		if *o.IceOverclock {
			value |= 1 << bitIceOverclock
		}
	}
	if o.FireCPUFreq != nil {
		present |= 1 << bitFireFreq
		if !o.FireCPUFreq.Stock {
			binary.LittleEndian.PutUint16(rec[4:], uint16(o.FireCPUFreq.MHz))
		}
	}
	if o.FireOverclock != nil {
		present |= 1 << bitFireOverclock
		if *o.FireOverclock {
			value |= 1 << bitFireOverclock
		}
	}
	if o.FireVreg != nil {
		present |= 1 << bitFireVreg
		if !o.FireVreg.Stock {
			idx, ok := cartridgeloader.VregIndex(o.FireVreg.Code)
			if !ok {
				return errors.New(errors.InputError, "fire.vreg: unknown voltage code %q", o.FireVreg.Code)
			}
			rec[6] = byte(idx)
		}
	}
	if o.FireServeMode != nil {
		present |= 1 << bitFireServeMode
		if *o.FireServeMode == cartridgeloader.FireServePIO {
			value |= 1 << bitFireServeMode
		}
	}
	if o.LEDEnabled != nil {
		present |= 1 << bitLED
		if *o.LEDEnabled {
			value |= 1 << bitLED
		}
	}
	if o.SWDEnabled != nil {
		present |= 1 << bitSWD
		if *o.SWDEnabled {
			value |= 1 << bitSWD
		}
	}

	rec[0] = present
	rec[1] = value
	return nil
}

func writeParams(buf []byte, off int, params []byte) {
	copy(buf[off:off+paramsRecordSize], params)
}

// WriteFile composes an image and writes it to path atomically: the bytes
// are written to a temporary file in the same directory and renamed into
// place only once the write has fully succeeded, so a failure partway
// through never leaves a truncated image at path.
func WriteFile(path string, fw []byte, pm hardware.PinMap, sets []cartridgeloader.ResolvedSet) error {
	image, err := Compose(fw, pm, sets)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".onerom-image-*.tmp")
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "creating temp file for %s", path)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := lockExclusive(tmp); err != nil {
		tmp.Close()
		return err
	}
	defer unlock(tmp)

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return errors.Wrap(errors.SourceError, err, "writing %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(errors.SourceError, err, "syncing %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.SourceError, err, "closing %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(errors.SourceError, err, "renaming %s to %s", tmpPath, path)
	}
	return nil
}
