package cartridgeloader

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
)

// Config is the top-level declarative configuration document, decoded
// directly off the JSON wire format described by the schema.
type Config struct {
	Version     int          `json:"version"`
	Description string       `json:"description"`
	ROMSets     []ROMSetSpec `json:"rom_sets"`
}

// ServeMode is the serving strategy a ROM set uses.
type ServeMode int

const (
	Single ServeMode = iota
	Multi
	Banked
)

func (m ServeMode) String() string {
	switch m {
	case Single:
		return "single"
	case Multi:
		return "multi"
	case Banked:
		return "banked"
	default:
		return "unknown"
	}
}

func parseServeMode(s string) (ServeMode, bool) {
	switch s {
	case "single":
		return Single, true
	case "multi":
		return Multi, true
	case "banked":
		return Banked, true
	default:
		return 0, false
	}
}

// ROMSetSpec is one rom_sets[] entry.
type ROMSetSpec struct {
	Type              string             `json:"type"`
	ROMs              []ROMSpec          `json:"roms"`
	FirmwareOverrides *FirmwareOverrides `json:"firmware_overrides,omitempty"`
	ServeAlgParams    *ServeAlgParams    `json:"serve_alg_params,omitempty"`
	Licenses          []string           `json:"licenses,omitempty"`
}

// ServeAlgParams is the opaque, on-MCU PIO runtime parameter vector. The
// config loader validates only its framing, never its contents.
type ServeAlgParams struct {
	Params []byte `json:"params"`
}

// ROMSpec is one roms[] entry: a ROM descriptor.
type ROMSpec struct {
	File        string `json:"file"`
	ZipMember   string `json:"zip_member,omitempty"`
	Type        string `json:"type"`
	CS1         string `json:"cs1"`
	CS2         string `json:"cs2,omitempty"`
	CS3         string `json:"cs3,omitempty"`
	Offset      *int   `json:"offset,omitempty"`
	Length      *int   `json:"length,omitempty"`
	PadTo       *int   `json:"pad_to,omitempty"`
	DuplicateTo *int   `json:"duplicate_to,omitempty"`
	TruncateTo  *int   `json:"truncate_to,omitempty"`
	Description string `json:"description,omitempty"`
}

// ParseConfig decodes and validates raw against the schema. Validation
// failures are reported as errors.InputError with a JSON-pointer-ish path
// identifying where the violation occurred.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.InputError, err, "config: invalid JSON")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the published schema: enumerated vocabularies
// for chip type, CS polarity, and serve mode, and structural consistency
// between rom_sets and their roms.
func (cfg Config) Validate() error {
	if cfg.Version != 1 {
		return errors.New(errors.InputError, "$.version: unsupported version %d", cfg.Version)
	}

	for i, rs := range cfg.ROMSets {
		path := "$.rom_sets[" + strconv.Itoa(i) + "]"

		mode, ok := parseServeMode(rs.Type)
		if !ok {
			return errors.New(errors.InputError, "%s.type: must be one of single, multi, banked, got %q", path, rs.Type)
		}

		if len(rs.ROMs) == 0 {
			return errors.New(errors.InputError, "%s.roms: must contain at least one ROM", path)
		}
		if mode == Single && len(rs.ROMs) != 1 {
			return errors.New(errors.InputError, "%s.roms: serve mode single requires exactly one ROM, got %d", path, len(rs.ROMs))
		}

		if rs.ServeAlgParams != nil {
			if err := validateServeAlgFraming(rs.ServeAlgParams.Params); err != nil {
				return errors.Wrap(errors.InputError, err, "%s.serve_alg_params", path)
			}
		}

		if rs.FirmwareOverrides != nil {
			if err := rs.FirmwareOverrides.validate(); err != nil {
				return errors.Wrap(errors.InputError, err, "%s.firmware_overrides", path)
			}
		}

		for j, r := range rs.ROMs {
			rpath := path + ".roms[" + strconv.Itoa(j) + "]"
			if err := r.validate(rpath); err != nil {
				return err
			}
		}

		if mode == Multi {
			if err := validateConsistentPolarity(rs.ROMs, path); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r ROMSpec) validate(path string) error {
	if strings.TrimSpace(r.File) == "" {
		return errors.New(errors.InputError, "%s.file: must not be empty", path)
	}
	if _, err := chipTypeByName(r.Type); err != nil {
		return errors.Wrap(errors.InputError, err, "%s.type", path)
	}
	for _, cs := range []struct {
		name  string
		value string
	}{{"cs1", r.CS1}, {"cs2", r.CS2}, {"cs3", r.CS3}} {
		if cs.value == "" {
			continue
		}
		if _, ok := parsePolarity(cs.value); !ok {
			return errors.New(errors.InputError, "%s.%s: must be one of active_low, active_high, not_used, got %q", path, cs.name, cs.value)
		}
	}
	if r.DuplicateTo != nil && r.Length != nil && *r.DuplicateTo < *r.Length {
		return errors.New(errors.InputError, "%s.duplicate_to: %d is smaller than source length %d", path, *r.DuplicateTo, *r.Length)
	}
	return nil
}

// validateConsistentPolarity rejects a multi-ROM set where the ROMs
// disagree about which CS lines are active, since the runtime drives one
// shared set of CS lines for every ROM in the set.
func validateConsistentPolarity(roms []ROMSpec, path string) error {
	first := roms[0]
	for i, r := range roms[1:] {
		if r.CS1 != first.CS1 || r.CS2 != first.CS2 || r.CS3 != first.CS3 {
			return errors.New(errors.InputError, "%s.roms[%d]: CS polarity disagrees with roms[0] in a multi ROM set", path, i+1)
		}
	}
	return nil
}

// validateServeAlgFraming checks only the opaque vector's framing bytes —
// the leading byte and the trailing two — per the open question in the
// specification this schema is drawn from: the inner payload belongs to
// the on-MCU PIO runtime and is never interpreted here.
func validateServeAlgFraming(params []byte) error {
	if len(params) != 8 {
		return errors.New(errors.InputError, "serve_alg_params: must be 8 bytes, got %d", len(params))
	}
	if params[0] != 0xFE {
		return errors.New(errors.InputError, "serve_alg_params: bad leading framing byte (want FE, got %02X)", params[0])
	}
	if params[6] != 0xFE || params[7] != 0xFF {
		return errors.New(errors.InputError, "serve_alg_params: bad framing bytes (want FE FF, got %02X %02X)", params[6], params[7])
	}
	return nil
}

func parsePolarity(s string) (hardware.Polarity, bool) {
	switch s {
	case "active_low":
		return hardware.ActiveLow, true
	case "active_high":
		return hardware.ActiveHigh, true
	case "not_used":
		return hardware.NotUsed, true
	default:
		return 0, false
	}
}

var chipNames = map[string]hardware.ChipType{
	"2304": hardware.C2304, "2308": hardware.C2308, "2316": hardware.C2316,
	"2332": hardware.C2332, "2364": hardware.C2364, "2516": hardware.C2516,
	"2532": hardware.C2532, "2716": hardware.C2716, "2732": hardware.C2732,
	"2758": hardware.C2758, "6116": hardware.C6116, "231024": hardware.C231024,
	"2764": hardware.C2764, "27128": hardware.C27128, "27256": hardware.C27256,
	"27512": hardware.C27512, "27010": hardware.C27010, "27020": hardware.C27020,
	"27040": hardware.C27040, "27080": hardware.C27080, "27400": hardware.C27400,
}

func chipTypeByName(name string) (hardware.ChipType, error) {
	t, ok := chipNames[name]
	if !ok {
		return 0, errors.New(errors.InputError, "unknown chip type %q", name)
	}
	return t, nil
}

