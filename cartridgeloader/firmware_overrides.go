package cartridgeloader

import (
	"encoding/json"
	"fmt"

	"github.com/sweproj/onerom/errors"
)

// FreqSetting is either a specific MHz value or the sentinel "Stock",
// accepted by ice.cpu_freq and fire.cpu_freq.
type FreqSetting struct {
	Stock bool
	MHz   int
}

func (f *FreqSetting) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "Stock" {
			return fmt.Errorf("must be an integer MHz value or %q, got %q", "Stock", s)
		}
		f.Stock = true
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("must be an integer MHz value or %q", "Stock")
	}
	f.MHz = n
	return nil
}

// VregSetting is either one of the 32 published voltage codes or "Stock".
type VregSetting struct {
	Stock bool
	Code  string
}

func (v *VregSetting) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "Stock" {
		v.Stock = true
		return nil
	}
	if _, ok := vregCodeIndex[s]; !ok {
		return fmt.Errorf("unknown voltage code %q", s)
	}
	v.Code = s
	return nil
}

// vregCodes is the closed set of 32 published voltage codes, stepping
// 0.05V from a 0.55V floor, matching the RP2350 VREG_VSEL encoding: the
// code's index into this table is also its on-image byte value.
var vregCodes = buildVregCodes()
var vregCodeIndex = buildVregCodeIndex()

func buildVregCodes() [32]string {
	var codes [32]string
	const floor, step = 0.55, 0.05
	for i := 0; i < 32; i++ {
		v := floor + step*float64(i)
		codes[i] = fmt.Sprintf("%.2fV", v)
	}
	return codes
}

func buildVregCodeIndex() map[string]int {
	m := make(map[string]int, 32)
	for i, c := range vregCodes {
		m[c] = i
	}
	return m
}

// VregIndex returns the on-image byte value for a published voltage code.
func VregIndex(code string) (int, bool) {
	i, ok := vregCodeIndex[code]
	return i, ok
}

// VregCodeAt returns the published voltage code for an on-image byte value.
func VregCodeAt(index int) (string, bool) {
	if index < 0 || index >= len(vregCodes) {
		return "", false
	}
	return vregCodes[index], true
}

// FireServeMode is the firmware's bus-serving path.
type FireServeMode int

const (
	FireServeCPU FireServeMode = iota
	FireServePIO
)

func (m *FireServeMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "Cpu":
		*m = FireServeCPU
	case "Pio":
		*m = FireServePIO
	default:
		return fmt.Errorf("must be %q or %q, got %q", "Cpu", "Pio", s)
	}
	return nil
}

// FirmwareOverrides is the optional firmware_overrides object attached to
// a ROM set.
type FirmwareOverrides struct {
	IceCPUFreq   *FreqSetting   `json:"ice.cpu_freq,omitempty"`
	IceOverclock *bool          `json:"ice.overclock,omitempty"`
	FireCPUFreq  *FreqSetting   `json:"fire.cpu_freq,omitempty"`
	FireOverclock *bool         `json:"fire.overclock,omitempty"`
	FireVreg     *VregSetting   `json:"fire.vreg,omitempty"`
	FireServeMode *FireServeMode `json:"fire.serve_mode,omitempty"`
	LEDEnabled   *bool          `json:"led.enabled,omitempty"`
	SWDEnabled   *bool          `json:"swd.swd_enabled,omitempty"`
}

// iceMaxRatedMHz and fireMaxRatedMHz are the rated-maximum clocks that
// ice.overclock / fire.overclock must be set to exceed.
const (
	iceMaxRatedMHz  = 168
	fireMaxRatedMHz = 150
)

func (o FirmwareOverrides) validate() error {
	if o.IceCPUFreq != nil && !o.IceCPUFreq.Stock && o.IceCPUFreq.MHz > iceMaxRatedMHz {
		if o.IceOverclock == nil || !*o.IceOverclock {
			return errors.New(errors.InputError, "ice.cpu_freq %dMHz exceeds rated max %dMHz without ice.overclock", o.IceCPUFreq.MHz, iceMaxRatedMHz)
		}
	}
	if o.FireCPUFreq != nil && !o.FireCPUFreq.Stock && o.FireCPUFreq.MHz > fireMaxRatedMHz {
		if o.FireOverclock == nil || !*o.FireOverclock {
			return errors.New(errors.InputError, "fire.cpu_freq %dMHz exceeds rated max %dMHz without fire.overclock", o.FireCPUFreq.MHz, fireMaxRatedMHz)
		}
	}
	return nil
}
