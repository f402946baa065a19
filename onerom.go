// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweproj/onerom/cartridgeloader"
	"github.com/sweproj/onerom/compose"
	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/inspect"
	"github.com/sweproj/onerom/logger"
	"github.com/sweproj/onerom/modalflag"
	"github.com/sweproj/onerom/parse"
	"github.com/sweproj/onerom/statsview"
	"github.com/sweproj/onerom/validate"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	top := modalflag.Modes{Output: os.Stdout}
	top.AddSubModes("compose", "parse", "validate", "inspect")
	top.NewArgs(args)

	p, err := top.Parse()
	if p == modalflag.ParseHelp {
		return 0
	}
	if err != nil {
		return fail(err)
	}

	switch top.Mode() {
	case "compose":
		err = runCompose(top.RemainingArgs())
	case "parse":
		err = runParse(top.RemainingArgs())
	case "validate":
		err = runValidate(top.RemainingArgs())
	case "inspect":
		err = runInspect(top.RemainingArgs())
	default:
		err = errors.New(errors.InputError, "unknown mode %q", top.Mode())
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

// fail prints the curated Kind and detail message of err as the JSON
// object every failure of this command line takes, and returns the exit
// code the caller should use.
func fail(err error) int {
	obj := struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}{Detail: err.Error()}

	if kind, ok := errors.Kind(err); ok {
		obj.Error = kind.String()
	} else {
		obj.Error = "unknown_error"
	}

	enc, marshalErr := json.Marshal(obj)
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintln(os.Stderr, string(enc))
	return 1
}

func loadPinMap(revision string) (hardware.PinMap, error) {
	if revision == "" {
		return hardware.PinMap{}, errors.New(errors.InputError, "-pcb is required (one of: %v)", hardware.Known())
	}
	return hardware.LookupPCB(revision)
}

func resolveSets(ctx context.Context, jsonPath string) (cartridgeloader.Config, []cartridgeloader.ResolvedSet, error) {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return cartridgeloader.Config{}, nil, errors.Wrap(errors.SourceError, err, "reading %s", jsonPath)
	}
	cfg, err := cartridgeloader.ParseConfig(raw)
	if err != nil {
		return cartridgeloader.Config{}, nil, err
	}
	sets, err := cartridgeloader.Resolve(ctx, cfg, cartridgeloader.DefaultFetcher{})
	if err != nil {
		return cartridgeloader.Config{}, nil, err
	}
	return cfg, sets, nil
}

func runCompose(args []string) error {
	md := modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	fwImage := md.AddString("fw-image", "", "path to the firmware binary")
	jsonPath := md.AddString("json", "", "path to the ROM set configuration")
	out := md.AddString("out", "", "path to write the composed image to")
	pcb := md.AddString("pcb", "", "PCB revision to compose for")
	debugGraph := md.AddString("debug-graph", "", "optional path to write a Graphviz layout dump to")

	p, err := md.Parse()
	if p == modalflag.ParseHelp {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.InputError, err, "parsing compose flags")
	}
	if *fwImage == "" || *jsonPath == "" || *out == "" {
		return errors.New(errors.InputError, "compose requires -fw-image, -json and -out")
	}

	pm, err := loadPinMap(*pcb)
	if err != nil {
		return err
	}

	fw, err := os.ReadFile(*fwImage)
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "reading %s", *fwImage)
	}

	_, sets, err := resolveSets(context.Background(), *jsonPath)
	if err != nil {
		return err
	}

	if err := compose.WriteFile(*out, fw, pm, sets); err != nil {
		return err
	}
	logger.Logf("onerom", "composed %s (%d ROM sets) for %s", *out, len(sets), pm.Revision)
	fmt.Fprintf(md.Output, "wrote %s\n", *out)

	if *debugGraph != "" {
		if err := compose.WriteDebugGraph(*debugGraph, fw, pm, sets); err != nil {
			return err
		}
		fmt.Fprintf(md.Output, "wrote %s\n", *debugGraph)
	}

	return nil
}

func runParse(args []string) error {
	md := modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	imagePath := md.AddString("image", "", "path to the composed image")
	pcb := md.AddString("pcb", "", "PCB revision the image was composed for (required with -extract)")
	setIdx := md.AddInt("set", -1, "limit output to a single ROM set by index")
	extractDir := md.AddString("extract", "", "directory to extract demangled ROM images into")

	p, err := md.Parse()
	if p == modalflag.ParseHelp {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.InputError, err, "parsing parse flags")
	}
	if *imagePath == "" {
		return errors.New(errors.InputError, "parse requires -image")
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "reading %s", *imagePath)
	}

	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		return err
	}

	if *extractDir != "" {
		pm, err := loadPinMap(*pcb)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(*extractDir, 0o755); err != nil {
			return errors.Wrap(errors.SourceError, err, "creating %s", *extractDir)
		}
		for i, s := range img.Sets {
			if *setIdx >= 0 && i != *setIdx {
				continue
			}
			for j := range s.ROMs {
				data, err := img.Demangle(pm, i, j)
				if err != nil {
					return err
				}
				name := filepath.Join(*extractDir, fmt.Sprintf("set%d_rom%d.bin", i, j))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					return errors.Wrap(errors.SourceError, err, "writing %s", name)
				}
				fmt.Fprintf(md.Output, "wrote %s\n", name)
			}
		}
		return nil
	}

	pages := inspect.BuildPages(img)
	if *setIdx >= 0 {
		if *setIdx >= len(pages) {
			return errors.New(errors.InputError, "-set %d: image has %d ROM sets", *setIdx, len(pages))
		}
		pages = pages[*setIdx : *setIdx+1]
	}
	return inspect.WriteAll(md.Output, pages)
}

func runValidate(args []string) error {
	md := modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	imagePath := md.AddString("image", "", "path to the composed image")
	jsonPath := md.AddString("json", "", "path to the ROM set configuration the image was composed from")
	pcb := md.AddString("pcb", "", "PCB revision the image was composed for")

	live := &[]bool{false}[0]
	if statsview.Available() {
		live = md.AddBool("live", false, fmt.Sprintf("run a live stats dashboard while validating (%s)", statsview.Address))
	}

	p, err := md.Parse()
	if p == modalflag.ParseHelp {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.InputError, err, "parsing validate flags")
	}
	if *imagePath == "" || *jsonPath == "" {
		return errors.New(errors.InputError, "validate requires -image and -json")
	}

	if *live {
		statsview.Launch(md.Output)
	}

	pm, err := loadPinMap(*pcb)
	if err != nil {
		return err
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "reading %s", *imagePath)
	}

	_, sets, err := resolveSets(context.Background(), *jsonPath)
	if err != nil {
		return err
	}

	report, err := validate.Validate(pm, image, sets)
	if err != nil {
		return err
	}

	for i, sr := range report.Sets {
		fmt.Fprintf(md.Output, "ROM set %d: %d tuples checked, %d mismatches\n", i, sr.TuplesChecked, len(sr.Mismatches))
		for _, m := range sr.Mismatches {
			fmt.Fprintf(md.Output, "  ROM %d addr %d: got %#02x want %#02x (cs=%v x=%v)\n", m.ROMIndex, m.Address, m.Got, m.Want, m.CS, m.X)
		}
	}

	if !report.OK() {
		return errors.New(errors.IntegrityError, "validation found mismatches in %d ROM set(s)", countFailed(report))
	}
	return nil
}

func countFailed(r validate.Report) int {
	n := 0
	for _, s := range r.Sets {
		if len(s.Mismatches) > 0 {
			n++
		}
	}
	return n
}

func runInspect(args []string) error {
	md := modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	imagePath := md.AddString("image", "", "path to the composed image")
	pcb := md.AddString("pcb", "", "PCB revision, for the pin-map summary line")
	tty := md.AddString("tty", "/dev/tty", "terminal device to page through output on")

	p, err := md.Parse()
	if p == modalflag.ParseHelp {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.InputError, err, "parsing inspect flags")
	}
	if *imagePath == "" {
		return errors.New(errors.InputError, "inspect requires -image")
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		return errors.Wrap(errors.SourceError, err, "reading %s", *imagePath)
	}

	img, err := parse.Parse(image, parse.Options{})
	if err != nil {
		return err
	}

	if *pcb != "" {
		pm, err := loadPinMap(*pcb)
		if err != nil {
			return err
		}
		fmt.Fprintln(md.Output, inspect.PinMapSummary(pm))
	}

	pages := inspect.BuildPages(img)
	return inspect.RunPager(md.Output, *tty, pages)
}
