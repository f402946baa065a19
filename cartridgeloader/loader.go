package cartridgeloader

import (
	"context"

	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/hardware"
	"github.com/sweproj/onerom/logger"
)

// ResolvedROM is one ROM descriptor after its source bytes have been
// fetched and shaped to its chip's capacity.
type ResolvedROM struct {
	Spec  ROMSpec
	Chip  hardware.ChipType
	Bytes []byte
}

// ResolvedSet is one rom_sets[] entry after every ROM in it has resolved.
type ResolvedSet struct {
	Mode ServeMode
	ROMs []ResolvedROM
	Spec ROMSetSpec
}

// Resolve fetches and transforms every ROM named in cfg, using fetcher to
// turn a file reference into bytes. It assumes cfg has already passed
// Validate; Resolve itself never fails on a schema violation, only on a
// source-fetch, archive, transform, or capacity-mismatch failure.
func Resolve(ctx context.Context, cfg Config, fetcher SourceFetcher) ([]ResolvedSet, error) {
	sets := make([]ResolvedSet, 0, len(cfg.ROMSets))

	for _, rs := range cfg.ROMSets {
		mode, _ := parseServeMode(rs.Type)

		resolved := ResolvedSet{Mode: mode, Spec: rs}
		for _, r := range rs.ROMs {
			rr, err := resolveOne(ctx, r, fetcher)
			if err != nil {
				return nil, err
			}
			resolved.ROMs = append(resolved.ROMs, rr)
		}
		sets = append(sets, resolved)
	}

	return sets, nil
}

func resolveOne(ctx context.Context, spec ROMSpec, fetcher SourceFetcher) (ResolvedROM, error) {
	chip, err := chipTypeByName(spec.Type)
	if err != nil {
		return ResolvedROM{}, err
	}

	capacity, err := hardware.CapacityBytes(chip)
	if err != nil {
		return ResolvedROM{}, err
	}

	raw, err := fetcher.Fetch(ctx, spec.File)
	if err != nil {
		return ResolvedROM{}, err
	}
	logger.Logf("loader", "fetched %s (%d bytes)", spec.File, len(raw))

	if spec.ZipMember != "" {
		raw, err = extractZipMember(raw, spec.ZipMember)
		if err != nil {
			return ResolvedROM{}, err
		}
	}

	data, err := applyTransforms(raw, spec, capacity)
	if err != nil {
		return ResolvedROM{}, errors.Wrap(errors.InputError, err, "resolving %s", spec.File)
	}

	return ResolvedROM{Spec: spec, Chip: chip, Bytes: data}, nil
}
