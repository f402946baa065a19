package cartridgeloader

import "github.com/sweproj/onerom/errors"

// applyTransforms applies slice, then duplicate, then pad/truncate to data
// as described by spec, in that fixed order, and rejects if the result
// cannot be made to match capacity bytes.
func applyTransforms(data []byte, spec ROMSpec, capacity int) ([]byte, error) {
	out := data

	if spec.Offset != nil || spec.Length != nil {
		offset := 0
		if spec.Offset != nil {
			offset = *spec.Offset
		}
		length := len(out) - offset
		if spec.Length != nil {
			length = *spec.Length
		}
		if offset < 0 || length < 0 || offset+length > len(out) {
			return nil, errors.New(errors.InputError, "slice: offset %d length %d out of range for %d source bytes", offset, length, len(out))
		}
		out = out[offset : offset+length]
	}

	if spec.DuplicateTo != nil {
		target := *spec.DuplicateTo
		if target < len(out) {
			return nil, errors.New(errors.InputError, "duplicate_to: %d is smaller than source length %d", target, len(out))
		}
		if len(out) == 0 {
			return nil, errors.New(errors.InputError, "duplicate_to: source is empty, nothing to duplicate")
		}
		if target%len(out) != 0 {
			return nil, errors.New(errors.InputError, "duplicate_to: %d is not an exact multiple of source length %d", target, len(out))
		}
		dup := make([]byte, 0, target)
		for len(dup) < target {
			dup = append(dup, out...)
		}
		out = dup
	}

	if spec.PadTo != nil {
		target := *spec.PadTo
		if target > capacity {
			return nil, errors.New(errors.InputError, "pad_to: %d exceeds chip capacity %d", target, capacity)
		}
		if target < len(out) {
			return nil, errors.New(errors.InputError, "pad_to: %d is smaller than current length %d", target, len(out))
		}
		padded := make([]byte, target)
		copy(padded, out)
		out = padded
	}

	if spec.TruncateTo != nil {
		target := *spec.TruncateTo
		if target > len(out) {
			return nil, errors.New(errors.InputError, "truncate_to: %d exceeds current length %d", target, len(out))
		}
		out = out[:target]
	}

	if len(out) != capacity {
		return nil, errors.New(errors.InputError, "resolved ROM is %d bytes, chip capacity is %d bytes", len(out), capacity)
	}

	return out, nil
}
