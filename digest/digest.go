// Package digest computes and verifies the SHA-256 checksum trailer
// appended to a composed image, so parse and validate can detect a
// truncated or corrupted image before trusting anything else in it.
package digest

import (
	"crypto/sha256"

	"github.com/sweproj/onerom/errors"
)

// Size is the length, in bytes, of the trailer Sum appends.
const Size = sha256.Size

// Sum returns the SHA-256 digest of data.
func Sum(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

// Append returns data with its SHA-256 digest appended.
func Append(data []byte) []byte {
	sum := Sum(data)
	return append(append([]byte{}, data...), sum[:]...)
}

// Verify splits trailer bytes off the end of image and checks them against
// the digest of everything before it. It returns the image with its
// trailer removed.
func Verify(image []byte) ([]byte, error) {
	if len(image) < Size {
		return nil, errors.New(errors.IntegrityError, "image is %d bytes, too short to carry a checksum trailer", len(image))
	}

	body := image[:len(image)-Size]
	want := image[len(image)-Size:]
	got := Sum(body)

	if string(got[:]) != string(want) {
		return nil, errors.New(errors.IntegrityError, "checksum mismatch")
	}

	return body, nil
}
