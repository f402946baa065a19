// Package compose assembles a firmware image: the code region produced by
// the out-of-scope firmware build, a metadata header, one record per ROM
// set, and the mangled lookup table for each set, laid out exactly as
// described by the on-image binary format so the runtime and the parser
// agree on every byte.
//
// Composition is atomic: the image is written to a temporary file in the
// destination directory and renamed into place only once every byte has
// been flushed, so a crash or a validation failure never leaves a partial
// image where the caller expected one.
package compose
