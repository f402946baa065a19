// Package cartridgeloader resolves a ROM-set configuration document into
// concrete byte sources and applies the transforms it describes.
//
// A configuration document names, for each ROM, where its bytes come from
// (a local file, an HTTPS URL, or a member of a zip archive) and how those
// bytes should be shaped to fit the target chip: duplicated to fill a
// larger chip than the source image, then padded or truncated to the
// chip's exact capacity. Transforms always apply in that order; a
// configuration that cannot be made to match its chip's capacity this way
// is a schema violation, not a silent truncation.
//
// Fetching is done through the SourceFetcher interface so tests can
// substitute an in-memory fetcher; the default implementation makes at most
// three attempts at an HTTPS fetch, with exponential backoff between them,
// inside an overall 60 second deadline.
package cartridgeloader
