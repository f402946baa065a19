// Package parse reads a composed image back into the structures compose
// wrote: the metadata header, each ROM set's record and descriptors, and
// on request the demangled bytes of any ROM in it.
//
// Parsing tolerates unknown trailing bytes after the last mangled table
// (room for future extensions) but never tolerates an unknown field
// inside a record it does understand.
package parse
