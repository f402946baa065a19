// Package validate re-derives every legal address/control-line tuple for
// each ROM set in a composed image and compares the mangled table against
// what the mangling algorithm says should be there. It is the canonical
// pre-release check: a clean validation run is the only way to be
// confident a composed image will serve correct bytes on real hardware.
package validate
