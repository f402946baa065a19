// Package hardware is the static catalog of everything the mangler and
// composer need to know about the emulator board: the pin assignment for
// each PCB revision, and the closed set of ROM/EPROM chip types the board
// can imitate.
//
// Nothing in this package touches bytes. It answers two questions only:
// "on this board revision, which GPIO carries this address/data/control
// line" (PinMap), and "for this chip type, how many control lines does it
// have and how big is it" (ChipDescriptor).
package hardware
