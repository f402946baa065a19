// Package mangle implements the address and byte permutations that let the
// runtime serve a ROM image directly off a GPIO-port read, with no
// arithmetic on the hot path: the table is built offline so that indexing
// it with the literal bit pattern the hardware reads back from its address,
// chip-select, and bank-select pins yields the correct (already
// bit-permuted) data byte.
//
// Index computes the table index for one (address, CS combination,
// bank/extension combination) tuple. MangleByte and DemangleByte permute a
// logical data byte into (and back out of) the bit order the board's data
// GPIOs impose.
package mangle
