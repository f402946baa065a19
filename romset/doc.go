// Package romset decides a ROM set's serving strategy and builds its
// mangled lookup table: the byte array that, once written into the image,
// lets the runtime answer a bus read by treating a raw GPIO-port value as
// a direct index with no further computation.
package romset
