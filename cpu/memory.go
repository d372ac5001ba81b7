// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Memory layout constants.
const (
	MemorySize     = 4096
	AddressMask    = MemorySize - 1
	FontStart      = 0x000
	GlyphSize      = 5
	ProgramStart   = 0x200
	MaxProgramSize = MemorySize - ProgramStart
)

// The built-in glyph font for the hexadecimal digits 0..F, stored at
// FontStart. Each glyph is 8 pixels wide and GlyphSize rows tall.
var font = [16 * GlyphSize]byte{
	0xf0, 0x90, 0x90, 0x90, 0xf0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xf0, 0x10, 0xf0, 0x80, 0xf0, // 2
	0xf0, 0x10, 0xf0, 0x10, 0xf0, // 3
	0x90, 0x90, 0xf0, 0x10, 0x10, // 4
	0xf0, 0x80, 0xf0, 0x10, 0xf0, // 5
	0xf0, 0x80, 0xf0, 0x90, 0xf0, // 6
	0xf0, 0x10, 0x20, 0x40, 0x40, // 7
	0xf0, 0x90, 0xf0, 0x90, 0xf0, // 8
	0xf0, 0x90, 0xf0, 0x10, 0xf0, // 9
	0xf0, 0x90, 0xf0, 0x90, 0x90, // A
	0xe0, 0x90, 0xe0, 0x90, 0xe0, // B
	0xf0, 0x80, 0x80, 0x80, 0xf0, // C
	0xe0, 0x90, 0x90, 0x90, 0xe0, // D
	0xf0, 0x80, 0xf0, 0x80, 0xf0, // E
	0xf0, 0x80, 0xf0, 0x80, 0x80, // F
}

// Memory represents the entire 12-bit CHIP-8 address space. Every access
// wraps at MemorySize, so no address can fall outside the buffer.
type Memory struct {
	b [MemorySize]byte
}

// LoadByte loads a single byte from the address and returns it.
func (m *Memory) LoadByte(addr uint16) byte {
	return m.b[addr&AddressMask]
}

// LoadBytes loads len(b) bytes starting at addr into b, wrapping at the
// end of memory.
func (m *Memory) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = m.b[(int(addr)+i)&AddressMask]
	}
}

// LoadWord loads a big-endian 16-bit value from the requested address.
func (m *Memory) LoadWord(addr uint16) uint16 {
	return uint16(m.LoadByte(addr))<<8 | uint16(m.LoadByte(addr+1))
}

// StoreByte stores a byte at the requested address.
func (m *Memory) StoreByte(addr uint16, v byte) {
	m.b[addr&AddressMask] = v
}

// StoreBytes stores multiple bytes starting at the requested address,
// wrapping at the end of memory.
func (m *Memory) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		m.b[(int(addr)+i)&AddressMask] = v
	}
}

// reset zeroes memory and installs the glyph font.
func (m *Memory) reset() {
	m.b = [MemorySize]byte{}
	copy(m.b[FontStart:], font[:])
}

// glyphAddress returns the address of the glyph for hex digit d.
func glyphAddress(d byte) uint16 {
	return FontStart + uint16(d&0xf)*GlyphSize
}
