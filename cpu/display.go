// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Display dimensions in pixels.
const (
	DisplayWidth  = 64
	DisplayHeight = 32
)

// Display is the monochrome framebuffer. Pixels are addressed row-major,
// and the changed flag tells the host that the buffer needs re-rendering.
type Display struct {
	pixels  [DisplayWidth * DisplayHeight]bool
	changed bool
}

// Pixel returns the state of the pixel at (x, y). Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	return d.pixels[pixelIndex(x, y)]
}

// Changed returns true if the framebuffer was cleared or drawn to since
// the last call to ClearChanged.
func (d *Display) Changed() bool {
	return d.changed
}

// ClearChanged resets the changed flag. The host calls it after it has
// rendered the framebuffer.
func (d *Display) ClearChanged() {
	d.changed = false
}

// Bytes returns a copy of the framebuffer with one byte (0 or 1) per
// pixel, row-major.
func (d *Display) Bytes() []byte {
	b := make([]byte, len(d.pixels))
	for i, p := range d.pixels {
		b[i] = boolToByte(p)
	}
	return b
}

// clear turns off every pixel.
func (d *Display) clear() {
	d.pixels = [DisplayWidth * DisplayHeight]bool{}
	d.changed = true
}

// drawSprite XORs an 8-pixel-wide sprite onto the framebuffer with its
// top-left corner at (x, y). Each sprite row wraps independently on both
// axes. It returns true if any lit pixel was turned off.
func (d *Display) drawSprite(x, y byte, sprite []byte) (collision bool) {
	for row, bits := range sprite {
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			i := pixelIndex(int(x)+col, int(y)+row)
			if d.pixels[i] {
				collision = true
			}
			d.pixels[i] = !d.pixels[i]
		}
	}
	d.changed = true
	return collision
}

func pixelIndex(x, y int) int {
	x %= DisplayWidth
	if x < 0 {
		x += DisplayWidth
	}
	y %= DisplayHeight
	if y < 0 {
		y += DisplayHeight
	}
	return y*DisplayWidth + x
}
