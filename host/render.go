// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"io"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/srikur/chip8/cpu"
)

// renderWidth is the number of text columns a rendered frame occupies.
const renderWidth = cpu.DisplayWidth + 2

// A renderer draws the framebuffer as text, two pixel rows per line.
type renderer struct {
	lastHash uint64
	rendered bool
}

func (r *renderer) reset() {
	r.lastHash, r.rendered = 0, false
}

// render writes the framebuffer to w. Unless force is set, a frame identical
// to the last one rendered is skipped and render returns false.
func (r *renderer) render(w io.Writer, d *cpu.Display, force bool) (bool, error) {
	hash := xxhash.Sum64(d.Bytes())
	if !force && r.rendered && hash == r.lastHash {
		return false, nil
	}
	r.lastHash, r.rendered = hash, true

	border := "+" + strings.Repeat("-", cpu.DisplayWidth) + "+\n"

	var b strings.Builder
	b.WriteString(border)
	for y := 0; y < cpu.DisplayHeight; y += 2 {
		b.WriteByte('|')
		for x := 0; x < cpu.DisplayWidth; x++ {
			b.WriteRune(halfBlock(d.Pixel(x, y), d.Pixel(x, y+1)))
		}
		b.WriteString("|\n")
	}
	b.WriteString(border)

	_, err := io.WriteString(w, b.String())
	return true, err
}

func halfBlock(top, bottom bool) rune {
	switch {
	case top && bottom:
		return '█'
	case top:
		return '▀'
	case bottom:
		return '▄'
	default:
		return ' '
	}
}
