// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrProgramTooLarge = errors.New("program image exceeds available memory")
	ErrProgramEmpty    = errors.New("program image is empty")
)

// A LoadError is returned when a program image cannot be read or does not
// fit into memory. The interpreter is never left partially initialized when
// a LoadError is returned.
type LoadError struct {
	Op   string // operation that failed, e.g. "read", "decompress", "load"
	Path string // source of the image, if known
	Size int    // size of the image in bytes, if known
	Err  error  // underlying cause
}

func (e *LoadError) Error() string {
	switch {
	case e.Path != "" && e.Size > 0:
		return fmt.Sprintf("%s %s (%d bytes): %v", e.Op, e.Path, e.Size, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	case e.Size > 0:
		return fmt.Sprintf("%s (%d bytes): %v", e.Op, e.Size, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
