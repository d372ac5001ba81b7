// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// StackDepth is the number of return addresses the call stack can hold.
const StackDepth = 16

// Registers contains the state of all CHIP-8 registers, including the
// call stack and the two countdown timers.
type Registers struct {
	V     [16]byte           // general purpose registers V0..VF (VF is the flag register)
	I     uint16             // index register
	PC    uint16             // program counter
	SP    byte               // stack pointer (0 = empty)
	Stack [StackDepth]uint16 // return addresses
	DT    byte               // delay timer
	ST    byte               // sound timer
}

// Flag register index.
const VF = 0xf

// Init initializes all registers. V0..VF, I, SP, DT, ST = 0. PC = the
// program load address.
func (r *Registers) Init() {
	*r = Registers{PC: ProgramStart}
}

// push stores addr on the call stack. It reports false if the stack is
// already full.
func (r *Registers) push(addr uint16) bool {
	if int(r.SP) >= len(r.Stack) {
		return false
	}
	r.Stack[r.SP] = addr
	r.SP++
	return true
}

// pop removes and returns the most recently pushed address. It reports
// false if the stack is empty.
func (r *Registers) pop() (uint16, bool) {
	if r.SP == 0 {
		return 0, false
	}
	r.SP--
	return r.Stack[r.SP], true
}

// tickTimers decrements each non-zero timer by one.
func (r *Registers) tickTimers() {
	if r.DT > 0 {
		r.DT--
	}
	if r.ST > 0 {
		r.ST--
	}
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
