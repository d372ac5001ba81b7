// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a CHIP-8 instruction set
// disassembler.
package disasm

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
	"github.com/srikur/chip8/cpu"
)

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code.
func Disassemble(m *cpu.Memory, addr uint16) (line string, next uint16) {
	word := m.LoadWord(addr)
	next = (addr + 2) & cpu.AddressMask

	op := cpu.Decode(word)
	if op.Inst.Unknown() {
		return fmt.Sprintf("DW $%04X", word), next
	}

	name := mnemonic(word)
	if name == "" {
		name = op.Inst.Name
	}

	if operands := formatOperands(op); operands != "" {
		return name + " " + operands, next
	}
	return name, next
}

// mnemonic looks up the opcode word in the CHIP-8 opcode table and
// returns the upper-case instruction name, or an empty string if the word
// is not in the table.
func mnemonic(word uint16) string {
	for _, op := range chip8.Opcodes[int(word>>12)] {
		if op.Info.Mask&word == op.Info.Value && op.Instruction != nil {
			return strings.ToUpper(op.Instruction.Name)
		}
	}
	return ""
}

// formatOperands formats the operand fields of a decoded instruction.
func formatOperands(op cpu.Op) string {
	switch op.Word >> 12 {
	case 0x0:
		if op.Word == 0x00e0 || op.Word == 0x00ee {
			return ""
		}
		return fmt.Sprintf("$%03X", op.NNN)
	case 0x1, 0x2:
		return fmt.Sprintf("$%03X", op.NNN)
	case 0x3, 0x4, 0x6, 0x7, 0xc:
		return fmt.Sprintf("V%X, $%02X", op.X, op.NN)
	case 0x5, 0x8, 0x9:
		return fmt.Sprintf("V%X, V%X", op.X, op.Y)
	case 0xa:
		return fmt.Sprintf("I, $%03X", op.NNN)
	case 0xb:
		return fmt.Sprintf("V0, $%03X", op.NNN)
	case 0xd:
		return fmt.Sprintf("V%X, V%X, $%X", op.X, op.Y, op.N)
	case 0xe:
		return fmt.Sprintf("V%X", op.X)
	case 0xf:
		return formatLoad(op)
	}
	return ""
}

// formatLoad formats the FX-prefixed transfer instructions.
func formatLoad(op cpu.Op) string {
	switch op.NN {
	case 0x07:
		return fmt.Sprintf("V%X, DT", op.X)
	case 0x0a:
		return fmt.Sprintf("V%X, K", op.X)
	case 0x15:
		return fmt.Sprintf("DT, V%X", op.X)
	case 0x18:
		return fmt.Sprintf("ST, V%X", op.X)
	case 0x1e:
		return fmt.Sprintf("I, V%X", op.X)
	case 0x29:
		return fmt.Sprintf("F, V%X", op.X)
	case 0x33:
		return fmt.Sprintf("B, V%X", op.X)
	case 0x55:
		return fmt.Sprintf("[I], V%X", op.X)
	case 0x65:
		return fmt.Sprintf("V%X, [I]", op.X)
	}
	return ""
}

// GetRegisterString returns a string describing the contents of the CPU
// registers.
func GetRegisterString(r *cpu.Registers) string {
	var b strings.Builder
	for i, v := range r.V {
		fmt.Fprintf(&b, "V%X=%02X ", i, v)
	}
	fmt.Fprintf(&b, "I=%03X PC=%03X SP=%X DT=%02X ST=%02X", r.I, r.PC, r.SP, r.DT, r.ST)
	return b.String()
}
