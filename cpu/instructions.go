// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "strings"

// An opsym is an internal symbol used to associate an opcode's data
// with its instructions.
type opsym byte

const (
	symCLS opsym = iota
	symRET
	symSYS
	symJP
	symCALL
	symSEB
	symSNEB
	symSER
	symLDB
	symADDB
	symLDR
	symOR
	symAND
	symXOR
	symADDR
	symSUB
	symSHR
	symSUBN
	symSHL
	symSNER
	symLDI
	symJPV0
	symRND
	symDRW
	symSKP
	symSKNP
	symLDVDT
	symLDK
	symLDDT
	symLDST
	symADDI
	symLDF
	symLDBCD
	symSTM
	symLDM
	symUNK
)

// Instruction set variant index. Only the shift instructions differ
// between the two.
const (
	variantLegacy = 0
	variantQuirk  = 1
)

type instfunc func(c *CPU, op Op)

// Opcode name and function implementation data.
type opcodeImpl struct {
	sym  opsym
	name string
	fn   [2]instfunc // legacy=0, quirk=1
}

// Symbol, name, and implementation for each opcode.
var impl = []opcodeImpl{
	{symCLS, "CLS", [2]instfunc{(*CPU).cls, (*CPU).cls}},
	{symRET, "RET", [2]instfunc{(*CPU).ret, (*CPU).ret}},
	{symSYS, "SYS", [2]instfunc{(*CPU).sys, (*CPU).sys}},
	{symJP, "JP", [2]instfunc{(*CPU).jp, (*CPU).jp}},
	{symCALL, "CALL", [2]instfunc{(*CPU).call, (*CPU).call}},
	{symSEB, "SE", [2]instfunc{(*CPU).seb, (*CPU).seb}},
	{symSNEB, "SNE", [2]instfunc{(*CPU).sneb, (*CPU).sneb}},
	{symSER, "SE", [2]instfunc{(*CPU).ser, (*CPU).ser}},
	{symLDB, "LD", [2]instfunc{(*CPU).ldb, (*CPU).ldb}},
	{symADDB, "ADD", [2]instfunc{(*CPU).addb, (*CPU).addb}},
	{symLDR, "LD", [2]instfunc{(*CPU).ldr, (*CPU).ldr}},
	{symOR, "OR", [2]instfunc{(*CPU).or, (*CPU).or}},
	{symAND, "AND", [2]instfunc{(*CPU).and, (*CPU).and}},
	{symXOR, "XOR", [2]instfunc{(*CPU).xor, (*CPU).xor}},
	{symADDR, "ADD", [2]instfunc{(*CPU).addr, (*CPU).addr}},
	{symSUB, "SUB", [2]instfunc{(*CPU).sub, (*CPU).sub}},
	{symSHR, "SHR", [2]instfunc{(*CPU).shrl, (*CPU).shrq}},
	{symSUBN, "SUBN", [2]instfunc{(*CPU).subn, (*CPU).subn}},
	{symSHL, "SHL", [2]instfunc{(*CPU).shll, (*CPU).shlq}},
	{symSNER, "SNE", [2]instfunc{(*CPU).sner, (*CPU).sner}},
	{symLDI, "LD", [2]instfunc{(*CPU).ldi, (*CPU).ldi}},
	{symJPV0, "JP", [2]instfunc{(*CPU).jpv0, (*CPU).jpv0}},
	{symRND, "RND", [2]instfunc{(*CPU).rnd, (*CPU).rnd}},
	{symDRW, "DRW", [2]instfunc{(*CPU).drw, (*CPU).drw}},
	{symSKP, "SKP", [2]instfunc{(*CPU).skp, (*CPU).skp}},
	{symSKNP, "SKNP", [2]instfunc{(*CPU).sknp, (*CPU).sknp}},
	{symLDVDT, "LD", [2]instfunc{(*CPU).ldvdt, (*CPU).ldvdt}},
	{symLDK, "LD", [2]instfunc{(*CPU).ldk, (*CPU).ldk}},
	{symLDDT, "LD", [2]instfunc{(*CPU).lddt, (*CPU).lddt}},
	{symLDST, "LD", [2]instfunc{(*CPU).ldst, (*CPU).ldst}},
	{symADDI, "ADD", [2]instfunc{(*CPU).addi, (*CPU).addi}},
	{symLDF, "LD", [2]instfunc{(*CPU).ldf, (*CPU).ldf}},
	{symLDBCD, "LD", [2]instfunc{(*CPU).ldbcd, (*CPU).ldbcd}},
	{symSTM, "LD", [2]instfunc{(*CPU).stm, (*CPU).stm}},
	{symLDM, "LD", [2]instfunc{(*CPU).ldm, (*CPU).ldm}},
	{symUNK, "???", [2]instfunc{(*CPU).unknown, (*CPU).unknown}},
}

// Opcode match data. Entries sharing a high nibble are tried in order, so
// the more specific masks must come first.
type opcodeData struct {
	mask  uint16
	value uint16
	sym   opsym
}

var data = []opcodeData{
	{0xffff, 0x00e0, symCLS},
	{0xffff, 0x00ee, symRET},
	{0xf000, 0x0000, symSYS},
	{0xf000, 0x1000, symJP},
	{0xf000, 0x2000, symCALL},
	{0xf000, 0x3000, symSEB},
	{0xf000, 0x4000, symSNEB},
	{0xf00f, 0x5000, symSER},
	{0xf000, 0x6000, symLDB},
	{0xf000, 0x7000, symADDB},
	{0xf00f, 0x8000, symLDR},
	{0xf00f, 0x8001, symOR},
	{0xf00f, 0x8002, symAND},
	{0xf00f, 0x8003, symXOR},
	{0xf00f, 0x8004, symADDR},
	{0xf00f, 0x8005, symSUB},
	{0xf00f, 0x8006, symSHR},
	{0xf00f, 0x8007, symSUBN},
	{0xf00f, 0x800e, symSHL},
	{0xf00f, 0x9000, symSNER},
	{0xf000, 0xa000, symLDI},
	{0xf000, 0xb000, symJPV0},
	{0xf000, 0xc000, symRND},
	{0xf000, 0xd000, symDRW},
	{0xf0ff, 0xe09e, symSKP},
	{0xf0ff, 0xe0a1, symSKNP},
	{0xf0ff, 0xf007, symLDVDT},
	{0xf0ff, 0xf00a, symLDK},
	{0xf0ff, 0xf015, symLDDT},
	{0xf0ff, 0xf018, symLDST},
	{0xf0ff, 0xf01e, symADDI},
	{0xf0ff, 0xf029, symLDF},
	{0xf0ff, 0xf033, symLDBCD},
	{0xf0ff, 0xf055, symSTM},
	{0xf0ff, 0xf065, symLDM},
}

// An Instruction describes a CPU instruction, including its name and the
// opcode pattern that selects it.
type Instruction struct {
	Name  string   // all-caps mnemonic
	Mask  uint16   // bits of the opcode word that identify the instruction
	Value uint16   // value of the masked bits
	sym   opsym    // internal symbol
	fn    instfunc // emulator implementation of the instruction
}

// Unknown reports whether the instruction is the placeholder for words
// that match no opcode.
func (inst *Instruction) Unknown() bool {
	return inst.sym == symUNK
}

// An Op is a decoded opcode word: the instruction plus its operand fields,
// extracted once.
type Op struct {
	Inst *Instruction
	Word uint16 // raw opcode word
	X    byte   // second nibble, a register index
	Y    byte   // third nibble, a register index
	N    byte   // low nibble
	NN   byte   // low byte
	NNN  uint16 // low 12 bits, an address
}

// An InstructionSet defines the set of all instructions understood by the
// interpreter for one quirk configuration.
type InstructionSet struct {
	Quirks   Quirks
	buckets  [16][]*Instruction        // instructions by high nibble
	unknown  *Instruction              // placeholder for unmatched words
	variants map[string][]*Instruction // variants of each mnemonic
}

// Decode looks up the instruction matching the opcode word and extracts
// its operand fields. Words that match no instruction decode to the
// unknown instruction, which executes as a no-op.
func (s *InstructionSet) Decode(word uint16) Op {
	op := Op{
		Inst: s.unknown,
		Word: word,
		X:    byte(word>>8) & 0xf,
		Y:    byte(word>>4) & 0xf,
		N:    byte(word) & 0xf,
		NN:   byte(word),
		NNN:  word & AddressMask,
	}
	for _, inst := range s.buckets[word>>12] {
		if word&inst.Mask == inst.Value {
			op.Inst = inst
			break
		}
	}
	return op
}

// GetInstructions returns all instructions whose mnemonic matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

// Create an instruction set for a quirk configuration.
func newInstructionSet(q Quirks) *InstructionSet {
	set := &InstructionSet{Quirks: q}

	variant := variantLegacy
	if q.ShiftInPlace {
		variant = variantQuirk
	}

	// Create a map from symbol to implementation for fast lookups.
	symToImpl := make(map[opsym]*opcodeImpl, len(impl))
	for i := range impl {
		symToImpl[impl[i].sym] = &impl[i]
	}

	set.variants = make(map[string][]*Instruction)

	for _, d := range data {
		impl := symToImpl[d.sym]
		inst := &Instruction{
			Name:  impl.name,
			Mask:  d.mask,
			Value: d.value,
			sym:   d.sym,
			fn:    impl.fn[variant],
		}
		nibble := d.value >> 12
		set.buckets[nibble] = append(set.buckets[nibble], inst)
		set.variants[inst.Name] = append(set.variants[inst.Name], inst)
	}

	unk := symToImpl[symUNK]
	set.unknown = &Instruction{
		Name: unk.name,
		sym:  symUNK,
		fn:   unk.fn[variant],
	}

	return set
}

var instructionSets [2]*InstructionSet

// GetInstructionSet returns an instruction set for the requested quirk
// configuration.
func GetInstructionSet(q Quirks) *InstructionSet {
	i := variantLegacy
	if q.ShiftInPlace {
		i = variantQuirk
	}
	if instructionSets[i] == nil {
		instructionSets[i] = newInstructionSet(q)
	}
	return instructionSets[i]
}

// Decode decodes an opcode word using the legacy instruction set. The
// instruction names and operand fields are the same for every quirk
// configuration.
func Decode(word uint16) Op {
	return GetInstructionSet(Quirks{}).Decode(word)
}
