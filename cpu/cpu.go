// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the CHIP-8 instruction set and interpreter.
package cpu

import (
	"math/rand/v2"

	"github.com/retroenv/retrogolib/log"
)

// Quirks selects between historical behaviors of the interpreter.
type Quirks struct {
	// ShiftInPlace makes 8XY6 and 8XYE shift VX itself. When false, the
	// legacy behavior shifts VY and stores the result in VX.
	ShiftInPlace bool
}

// KeyCount is the number of keys on the keypad.
const KeyCount = 16

// CPU represents a single CHIP-8 interpreter. It owns the machine's memory,
// registers, framebuffer and key state.
type CPU struct {
	Reg         Registers       // CPU registers
	LastPC      uint16          // address of the most recently fetched opcode
	Steps       uint64          // total executed steps
	InstSet     *InstructionSet // instruction set used by the CPU
	mem         Memory
	display     Display
	keys        [KeyCount]bool
	quirks      Quirks
	program     []byte
	awaiting    bool
	awaitReg    byte
	halted      bool
	stackFaults uint64
	rng         *rand.Rand
	logger      *log.Logger
	debugger    *Debugger
	storeByte   func(cpu *CPU, addr uint16, v byte)
}

// An Option configures a CPU created by NewCPU.
type Option func(cpu *CPU)

// WithRandSource makes the RND instruction draw from src.
func WithRandSource(src rand.Source) Option {
	return func(cpu *CPU) {
		cpu.rng = rand.New(src)
	}
}

// WithLogger sets the logger used to report stack faults and unknown
// opcodes.
func WithLogger(logger *log.Logger) Option {
	return func(cpu *CPU) {
		cpu.logger = logger
	}
}

// NewCPU creates an emulated CHIP-8 interpreter with an empty program.
func NewCPU(quirks Quirks, opts ...Option) *CPU {
	cpu := &CPU{
		quirks:    quirks,
		InstSet:   GetInstructionSet(quirks),
		storeByte: (*CPU).storeByteNormal,
	}
	for _, opt := range opts {
		opt(cpu)
	}

	if cpu.rng == nil {
		cpu.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cpu.logger == nil {
		cfg := log.DefaultConfig()
		cfg.Level = log.ErrorLevel
		cpu.logger = log.NewWithConfig(cfg)
	}

	cpu.reset()
	return cpu
}

// Load validates the program image and, if it fits, resets the machine and
// copies the image to ProgramStart. On error the CPU is left untouched.
func (cpu *CPU) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return &LoadError{Op: "load", Size: len(program), Err: ErrProgramTooLarge}
	}

	cpu.program = append(cpu.program[:0], program...)
	cpu.reset()
	return nil
}

// Reset returns the machine to its startup state and reloads the most
// recently loaded program.
func (cpu *CPU) Reset() {
	cpu.reset()
}

func (cpu *CPU) reset() {
	cpu.mem.reset()
	cpu.mem.StoreBytes(ProgramStart, cpu.program)
	cpu.Reg.Init()
	cpu.LastPC = ProgramStart
	cpu.Steps = 0
	cpu.keys = [KeyCount]bool{}
	cpu.awaiting = false
	cpu.awaitReg = 0
	cpu.halted = false
	cpu.stackFaults = 0
	cpu.display.clear()
}

// Quirks returns the quirk configuration fixed at creation time.
func (cpu *CPU) Quirks() Quirks {
	return cpu.quirks
}

// Memory returns the interpreter's memory.
func (cpu *CPU) Memory() *Memory {
	return &cpu.mem
}

// Display returns the framebuffer.
func (cpu *CPU) Display() *Display {
	return &cpu.display
}

// SetKey records the pressed state of a key. Keys outside 0..F are
// ignored.
func (cpu *CPU) SetKey(key byte, pressed bool) {
	if key < KeyCount {
		cpu.keys[key] = pressed
	}
}

// Key returns true if the key is currently pressed.
func (cpu *CPU) Key(key byte) bool {
	return cpu.keys[key&0xf]
}

// AwaitingKey reports whether the CPU is blocked on an FX0A instruction,
// and if so, which register will receive the key.
func (cpu *CPU) AwaitingKey() (reg byte, ok bool) {
	return cpu.awaitReg, cpu.awaiting
}

// StackFaults returns the number of CALL instructions executed with a full
// stack plus RET instructions executed with an empty one since the last
// reset.
func (cpu *CPU) StackFaults() uint64 {
	return cpu.stackFaults
}

// Halt stops the frame currently being run by RunFrame after the current
// step. Breakpoint handlers call it to pause execution.
func (cpu *CPU) Halt() {
	cpu.halted = true
}

// Halted returns true if execution was halted during the last RunFrame.
func (cpu *CPU) Halted() bool {
	return cpu.halted
}

// RunFrame executes n steps and then decrements both timers once. If the
// CPU is halted during the frame, the remaining steps are skipped and the
// timers are left alone. It returns the number of steps executed.
func (cpu *CPU) RunFrame(n int) int {
	cpu.halted = false

	steps := 0
	for steps < n && !cpu.halted {
		cpu.Step()
		steps++
	}

	if !cpu.halted {
		cpu.Reg.tickTimers()
	}
	return steps
}

// Step the cpu by one instruction. While the CPU awaits a key, a step only
// polls the keypad.
func (cpu *CPU) Step() {
	if cpu.awaiting {
		cpu.pollKeys()
		return
	}

	// Fetch the opcode and advance the PC
	word := cpu.mem.LoadWord(cpu.Reg.PC)
	cpu.LastPC = cpu.Reg.PC
	cpu.Reg.PC = (cpu.Reg.PC + 2) & AddressMask

	op := cpu.InstSet.Decode(word)
	op.Inst.fn(cpu, op)
	cpu.Steps++

	// Update the debugger so it handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.Reg.PC)
	}
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a byte
// to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

func (cpu *CPU) pollKeys() {
	for k, pressed := range cpu.keys {
		if pressed {
			cpu.Reg.V[cpu.awaitReg] = byte(k)
			cpu.awaiting = false
			return
		}
	}
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.mem.StoreByte(addr, v)
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr&AddressMask, v)
	cpu.mem.StoreByte(addr, v)
}

// Skip the next instruction.
func (cpu *CPU) skip() {
	cpu.Reg.PC = (cpu.Reg.PC + 2) & AddressMask
}

// Clear the display
func (cpu *CPU) cls(op Op) {
	cpu.display.clear()
}

// Return from subroutine
func (cpu *CPU) ret(op Op) {
	addr, ok := cpu.Reg.pop()
	if !ok {
		cpu.stackFaults++
		cpu.logger.Warn("Return with empty call stack", log.Hex("address", cpu.LastPC))
		return
	}
	cpu.Reg.PC = addr & AddressMask
}

// Machine code routine (ignored)
func (cpu *CPU) sys(op Op) {
}

// Jump to address
func (cpu *CPU) jp(op Op) {
	cpu.Reg.PC = op.NNN
}

// Call subroutine
func (cpu *CPU) call(op Op) {
	if !cpu.Reg.push(cpu.Reg.PC) {
		cpu.stackFaults++
		cpu.logger.Warn("Call with full call stack",
			log.Hex("address", cpu.LastPC),
			log.Hex("target", op.NNN))
		return
	}
	cpu.Reg.PC = op.NNN
}

// Skip if VX equals byte
func (cpu *CPU) seb(op Op) {
	if cpu.Reg.V[op.X] == op.NN {
		cpu.skip()
	}
}

// Skip if VX does not equal byte
func (cpu *CPU) sneb(op Op) {
	if cpu.Reg.V[op.X] != op.NN {
		cpu.skip()
	}
}

// Skip if VX equals VY
func (cpu *CPU) ser(op Op) {
	if cpu.Reg.V[op.X] == cpu.Reg.V[op.Y] {
		cpu.skip()
	}
}

// Load byte into VX
func (cpu *CPU) ldb(op Op) {
	cpu.Reg.V[op.X] = op.NN
}

// Add byte to VX, VF untouched
func (cpu *CPU) addb(op Op) {
	cpu.Reg.V[op.X] += op.NN
}

// Load VY into VX
func (cpu *CPU) ldr(op Op) {
	cpu.Reg.V[op.X] = cpu.Reg.V[op.Y]
}

// Boolean OR
func (cpu *CPU) or(op Op) {
	cpu.Reg.V[op.X] |= cpu.Reg.V[op.Y]
}

// Boolean AND
func (cpu *CPU) and(op Op) {
	cpu.Reg.V[op.X] &= cpu.Reg.V[op.Y]
}

// Boolean XOR
func (cpu *CPU) xor(op Op) {
	cpu.Reg.V[op.X] ^= cpu.Reg.V[op.Y]
}

// Add VY to VX with carry
func (cpu *CPU) addr(op Op) {
	sum := uint16(cpu.Reg.V[op.X]) + uint16(cpu.Reg.V[op.Y])
	cpu.Reg.V[op.X] = byte(sum)
	cpu.Reg.V[VF] = boolToByte(sum > 0xff)
}

// Subtract VY from VX, VF = not borrow
func (cpu *CPU) sub(op Op) {
	vx, vy := cpu.Reg.V[op.X], cpu.Reg.V[op.Y]
	cpu.Reg.V[op.X] = vx - vy
	cpu.Reg.V[VF] = boolToByte(vx >= vy)
}

// Subtract VX from VY into VX, VF = not borrow
func (cpu *CPU) subn(op Op) {
	vx, vy := cpu.Reg.V[op.X], cpu.Reg.V[op.Y]
	cpu.Reg.V[op.X] = vy - vx
	cpu.Reg.V[VF] = boolToByte(vy >= vx)
}

// Shift right (legacy): VX = VY >> 1
func (cpu *CPU) shrl(op Op) {
	flag := cpu.Reg.V[op.X] & 1
	cpu.Reg.V[op.X] = cpu.Reg.V[op.Y] >> 1
	cpu.Reg.V[VF] = flag
}

// Shift right (in place): VX >>= 1
func (cpu *CPU) shrq(op Op) {
	flag := cpu.Reg.V[op.X] & 1
	cpu.Reg.V[op.X] >>= 1
	cpu.Reg.V[VF] = flag
}

// Shift left (legacy): VX = VY << 1
func (cpu *CPU) shll(op Op) {
	flag := cpu.Reg.V[op.X] >> 7
	cpu.Reg.V[op.X] = cpu.Reg.V[op.Y] << 1
	cpu.Reg.V[VF] = flag
}

// Shift left (in place): VX <<= 1
func (cpu *CPU) shlq(op Op) {
	flag := cpu.Reg.V[op.X] >> 7
	cpu.Reg.V[op.X] <<= 1
	cpu.Reg.V[VF] = flag
}

// Skip if VX does not equal VY
func (cpu *CPU) sner(op Op) {
	if cpu.Reg.V[op.X] != cpu.Reg.V[op.Y] {
		cpu.skip()
	}
}

// Load address into I
func (cpu *CPU) ldi(op Op) {
	cpu.Reg.I = op.NNN
}

// Jump to address plus V0
func (cpu *CPU) jpv0(op Op) {
	cpu.Reg.PC = (op.NNN + uint16(cpu.Reg.V[0])) & AddressMask
}

// Random byte masked by NN
func (cpu *CPU) rnd(op Op) {
	cpu.Reg.V[op.X] = byte(cpu.rng.Uint32()) & op.NN
}

// Draw an N-row sprite from I at (VX, VY)
func (cpu *CPU) drw(op Op) {
	var buf [15]byte
	sprite := buf[:op.N]
	cpu.mem.LoadBytes(cpu.Reg.I, sprite)
	collision := cpu.display.drawSprite(cpu.Reg.V[op.X], cpu.Reg.V[op.Y], sprite)
	cpu.Reg.V[VF] = boolToByte(collision)
}

// Skip if key VX is pressed
func (cpu *CPU) skp(op Op) {
	if cpu.keys[cpu.Reg.V[op.X]&0xf] {
		cpu.skip()
	}
}

// Skip if key VX is not pressed
func (cpu *CPU) sknp(op Op) {
	if !cpu.keys[cpu.Reg.V[op.X]&0xf] {
		cpu.skip()
	}
}

// Load delay timer into VX
func (cpu *CPU) ldvdt(op Op) {
	cpu.Reg.V[op.X] = cpu.Reg.DT
}

// Wait for a key press and store it in VX. A key already held completes
// the instruction at once.
func (cpu *CPU) ldk(op Op) {
	cpu.awaiting = true
	cpu.awaitReg = op.X
	cpu.pollKeys()
}

// Load VX into delay timer
func (cpu *CPU) lddt(op Op) {
	cpu.Reg.DT = cpu.Reg.V[op.X]
}

// Load VX into sound timer
func (cpu *CPU) ldst(op Op) {
	cpu.Reg.ST = cpu.Reg.V[op.X]
}

// Add VX to I
func (cpu *CPU) addi(op Op) {
	cpu.Reg.I = (cpu.Reg.I + uint16(cpu.Reg.V[op.X])) & AddressMask
}

// Point I at the glyph for digit VX
func (cpu *CPU) ldf(op Op) {
	cpu.Reg.I = glyphAddress(cpu.Reg.V[op.X])
}

// Store BCD digits of VX at I, I+1, I+2
func (cpu *CPU) ldbcd(op Op) {
	v := cpu.Reg.V[op.X]
	cpu.storeByte(cpu, cpu.Reg.I, v/100)
	cpu.storeByte(cpu, cpu.Reg.I+1, v/10%10)
	cpu.storeByte(cpu, cpu.Reg.I+2, v%10)
}

// Store V0..VX at I, then advance I
func (cpu *CPU) stm(op Op) {
	for k := uint16(0); k <= uint16(op.X); k++ {
		cpu.storeByte(cpu, cpu.Reg.I+k, cpu.Reg.V[k])
	}
	cpu.Reg.I = (cpu.Reg.I + uint16(op.X) + 1) & AddressMask
}

// Load V0..VX from I, then advance I
func (cpu *CPU) ldm(op Op) {
	for k := uint16(0); k <= uint16(op.X); k++ {
		cpu.Reg.V[k] = cpu.mem.LoadByte(cpu.Reg.I + k)
	}
	cpu.Reg.I = (cpu.Reg.I + uint16(op.X) + 1) & AddressMask
}

// Unknown opcode (no-op)
func (cpu *CPU) unknown(op Op) {
	cpu.logger.Debug("Unknown opcode",
		log.Hex("opcode", op.Word),
		log.Hex("address", cpu.LastPC))
}
