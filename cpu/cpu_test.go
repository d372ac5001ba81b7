package cpu_test

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/log"
	"github.com/srikur/chip8/cpu"
)

// loadCPU creates a CPU and loads a program written as space-separated
// hexadecimal opcode words.
func loadCPU(t *testing.T, quirks cpu.Quirks, program string) *cpu.CPU {
	t.Helper()

	var b []byte
	for _, f := range strings.Fields(program) {
		w, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			t.Fatalf("bad opcode %q: %v", f, err)
		}
		b = append(b, byte(w>>8), byte(w))
	}

	c := cpu.NewCPU(quirks,
		cpu.WithLogger(log.NewTestLogger(t)),
		cpu.WithRandSource(rand.NewPCG(1, 2)))
	if err := c.Load(b); err != nil {
		t.Fatal(err)
	}
	return c
}

func stepCPU(c *cpu.CPU, steps int) {
	for i := 0; i < steps; i++ {
		c.Step()
	}
}

func runCPU(t *testing.T, program string, steps int) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, cpu.Quirks{}, program)
	stepCPU(c, steps)
	return c
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if c.Reg.PC != pc {
		t.Errorf("PC incorrect. exp: $%03X, got: $%03X", pc, c.Reg.PC)
	}
}

func expectReg(t *testing.T, c *cpu.CPU, r int, v byte) {
	t.Helper()
	if c.Reg.V[r] != v {
		t.Errorf("V%X incorrect. exp: $%02X, got: $%02X", r, v, c.Reg.V[r])
	}
}

func expectI(t *testing.T, c *cpu.CPU, i uint16) {
	t.Helper()
	if c.Reg.I != i {
		t.Errorf("I incorrect. exp: $%03X, got: $%03X", i, c.Reg.I)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp byte) {
	t.Helper()
	if c.Reg.SP != sp {
		t.Errorf("stack pointer incorrect. exp: %d, got %d", sp, c.Reg.SP)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Memory().LoadByte(addr)
	if got != v {
		t.Errorf("Memory at $%03X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func expectPixel(t *testing.T, c *cpu.CPU, x, y int, on bool) {
	t.Helper()
	if c.Display().Pixel(x, y) != on {
		t.Errorf("Pixel (%d,%d) incorrect. exp: %v, got: %v", x, y, on, !on)
	}
}

func litPixels(c *cpu.CPU) int {
	n := 0
	for _, p := range c.Display().Bytes() {
		n += int(p)
	}
	return n
}

func TestLoadInitializesMachine(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "1200")

	expectPC(t, c, cpu.ProgramStart)
	expectSP(t, c, 0)
	expectI(t, c, 0)
	expectMem(t, c, 0x200, 0x12)
	expectMem(t, c, 0x201, 0x00)

	// Glyph for "0" at the start of memory, "F" at the end of the font.
	expectMem(t, c, 0x000, 0xf0)
	expectMem(t, c, 0x004, 0xf0)
	expectMem(t, c, 0x04b, 0xf0)
	expectMem(t, c, 0x04f, 0x80)

	if !c.Display().Changed() {
		t.Error("display not flagged as changed after load")
	}
	if litPixels(c) != 0 {
		t.Error("display not cleared after load")
	}
}

func TestLoadTooLarge(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "6042")
	c.Step()

	err := c.Load(make([]byte, cpu.MaxProgramSize+1))
	if err == nil {
		t.Fatal("expected error loading oversized program")
	}

	var loadErr *cpu.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if !errors.Is(err, cpu.ErrProgramTooLarge) {
		t.Errorf("expected ErrProgramTooLarge, got %v", err)
	}
	if loadErr.Size != cpu.MaxProgramSize+1 {
		t.Errorf("size incorrect. exp: %d, got: %d", cpu.MaxProgramSize+1, loadErr.Size)
	}

	// The previous state must survive a failed load.
	expectPC(t, c, 0x202)
	expectReg(t, c, 0, 0x42)
	expectMem(t, c, 0x200, 0x60)

	if err := c.Load(make([]byte, cpu.MaxProgramSize)); err != nil {
		t.Errorf("program of maximum size rejected: %v", err)
	}
}

func TestAddCarry(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "8014")
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			c.Reg.PC = cpu.ProgramStart
			c.Reg.V[0], c.Reg.V[1] = byte(a), byte(b)
			c.Step()

			sum := a + b
			if c.Reg.V[0] != byte(sum) || c.Reg.V[0xf] != boolToByte(sum > 255) {
				t.Fatalf("ADD %d+%d: got V0=%d VF=%d", a, b, c.Reg.V[0], c.Reg.V[0xf])
			}
		}
	}
}

func TestSubBorrow(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "8015")
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			c.Reg.PC = cpu.ProgramStart
			c.Reg.V[0], c.Reg.V[1] = byte(a), byte(b)
			c.Step()

			if c.Reg.V[0] != byte(a-b) || c.Reg.V[0xf] != boolToByte(a >= b) {
				t.Fatalf("SUB %d-%d: got V0=%d VF=%d", a, b, c.Reg.V[0], c.Reg.V[0xf])
			}
		}
	}
}

func TestSubN(t *testing.T) {
	c := runCPU(t, "6005 6107 8017", 3)
	expectReg(t, c, 0, 2)
	expectReg(t, c, 0xf, 1)

	c = runCPU(t, "6007 6105 8017", 3)
	expectReg(t, c, 0, 0xfe)
	expectReg(t, c, 0xf, 0)
}

func TestFlagWrittenLast(t *testing.T) {
	// ADD VF, VE: the carry wins over the sum.
	c := runCPU(t, "6FFF 6E01 8FE4", 3)
	expectReg(t, c, 0xf, 1)

	// SUB VF, VE with no borrow.
	c = runCPU(t, "6F17 6E05 8FE5", 3)
	expectReg(t, c, 0xf, 1)

	// SUB VF, VE with a borrow.
	c = runCPU(t, "6F05 6E17 8FE5", 3)
	expectReg(t, c, 0xf, 0)

	// SUBN VF, VE with no borrow.
	c = runCPU(t, "6F05 6E07 8FE7", 3)
	expectReg(t, c, 0xf, 1)

	// SHR VF with the low bit clear.
	c = runCPU(t, "6F02 8FF6", 2)
	expectReg(t, c, 0xf, 0)

	// SHL VF with the high bit set, in both variants.
	c = runCPU(t, "6F81 8FFE", 2)
	expectReg(t, c, 0xf, 1)

	c = loadCPU(t, cpu.Quirks{ShiftInPlace: true}, "6F81 8FFE")
	stepCPU(c, 2)
	expectReg(t, c, 0xf, 1)
}

func TestAddImmediateKeepsFlag(t *testing.T) {
	c := runCPU(t, "6FAA 60FF 7002", 3)
	expectReg(t, c, 0, 0x01)
	expectReg(t, c, 0xf, 0xaa)
}

func TestLogic(t *testing.T) {
	c := runCPU(t, "60F0 613C 8011", 3)
	expectReg(t, c, 0, 0xfc)

	c = runCPU(t, "60F0 613C 8012", 3)
	expectReg(t, c, 0, 0x30)

	c = runCPU(t, "60F0 613C 8013", 3)
	expectReg(t, c, 0, 0xcc)

	c = runCPU(t, "6033 8100", 2)
	expectReg(t, c, 1, 0x33)
}

func TestShiftLegacy(t *testing.T) {
	// SHR V0, V1: result from V1, flag from V0.
	c := runCPU(t, "6001 6104 8016", 3)
	expectReg(t, c, 0, 0x02)
	expectReg(t, c, 0xf, 1)

	// SHL V0, V1: result from V1, flag from V0.
	c = runCPU(t, "6080 6101 801E", 3)
	expectReg(t, c, 0, 0x02)
	expectReg(t, c, 0xf, 1)
}

func TestShiftInPlace(t *testing.T) {
	quirks := cpu.Quirks{ShiftInPlace: true}

	c := loadCPU(t, quirks, "6003 6140 8016")
	stepCPU(c, 3)
	expectReg(t, c, 0, 0x01)
	expectReg(t, c, 1, 0x40)
	expectReg(t, c, 0xf, 1)

	c = loadCPU(t, quirks, "6081 6110 801E")
	stepCPU(c, 3)
	expectReg(t, c, 0, 0x02)
	expectReg(t, c, 0xf, 1)

	if !c.Quirks().ShiftInPlace {
		t.Error("quirks not retained")
	}
}

func TestSkips(t *testing.T) {
	tests := []struct {
		program string
		steps   int
		pc      uint16
	}{
		{"6005 3005", 2, 0x206},
		{"6005 3006", 2, 0x204},
		{"6005 4006", 2, 0x206},
		{"6005 4005", 2, 0x204},
		{"6005 6105 5010", 3, 0x208},
		{"6005 6106 5010", 3, 0x206},
		{"6005 6106 9010", 3, 0x208},
		{"6005 6105 9010", 3, 0x206},
	}

	for _, tt := range tests {
		c := runCPU(t, tt.program, tt.steps)
		if c.Reg.PC != tt.pc {
			t.Errorf("%s: PC incorrect. exp: $%03X, got: $%03X", tt.program, tt.pc, c.Reg.PC)
		}
	}
}

func TestJumps(t *testing.T) {
	c := runCPU(t, "1300", 1)
	expectPC(t, c, 0x300)

	c = runCPU(t, "6004 B300", 2)
	expectPC(t, c, 0x304)

	c = runCPU(t, "60FF BFFF", 2)
	expectPC(t, c, 0x0fe)
}

func TestCallReturn(t *testing.T) {
	// 0x200: CALL $206; 0x202: LD V1,1; 0x204: JP $204; 0x206: LD V0,7; 0x208: RET
	c := runCPU(t, "2206 6101 1204 6007 00EE", 2)
	expectPC(t, c, 0x208)
	expectSP(t, c, 1)
	expectReg(t, c, 0, 7)

	stepCPU(c, 2)
	expectPC(t, c, 0x204)
	expectSP(t, c, 0)
	expectReg(t, c, 1, 1)
}

func TestStackOverflowClamps(t *testing.T) {
	// Each CALL targets the instruction after it, so the stack keeps
	// growing.
	var words []string
	for i := 0; i <= cpu.StackDepth; i++ {
		words = append(words, strconv.FormatUint(uint64(0x2000|(0x202+2*i)), 16))
	}
	c := runCPU(t, strings.Join(words, " "), cpu.StackDepth)
	expectSP(t, c, cpu.StackDepth)
	expectPC(t, c, 0x200+2*cpu.StackDepth)

	c.Step()
	expectSP(t, c, cpu.StackDepth)
	expectPC(t, c, 0x202+2*cpu.StackDepth)
	if c.StackFaults() != 1 {
		t.Errorf("stack faults incorrect. exp: 1, got: %d", c.StackFaults())
	}
}

func TestStackUnderflowClamps(t *testing.T) {
	c := runCPU(t, "00EE 6001", 2)
	expectPC(t, c, 0x204)
	expectSP(t, c, 0)
	expectReg(t, c, 0, 1)
	if c.StackFaults() != 1 {
		t.Errorf("stack faults incorrect. exp: 1, got: %d", c.StackFaults())
	}

	c.Reset()
	if c.StackFaults() != 0 {
		t.Error("stack faults not cleared by reset")
	}
}

func TestDrawTwiceRestores(t *testing.T) {
	// I = glyph "8", draw at (10,10) twice.
	c := runCPU(t, "6008 F029 610A D115", 4)
	expectReg(t, c, 0xf, 0)
	lit := litPixels(c)
	if lit == 0 {
		t.Fatal("no pixels drawn")
	}
	expectPixel(t, c, 10, 10, true)

	c.Display().ClearChanged()
	c.Reg.PC = 0x206
	c.Step()
	expectReg(t, c, 0xf, 1)
	if litPixels(c) != 0 {
		t.Errorf("second draw left %d pixels lit", litPixels(c))
	}
	if !c.Display().Changed() {
		t.Error("display not flagged as changed after draw")
	}
}

func TestDrawWraps(t *testing.T) {
	// Glyph "0" row 0 is 0xF0. Draw one row at (63,31).
	c := runCPU(t, "A000 603F 611F D011", 4)
	expectPixel(t, c, 63, 31, true)
	expectPixel(t, c, 0, 31, true)
	expectPixel(t, c, 1, 31, true)
	expectPixel(t, c, 2, 31, true)
	expectPixel(t, c, 3, 31, false)
	if litPixels(c) != 4 {
		t.Errorf("lit pixel count incorrect. exp: 4, got: %d", litPixels(c))
	}

	// Two rows starting at the last line wrap to the top.
	c = runCPU(t, "A000 6000 611F D012", 4)
	expectPixel(t, c, 0, 31, true)
	expectPixel(t, c, 0, 0, true)
}

func TestClearScreenAndSelfJump(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "A000 D005 00E0 1206")
	c.Display().ClearChanged()

	steps := c.RunFrame(10)
	if steps != 10 {
		t.Errorf("steps incorrect. exp: 10, got: %d", steps)
	}
	expectPC(t, c, 0x206)
	if litPixels(c) != 0 {
		t.Error("display not cleared")
	}
	if !c.Display().Changed() {
		t.Error("display not flagged as changed")
	}
}

func TestBCD(t *testing.T) {
	c := runCPU(t, "609D A300 F033", 3)
	expectMem(t, c, 0x300, 1)
	expectMem(t, c, 0x301, 5)
	expectMem(t, c, 0x302, 7)
	expectI(t, c, 0x300)
}

func TestStoreLoadRegisters(t *testing.T) {
	c := runCPU(t, "6011 6122 6233 6344 6455 6566 6677 A300 F555", 9)
	for k := uint16(0); k < 6; k++ {
		expectMem(t, c, 0x300+k, byte(0x11*(k+1)))
	}
	expectMem(t, c, 0x306, 0)
	expectI(t, c, 0x306)

	for r := 0; r < 6; r++ {
		c.Reg.V[r] = 0
	}
	c.Reg.I = 0x300
	c.Memory().StoreBytes(0x200, []byte{0xf5, 0x65})
	c.Reg.PC = 0x200
	c.Step()
	for r := 0; r < 6; r++ {
		expectReg(t, c, r, byte(0x11*(r+1)))
	}
	expectReg(t, c, 6, 0x77)
	expectI(t, c, 0x306)
}

func TestIndexWraps(t *testing.T) {
	c := runCPU(t, "AFFF 6002 F01E", 3)
	expectI(t, c, 0x001)
}

func TestGlyphAddress(t *testing.T) {
	c := runCPU(t, "601A F029", 2)
	expectI(t, c, 0x0a*cpu.GlyphSize)
}

func TestTimers(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "6005 F015 F018 F207 1208")
	c.RunFrame(4)
	if c.Reg.DT != 4 || c.Reg.ST != 4 {
		t.Errorf("timers incorrect. exp: 4/4, got: %d/%d", c.Reg.DT, c.Reg.ST)
	}
	expectReg(t, c, 2, 5)

	for i := 0; i < 10; i++ {
		c.RunFrame(1)
	}
	if c.Reg.DT != 0 || c.Reg.ST != 0 {
		t.Errorf("timers incorrect. exp: 0/0, got: %d/%d", c.Reg.DT, c.Reg.ST)
	}
}

func TestTimersNotTickedByStep(t *testing.T) {
	c := runCPU(t, "6005 F015 1204", 10)
	if c.Reg.DT != 5 {
		t.Errorf("DT incorrect. exp: 5, got: %d", c.Reg.DT)
	}
}

func TestKeySkips(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "6007 E09E 1300 E0A1")
	c.SetKey(7, true)
	stepCPU(c, 2)
	expectPC(t, c, 0x206)
	c.Step()
	expectPC(t, c, 0x208)

	c = loadCPU(t, cpu.Quirks{}, "6017 E0A1")
	stepCPU(c, 2)
	expectPC(t, c, 0x206)
}

func TestAwaitKey(t *testing.T) {
	c := runCPU(t, "F30A 6001", 1)
	reg, ok := c.AwaitingKey()
	if !ok || reg != 3 {
		t.Fatalf("awaiting key incorrect. exp: V3, got: V%X (%v)", reg, ok)
	}

	stepCPU(c, 5)
	expectPC(t, c, 0x202)
	if _, ok := c.AwaitingKey(); !ok {
		t.Fatal("stopped awaiting key with no key pressed")
	}

	c.SetKey(9, true)
	c.SetKey(5, true)
	c.Step()
	expectReg(t, c, 3, 5)
	expectPC(t, c, 0x202)
	if _, ok := c.AwaitingKey(); ok {
		t.Fatal("still awaiting key after key press")
	}

	c.Step()
	expectReg(t, c, 0, 1)
}

func TestAwaitKeyAlreadyPressed(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "F30A 6001")
	c.SetKey(7, true)
	if n := c.RunFrame(1); n != 1 {
		t.Errorf("steps incorrect. exp: 1, got: %d", n)
	}
	expectReg(t, c, 3, 7)
	expectPC(t, c, 0x202)
	if _, ok := c.AwaitingKey(); ok {
		t.Fatal("awaiting key while a key is held")
	}

	c.RunFrame(1)
	expectReg(t, c, 0, 1)
}

func TestAwaitKeyCountsAsFrameStep(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "F00A")
	if n := c.RunFrame(8); n != 8 {
		t.Errorf("steps incorrect. exp: 8, got: %d", n)
	}
	expectPC(t, c, 0x202)
}

func TestRandom(t *testing.T) {
	a := runCPU(t, "C00F C1FF C200", 3)
	b := runCPU(t, "C00F C1FF C200", 3)

	if a.Reg.V[0] > 0x0f {
		t.Errorf("RND not masked: $%02X", a.Reg.V[0])
	}
	expectReg(t, a, 2, 0)
	if a.Reg.V[0] != b.Reg.V[0] || a.Reg.V[1] != b.Reg.V[1] {
		t.Error("RND not deterministic with a fixed source")
	}
}

func TestUnknownOpcodes(t *testing.T) {
	for _, w := range []uint16{0x5001, 0x800f, 0x9001, 0xe000, 0xf0ff} {
		op := cpu.Decode(w)
		if !op.Inst.Unknown() {
			t.Errorf("$%04X decoded as %s", w, op.Inst.Name)
		}
	}

	c := runCPU(t, "5001 F0FF 6001", 3)
	expectPC(t, c, 0x206)
	expectReg(t, c, 0, 1)
}

func TestDecodeFields(t *testing.T) {
	op := cpu.Decode(0xd12f)
	if op.Inst.Name != "DRW" || op.X != 1 || op.Y != 2 || op.N != 0xf {
		t.Errorf("decode incorrect: %+v", op)
	}

	op = cpu.Decode(0xa123)
	if op.Inst.Name != "LD" || op.NNN != 0x123 || op.NN != 0x23 {
		t.Errorf("decode incorrect: %+v", op)
	}

	op = cpu.Decode(0x00e0)
	if op.Inst.Name != "CLS" {
		t.Errorf("decode incorrect: %+v", op)
	}

	op = cpu.Decode(0x0123)
	if op.Inst.Name != "SYS" {
		t.Errorf("decode incorrect: %+v", op)
	}
}

func TestInstructionVariants(t *testing.T) {
	set := cpu.GetInstructionSet(cpu.Quirks{})
	if n := len(set.GetInstructions("ld")); n != 11 {
		t.Errorf("LD variants incorrect. exp: 11, got: %d", n)
	}
	if set != cpu.GetInstructionSet(cpu.Quirks{}) {
		t.Error("instruction set not cached")
	}
	if set == cpu.GetInstructionSet(cpu.Quirks{ShiftInPlace: true}) {
		t.Error("quirk instruction set shared with legacy set")
	}
}

func TestMemoryWraps(t *testing.T) {
	var m cpu.Memory
	m.StoreBytes(0xfff, []byte{1, 2})
	if m.LoadByte(0xfff) != 1 || m.LoadByte(0x000) != 2 {
		t.Error("store did not wrap")
	}
	if m.LoadWord(0xfff) != 0x0102 {
		t.Errorf("word incorrect. exp: $0102, got: $%04X", m.LoadWord(0xfff))
	}
	if m.LoadByte(0x1fff) != 1 {
		t.Error("address not masked")
	}
}

type haltHandler struct {
	breakpoints     int
	dataBreakpoints int
}

func (h *haltHandler) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.breakpoints++
	c.Halt()
}

func (h *haltHandler) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.dataBreakpoints++
	c.Halt()
}

func TestBreakpoint(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "6001 6002 6003 1206")
	c.Reg.DT = 3

	h := &haltHandler{}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)
	d.AddBreakpoint(0x204)

	n := c.RunFrame(10)
	if n != 2 {
		t.Errorf("steps incorrect. exp: 2, got: %d", n)
	}
	if !c.Halted() || h.breakpoints != 1 {
		t.Error("breakpoint not hit")
	}
	expectPC(t, c, 0x204)
	expectReg(t, c, 0, 2)
	if c.Reg.DT != 3 {
		t.Errorf("DT ticked by a halted frame. exp: 3, got: %d", c.Reg.DT)
	}

	d.GetBreakpoint(0x204).Disabled = true
	c.Reg.PC = 0x200
	if n := c.RunFrame(10); n != 10 {
		t.Errorf("steps incorrect. exp: 10, got: %d", n)
	}
	if c.Reg.DT != 2 {
		t.Errorf("DT incorrect. exp: 2, got: %d", c.Reg.DT)
	}

	d.RemoveBreakpoint(0x204)
	if len(d.GetBreakpoints()) != 0 {
		t.Error("breakpoint not removed")
	}
}

func TestDataBreakpoint(t *testing.T) {
	c := loadCPU(t, cpu.Quirks{}, "A300 6007 6108 F155 1208")
	h := &haltHandler{}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)
	d.AddConditionalDataBreakpoint(0x300, 0x09)
	d.AddDataBreakpoint(0x301)

	c.RunFrame(10)
	if h.dataBreakpoints != 1 {
		t.Errorf("data breakpoint hits incorrect. exp: 1, got: %d", h.dataBreakpoints)
	}
	expectMem(t, c, 0x300, 7)
	expectMem(t, c, 0x301, 8)

	bps := d.GetDataBreakpoints()
	if len(bps) != 2 || bps[0].Address != 0x300 || bps[1].Address != 0x301 {
		t.Errorf("data breakpoints incorrect: %v", bps)
	}

	c.DetachDebugger()
	c.Reg.PC = 0x206
	c.RunFrame(1)
	if h.dataBreakpoints != 1 {
		t.Error("detached debugger still notified")
	}
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
