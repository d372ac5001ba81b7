// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements a machine-code monitor for the CHIP-8
// interpreter. The monitor loads programs, runs them frame by frame, renders
// the display as text, forwards key presses and provides a debugger.
package host

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/cmd"
	"github.com/beevik/term"
	"github.com/retroenv/retrogolib/log"
	"github.com/srikur/chip8/cpu"
	"github.com/srikur/chip8/disasm"
	"github.com/srikur/chip8/loader"
)

// FramesPerSecond is the rate at which the run command executes frames.
const FramesPerSecond = 60

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displaySteps

	displayAll = displayRegisters | displaySteps
)

type state byte

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateInterrupted
)

// Config holds host options chosen on the command line.
type Config struct {
	ForceShift           bool // run every program with the ShiftInPlace quirk
	InstructionsPerFrame int  // instructions per frame, 0 for the default
}

// A Host represents a CHIP-8 machine together with a loader, a debugger
// and a line-oriented command processor.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	ctx         context.Context
	logger      *log.Logger
	loader      *loader.Loader
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	program     *loader.Program
	forceShift  bool
	lastCmd     *cmd.Selection
	state       state
	breakCh     chan struct{}
	exprParser  *exprParser
	settings    *settings
	renderer    renderer
}

// New creates a new CHIP-8 host with no program loaded.
func New(logger *log.Logger, cfg Config) *Host {
	h := &Host{
		ctx:        context.Background(),
		logger:     logger,
		loader:     loader.New(logger),
		forceShift: cfg.ForceShift,
		state:      stateProcessingCommands,
		breakCh:    make(chan struct{}, 1),
		exprParser: newExprParser(),
		settings:   newSettings(),
	}
	if cfg.InstructionsPerFrame > 0 {
		h.settings.InstructionsPerFrame = cfg.InstructionsPerFrame
	}

	// Create a CPU debugger. It stays attached to every CPU the host
	// creates, so breakpoints survive program loads.
	h.debugger = cpu.NewDebugger(newDebugHandler(h))
	h.setCPU(cpu.NewCPU(cpu.Quirks{ShiftInPlace: cfg.ForceShift}, cpu.WithLogger(logger)))

	return h
}

// Load loads the program image at path and resets the machine.
func (h *Host) Load(path string) error {
	_, err := h.load(path, nil)
	return err
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered. Processing stops at
// the end of input or on the quit command. A non-interactive session also
// stops when ctx is cancelled; an interactive one treats the cancellation
// as a Break and keeps reading commands.
func (h *Host) RunCommands(ctx context.Context, r io.Reader, w io.Writer, interactive bool) {
	h.ctx = ctx
	if interactive {
		stop := context.AfterFunc(ctx, h.Break)
		defer stop()
		h.ctx = context.Background()
	}
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive
	defer h.flush()

	if interactive {
		if f, ok := w.(*os.File); ok {
			h.checkTerminal(f)
		}
		h.println()
		h.displayPC()
	}

	for h.ctx.Err() == nil {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.interactive && h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		cm, ok := c.Command.Data.(*command)
		if !ok {
			continue
		}
		if err := cm.handler(h, c); err != nil {
			break
		}
	}
}

// Break interrupts a running CPU. It may be called from another goroutine,
// typically a signal handler.
func (h *Host) Break() {
	select {
	case h.breakCh <- struct{}{}:
	default:
	}
}

// interrupted reports whether Break was called or the host context was
// cancelled since the last check.
func (h *Host) interrupted() bool {
	select {
	case <-h.breakCh:
		return true
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}

func (h *Host) clearBreak() {
	select {
	case <-h.breakCh:
	default:
	}
}

func (h *Host) checkTerminal(f *os.File) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		h.logger.Debug("Terminal size unavailable", log.Err(err))
		return
	}
	if width < renderWidth {
		h.logger.Warn("Terminal is too narrow to show the display",
			log.Int("width", width),
			log.Int("required", renderWidth))
	}
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.print("* ")
		h.flush()
	}
}

func (h *Host) displayPC() {
	d, _ := h.disassemble(h.cpu.Reg.PC, displayAll)
	h.println(d)
}

func (h *Host) displayUsage(c cmd.Selection) {
	if cm, ok := c.Command.Data.(*command); ok && cm.Usage != "" {
		h.printf("Syntax: %s\n", cm.Usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) cmdBreakpointList(c cmd.Selection) error {
	h.println("Addr Enabled")
	h.println("---- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("$%03X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%03X.\n", b.Address)
	return nil
}

func (h *Host) cmdBreakpointRemove(c cmd.Selection) error {
	b := h.selectBreakpoint(c)
	if b == nil {
		return nil
	}

	h.debugger.RemoveBreakpoint(b.Address)
	h.printf("Breakpoint at $%03X removed.\n", b.Address)
	return nil
}

func (h *Host) cmdBreakpointEnable(c cmd.Selection) error {
	b := h.selectBreakpoint(c)
	if b == nil {
		return nil
	}

	b.Disabled = false
	h.printf("Breakpoint at $%03X enabled.\n", b.Address)
	return nil
}

func (h *Host) cmdBreakpointDisable(c cmd.Selection) error {
	b := h.selectBreakpoint(c)
	if b == nil {
		return nil
	}

	b.Disabled = true
	h.printf("Breakpoint at $%03X disabled.\n", b.Address)
	return nil
}

// selectBreakpoint returns the breakpoint named by the command's address
// argument, or nil after reporting why there is none.
func (h *Host) selectBreakpoint(c cmd.Selection) *cpu.Breakpoint {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%03X.\n", addr&cpu.AddressMask)
	}
	return b
}

func (h *Host) cmdDataBreakpointList(c cmd.Selection) error {
	h.println("Addr Enabled  Value")
	h.println("---- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("$%03X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			h.printf("$%03X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if len(c.Args) > 1 {
		value, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		b := h.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		h.printf("Conditional data breakpoint added at $%03X for value $%02X.\n", b.Address, b.Value)
	} else {
		b := h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%03X.\n", b.Address)
	}
	return nil
}

func (h *Host) cmdDataBreakpointRemove(c cmd.Selection) error {
	b := h.selectDataBreakpoint(c)
	if b == nil {
		return nil
	}

	h.debugger.RemoveDataBreakpoint(b.Address)
	h.printf("Data breakpoint at $%03X removed.\n", b.Address)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c cmd.Selection) error {
	b := h.selectDataBreakpoint(c)
	if b == nil {
		return nil
	}

	b.Disabled = false
	h.printf("Data breakpoint at $%03X enabled.\n", b.Address)
	return nil
}

func (h *Host) cmdDataBreakpointDisable(c cmd.Selection) error {
	b := h.selectDataBreakpoint(c)
	if b == nil {
		return nil
	}

	b.Disabled = true
	h.printf("Data breakpoint at $%03X disabled.\n", b.Address)
	return nil
}

func (h *Host) selectDataBreakpoint(c cmd.Selection) *cpu.DataBreakpoint {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%03X.\n", addr&cpu.AddressMask)
	}
	return b
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextDisasmAddr
		if addr == 0 {
			addr = h.cpu.Reg.PC
		}

	case ".":
		addr = h.cpu.Reg.PC

	default:
		a, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a & cpu.AddressMask
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for range lines {
		d, next := h.disassemble(addr, 0)
		h.println(d)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.Args = []string{"$", strconv.Itoa(lines)}
	return nil
}

func (h *Host) cmdDisplay(c cmd.Selection) error {
	h.render(true)
	return nil
}

func (h *Host) cmdEval(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	expr := strings.Join(c.Args, " ")
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("$%04X (%d)\n", uint16(v), v)
	return nil
}

func (h *Host) cmdFrame(c cmd.Selection) error {
	count := 1
	if len(c.Args) > 0 {
		n, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = int(n)
	}
	if count < 1 {
		return nil
	}

	frames := h.runFrames(count, false)
	h.printf("Ran %d frame(s).\n", frames)
	return nil
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.displayCommands()
		return nil
	}

	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	if err == nil && s.Command != nil {
		if cm, ok := s.Command.Data.(*command); ok {
			h.displayHelp(cm)
			return nil
		}
	}

	// A bare group name lists the group's commands.
	if len(c.Args) == 1 {
		if g, err := groupTree.FindValue(strings.ToLower(c.Args[0])); err == nil {
			h.displayGroup(g)
			return nil
		}
	}

	h.println("Command not found.")
	return nil
}

func (h *Host) displayHelp(c *command) {
	if c.Usage != "" {
		h.printf("Syntax: %s\n\n", c.Usage)
	}
	switch {
	case c.Description != "":
		h.printf("Description:\n%s\n\n", indentWrap(3, c.Description))
	case c.Brief != "":
		h.printf("Description:\n%s.\n\n", indentWrap(3, c.Brief))
	}
}

func (h *Host) displayCommands() {
	type entry struct{ name, brief string }

	var entries []entry
	for _, c := range topCommands {
		entries = append(entries, entry{c.Name, c.Brief})
	}
	for _, g := range groups {
		entries = append(entries, entry{g.Name, g.Brief})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.name, b.name)
	})

	h.println("Commands:")
	for _, e := range entries {
		h.printf("    %-15s  %s\n", e.name, e.brief)
	}
}

func (h *Host) displayGroup(g *commandGroup) {
	h.printf("%s:\n", g.Brief)
	for _, c := range g.commands {
		h.printf("    %-15s  %s\n", c.Name, c.Brief)
	}
}

func (h *Host) cmdKeyPress(c cmd.Selection) error {
	return h.setKey(c, true)
}

func (h *Host) cmdKeyRelease(c cmd.Selection) error {
	return h.setKey(c, false)
}

func (h *Host) setKey(c cmd.Selection, pressed bool) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	for _, arg := range c.Args {
		key, err := h.parseKey(arg)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetKey(key, pressed)
		if pressed {
			h.printf("Key %X pressed.\n", key)
		} else {
			h.printf("Key %X released.\n", key)
		}
	}
	return nil
}

// parseKey converts a key argument to a keypad index. A single character
// is looked up on the keyboard layout; anything else is an expression.
func (h *Host) parseKey(s string) (byte, error) {
	if r := []rune(strings.ToLower(s)); len(r) == 1 {
		if key, ok := keyboard[r[0]]; ok {
			return key, nil
		}
	}

	v, err := h.parseExpr(s)
	if err != nil {
		return 0, err
	}
	if v >= cpu.KeyCount {
		return 0, fmt.Errorf("key '%s' out of range", s)
	}
	return byte(v), nil
}

func (h *Host) cmdKeyList(c cmd.Selection) error {
	var pressed []string
	for k := range byte(cpu.KeyCount) {
		if h.cpu.Key(k) {
			pressed = append(pressed, fmt.Sprintf("%X", k))
		}
	}

	if len(pressed) == 0 {
		h.println("No keys pressed.")
	} else {
		h.printf("Pressed: %s\n", strings.Join(pressed, " "))
	}

	if reg, ok := h.cpu.AwaitingKey(); ok {
		h.printf("Waiting for a key to store in V%X.\n", reg)
	}
	return nil
}

func (h *Host) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	var shift *bool
	if len(c.Args) > 1 {
		v, err := stringToBool(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		shift = &v
	}

	p, err := h.load(c.Args[0], shift)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(c.Args[0]), err)
		return nil
	}

	h.printf("Loaded '%s' to $%03X..$%03X (shift in place: %v).\n",
		p.Name, cpu.ProgramStart, cpu.ProgramStart+len(p.Data)-1,
		h.cpu.Quirks().ShiftInPlace)
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextMemDumpAddr

	case ".":
		addr = h.cpu.Reg.PC

	default:
		a, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a & cpu.AddressMask
	}

	bytes := h.settings.MemDumpBytes
	if len(c.Args) >= 2 {
		b, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bytes = int(b)
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = uint16(int(addr)+bytes) & cpu.AddressMask
	h.lastCmd.Args = []string{"$", strconv.Itoa(bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.Args)-1)
	for _, arg := range c.Args[1:] {
		v, err := h.parseExpr(arg)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		b = append(b, byte(v))
	}

	h.cpu.Memory().StoreBytes(addr, b)
	h.dumpMemory(addr&cpu.AddressMask, len(b))
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errors.New("exiting program")
}

func (h *Host) cmdRegister(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.displayPC()
		return nil
	case 1:
		h.displayUsage(c)
		return nil
	}

	key := strings.ToLower(c.Args[0])
	v, err := h.parseExpr(strings.Join(c.Args[1:], " "))
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	r := &h.cpu.Reg
	switch key {
	case "i":
		r.I = v & cpu.AddressMask
		h.printf("Register I set to $%03X.\n", r.I)
	case ".", "pc":
		r.PC = v & cpu.AddressMask
		h.printf("Register PC set to $%03X.\n", r.PC)
		h.settings.NextDisasmAddr = r.PC
	case "sp":
		if v > cpu.StackDepth {
			h.printf("Register SP must be between 0 and %d.\n", cpu.StackDepth)
			return nil
		}
		r.SP = byte(v)
		h.printf("Register SP set to %d.\n", r.SP)
	case "dt":
		r.DT = byte(v)
		h.printf("Register DT set to $%02X.\n", r.DT)
	case "st":
		r.ST = byte(v)
		h.printf("Register ST set to $%02X.\n", r.ST)
	default:
		n, ok := vRegister(key)
		if !ok {
			h.printf("Register '%s' not found.\n", c.Args[0])
			return nil
		}
		r.V[n] = byte(v)
		h.printf("Register V%X set to $%02X.\n", n, r.V[n])
	}
	return nil
}

// vRegister parses a general purpose register name such as "va".
func vRegister(s string) (int, bool) {
	if len(s) != 2 || s[0] != 'v' {
		return 0, false
	}
	n, err := strconv.ParseUint(s[1:], 16, 8)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func (h *Host) cmdReset(c cmd.Selection) error {
	h.cpu.Reset()
	h.renderer.reset()
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	h.settings.NextMemDumpAddr = h.cpu.Reg.PC

	if h.program != nil {
		h.printf("Machine reset. Reloaded '%s'.\n", h.program.Name)
	} else {
		h.println("Machine reset.")
	}
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c cmd.Selection) error {
	count := 0
	if len(c.Args) > 0 {
		n, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = int(n)
	}

	h.printf("Running from $%03X. Press ctrl-C to break.\n", h.cpu.Reg.PC)
	frames := h.runFrames(count, true)
	h.printf("Ran %d frame(s).\n", frames)
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage(c)

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			v, err = h.exprParser.Parse(value, h)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}

		h.onSettingsUpdate()
	}

	return nil
}

func (h *Host) cmdStep(c cmd.Selection) error {
	// Parse the number of steps.
	count := 1
	if len(c.Args) > 0 {
		n, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = int(n)
	}

	// Step the CPU count times.
	h.clearBreak()
	h.state = stateRunning
	for i := count - 1; i >= 0 && h.state == stateRunning; i-- {
		h.cpu.Step()
		if h.state != stateRunning {
			break
		}
		switch {
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines:
			h.displayPC()
		}
		if h.interrupted() {
			h.state = stateInterrupted
		}
	}
	h.state = stateProcessingCommands

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

func (h *Host) load(path string, shift *bool) (*loader.Program, error) {
	p, err := h.loader.Load(path)
	if err != nil {
		return nil, err
	}

	quirks := p.Quirks
	switch {
	case shift != nil:
		quirks.ShiftInPlace = *shift
	case h.forceShift:
		quirks.ShiftInPlace = true
	}

	// Quirks are fixed per CPU, so every load creates a new one.
	c := cpu.NewCPU(quirks, cpu.WithLogger(h.logger))
	if err := c.Load(p.Data); err != nil {
		return nil, err
	}

	h.setCPU(c)
	h.program = p

	h.logger.Debug("Program started",
		log.String("name", p.Name),
		log.Hex("hash", p.Hash),
		log.String("shiftInPlace", strconv.FormatBool(quirks.ShiftInPlace)))
	return p, nil
}

func (h *Host) setCPU(c *cpu.CPU) {
	c.AttachDebugger(h.debugger)
	h.cpu = c
	h.renderer.reset()
	h.settings.NextDisasmAddr = c.Reg.PC
	h.settings.NextMemDumpAddr = c.Reg.PC
}

// runFrames runs up to count frames, or until interrupted when count is 0.
// A breakpoint, Break or context cancellation stops the run early. Paced
// runs execute FramesPerSecond frames per second. It returns the number of
// frames that were run.
func (h *Host) runFrames(count int, paced bool) int {
	var tick <-chan time.Time
	if paced {
		ticker := time.NewTicker(time.Second / FramesPerSecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	faults := h.cpu.StackFaults()

	h.clearBreak()
	h.state = stateRunning

	frames := 0
	for count == 0 || frames < count {
		if paced && frames > 0 {
			select {
			case <-tick:
			case <-h.breakCh:
				h.state = stateInterrupted
			case <-h.ctx.Done():
				h.state = stateInterrupted
			}
		} else if h.interrupted() {
			h.state = stateInterrupted
		}
		if h.state != stateRunning {
			break
		}

		h.cpu.RunFrame(h.settings.InstructionsPerFrame)
		frames++

		if h.state != stateRunning {
			break
		}
	}

	if h.state == stateInterrupted {
		h.printf("Interrupted at $%03X.\n", h.cpu.Reg.PC)
	}
	h.state = stateProcessingCommands

	if n := h.cpu.StackFaults() - faults; n > 0 {
		h.printf("Warning: %d stack fault(s) ignored.\n", n)
	}

	if h.settings.AutoDisplay {
		h.render(false)
	}

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return frames
}

// render draws the display if it changed since it was last drawn, or
// unconditionally if force is set.
func (h *Host) render(force bool) {
	d := h.cpu.Display()
	if !force && !d.Changed() {
		return
	}

	if _, err := h.renderer.render(h.output, d, force); err != nil {
		h.logger.Error("Rendering display failed", log.Err(err))
	}
	h.flush()
	d.ClearChanged()
}

func (h *Host) onSettingsUpdate() {
	h.exprParser.hexMode = h.settings.HexMode
}

func (h *Host) parseExpr(expr string) (uint16, error) {
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		v = 0x10000 + v
	}
	return uint16(v), nil
}

func (h *Host) disassemble(addr uint16, flags displayFlags) (str string, next uint16) {
	mem := h.cpu.Memory()

	var line string
	line, next = disasm.Disassemble(mem, addr)

	b := make([]byte, 2)
	mem.LoadBytes(addr, b)

	str = fmt.Sprintf("%03X-   %-5s    %-15s", addr&cpu.AddressMask, codeString(b), line)

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.GetRegisterString(&h.cpu.Reg)
	}

	if (flags & displaySteps) != 0 {
		str += fmt.Sprintf(" S=%d", h.cpu.Steps)
	}

	return str, next
}

func (h *Host) dumpMemory(addr0 uint16, bytes int) {
	if bytes <= 0 {
		return
	}

	addr1 := int(addr0) + bytes - 1
	if addr1 > cpu.AddressMask {
		addr1 = cpu.AddressMask
	}

	buf := []byte("   -" + strings.Repeat(" ", 35))
	mem := h.cpu.Memory()

	// Don't align display for short dumps.
	if addr1-int(addr0) < 8 {
		addrToBuf(addr0, buf[0:3])
		for a, c1, c2 := int(addr0), 5, 31; a <= addr1; a, c1, c2 = a+1, c1+3, c2+1 {
			m := mem.LoadByte(uint16(a))
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(strings.TrimRight(string(buf), " "))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := int(addr0) &^ 7
	stop := (addr1 + 8) &^ 7

	for r := start; r < stop; r += 8 {
		addrToBuf(uint16(r), buf[0:3])
		for a, c1, c2 := r, 5, 31; c1 < 28; a, c1, c2 = a+1, c1+3, c2+1 {
			if a >= int(addr0) && a <= addr1 {
				m := mem.LoadByte(uint16(a))
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(strings.TrimRight(string(buf), " "))
	}
}

func (h *Host) resolveIdentifier(s string) (int64, error) {
	s = strings.ToLower(s)

	r := &h.cpu.Reg
	switch s {
	case "i":
		return int64(r.I), nil
	case ".", "pc":
		return int64(r.PC), nil
	case "sp":
		return int64(r.SP), nil
	case "dt":
		return int64(r.DT), nil
	case "st":
		return int64(r.ST), nil
	}

	if n, ok := vRegister(s); ok {
		return int64(r.V[n]), nil
	}

	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func (h *Host) onBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.state = stateBreakpoint
	c.Halt()

	h.printf("Breakpoint hit at $%03X.\n", b.Address)
	h.displayPC()
}

func (h *Host) onDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.state = stateBreakpoint
	c.Halt()

	h.printf("Data breakpoint hit on address $%03X.\n", b.Address)
	if c.LastPC != c.Reg.PC {
		d, _ := h.disassemble(c.LastPC, displayAll)
		h.println(d)
	}
}
