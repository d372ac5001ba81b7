// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"
)

type handlerFunc func(h *Host, c cmd.Selection) error

// A command is stored as the Data of every command added to the tree, so
// the help command can find its text from a selection.
type command struct {
	cmd.CommandDescriptor
	handler handlerFunc
}

// A commandGroup is a subtree of related commands.
type commandGroup struct {
	cmd.TreeDescriptor
	commands []*command
}

var (
	cmds        *cmd.Tree
	groupTree   = prefixtree.New[*commandGroup]()
	topCommands []*command
	groups      []*commandGroup
)

func init() {
	topCommands = []*command{
		{cmd.CommandDescriptor{
			Name:        "help",
			Brief:       "Display help",
			Description: "Display help for a command or group of commands.",
			Usage:       "help [<command>]",
		}, (*Host).cmdHelp},
		{cmd.CommandDescriptor{
			Name:  "load",
			Brief: "Load a program",
			Description: "Load a CHIP-8 program image and reset the machine." +
				" Images inside .zip, .gz and .7z archives are unpacked. The" +
				" shift quirk is chosen from the program's identity unless" +
				" it is given as a second parameter.",
			Usage: "load <filename> [<shift>]",
		}, (*Host).cmdLoad},
		{cmd.CommandDescriptor{
			Name:        "reset",
			Brief:       "Reset the machine",
			Description: "Reset the machine and reload the current program.",
			Usage:       "reset",
		}, (*Host).cmdReset},
		{cmd.CommandDescriptor{
			Name:  "run",
			Brief: "Run the program",
			Description: "Run frames at 60 per second until a breakpoint is" +
				" hit, the user types Ctrl-C, or the requested number of" +
				" frames has run.",
			Usage: "run [<frames>]",
		}, (*Host).cmdRun},
		{cmd.CommandDescriptor{
			Name:  "frame",
			Brief: "Run frames without pacing",
			Description: "Run the requested number of frames as fast as" +
				" possible. Each frame executes InstructionsPerFrame" +
				" instructions and then decrements the timers.",
			Usage: "frame [<count>]",
		}, (*Host).cmdFrame},
		{cmd.CommandDescriptor{
			Name:  "step",
			Brief: "Step the CPU",
			Description: "Step the CPU by a single instruction. The number of" +
				" steps may be specified as an option. Stepping does not" +
				" decrement the timers.",
			Usage: "step [<count>]",
		}, (*Host).cmdStep},
		{cmd.CommandDescriptor{
			Name:  "register",
			Brief: "View or change register values",
			Description: "When used without arguments, this command displays" +
				" the current contents of the CPU registers. When used with" +
				" arguments, this command changes the value of a register." +
				" Allowed register names include V0 through VF, I, PC, SP," +
				" DT and ST.",
			Usage: "register [<name> <value>]",
		}, (*Host).cmdRegister},
		{cmd.CommandDescriptor{
			Name:  "disassemble",
			Brief: "Disassemble code",
			Description: "Disassemble machine code starting at the requested" +
				" address. The number of instruction lines to disassemble may" +
				" be specified as an option. If no address is specified, the" +
				" disassembly continues from where the last disassembly left" +
				" off.",
			Usage: "disassemble [<address>] [<lines>]",
		}, (*Host).cmdDisassemble},
		{cmd.CommandDescriptor{
			Name:        "display",
			Brief:       "Show the display",
			Description: "Render the framebuffer as text.",
			Usage:       "display",
		}, (*Host).cmdDisplay},
		{cmd.CommandDescriptor{
			Name:        "evaluate",
			Brief:       "Evaluate an expression",
			Description: "Evaluate a mathematical expression.",
			Usage:       "evaluate <expression>",
		}, (*Host).cmdEval},
		{cmd.CommandDescriptor{
			Name:  "set",
			Brief: "Set a configuration variable",
			Description: "Set the value of a configuration variable. To see" +
				" the current values of all configuration variables, type" +
				" set without any arguments.",
			Usage: "set [<var> <value>]",
		}, (*Host).cmdSet},
		{cmd.CommandDescriptor{
			Name:        "quit",
			Brief:       "Quit the program",
			Description: "Quit the program.",
			Usage:       "quit",
		}, (*Host).cmdQuit},
	}

	groups = []*commandGroup{
		{cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"}, []*command{
			{cmd.CommandDescriptor{
				Name:        "list",
				Brief:       "List breakpoints",
				Description: "List all current breakpoints.",
				Usage:       "breakpoint list",
			}, (*Host).cmdBreakpointList},
			{cmd.CommandDescriptor{
				Name:  "add",
				Brief: "Add a breakpoint",
				Description: "Add a breakpoint at the specified address." +
					" The breakpoint starts enabled.",
				Usage: "breakpoint add <address>",
			}, (*Host).cmdBreakpointAdd},
			{cmd.CommandDescriptor{
				Name:        "remove",
				Brief:       "Remove a breakpoint",
				Description: "Remove a breakpoint at the specified address.",
				Usage:       "breakpoint remove <address>",
			}, (*Host).cmdBreakpointRemove},
			{cmd.CommandDescriptor{
				Name:        "enable",
				Brief:       "Enable a breakpoint",
				Description: "Enable a previously added breakpoint.",
				Usage:       "breakpoint enable <address>",
			}, (*Host).cmdBreakpointEnable},
			{cmd.CommandDescriptor{
				Name:  "disable",
				Brief: "Disable a breakpoint",
				Description: "Disable a previously added breakpoint. This" +
					" prevents the breakpoint from being hit when running" +
					" the CPU.",
				Usage: "breakpoint disable <address>",
			}, (*Host).cmdBreakpointDisable},
		}},

		{cmd.TreeDescriptor{Name: "databreakpoint", Brief: "Data breakpoint commands"}, []*command{
			{cmd.CommandDescriptor{
				Name:        "list",
				Brief:       "List data breakpoints",
				Description: "List all current data breakpoints.",
				Usage:       "databreakpoint list",
			}, (*Host).cmdDataBreakpointList},
			{cmd.CommandDescriptor{
				Name:  "add",
				Brief: "Add a data breakpoint",
				Description: "Add a new data breakpoint at the specified" +
					" memory address. When the CPU stores data at this" +
					" address, the breakpoint will stop the CPU. Optionally," +
					" a byte value may be specified, and the CPU will stop" +
					" only when this value is stored. The data breakpoint" +
					" starts enabled.",
				Usage: "databreakpoint add <address> [<value>]",
			}, (*Host).cmdDataBreakpointAdd},
			{cmd.CommandDescriptor{
				Name:  "remove",
				Brief: "Remove a data breakpoint",
				Description: "Remove a previously added data breakpoint at" +
					" the specified memory address.",
				Usage: "databreakpoint remove <address>",
			}, (*Host).cmdDataBreakpointRemove},
			{cmd.CommandDescriptor{
				Name:        "enable",
				Brief:       "Enable a data breakpoint",
				Description: "Enable a previously added data breakpoint.",
				Usage:       "databreakpoint enable <address>",
			}, (*Host).cmdDataBreakpointEnable},
			{cmd.CommandDescriptor{
				Name:        "disable",
				Brief:       "Disable a data breakpoint",
				Description: "Disable a previously added data breakpoint.",
				Usage:       "databreakpoint disable <address>",
			}, (*Host).cmdDataBreakpointDisable},
		}},

		{cmd.TreeDescriptor{Name: "key", Brief: "Keypad commands"}, []*command{
			{cmd.CommandDescriptor{
				Name:  "press",
				Brief: "Press a key",
				Description: "Press a keypad key. A single character names a" +
					" keyboard key from the 1234/qwer/asdf/zxcv block, which" +
					" maps onto the keypad layout 123C/456D/789E/A0BF. Use" +
					" $0 through $F to name a keypad key directly.",
				Usage: "key press <key>",
			}, (*Host).cmdKeyPress},
			{cmd.CommandDescriptor{
				Name:        "release",
				Brief:       "Release a key",
				Description: "Release a keypad key. Keys are named as for key press.",
				Usage:       "key release <key>",
			}, (*Host).cmdKeyRelease},
			{cmd.CommandDescriptor{
				Name:  "list",
				Brief: "List pressed keys",
				Description: "List the keypad keys that are currently pressed" +
					" and report whether the CPU is waiting for a key.",
				Usage: "key list",
			}, (*Host).cmdKeyList},
		}},

		{cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"}, []*command{
			{cmd.CommandDescriptor{
				Name:  "dump",
				Brief: "Dump memory at address",
				Description: "Dump the contents of memory starting from the" +
					" specified address. The number of bytes to dump may be" +
					" specified as an option. If no address is specified," +
					" the memory dump continues from where the last dump" +
					" left off.",
				Usage: "memory dump [<address>] [<bytes>]",
			}, (*Host).cmdMemoryDump},
			{cmd.CommandDescriptor{
				Name:  "set",
				Brief: "Set memory at address",
				Description: "Set the contents of memory starting from the" +
					" specified address. The values to assign should be a" +
					" series of space-separated byte values. You may use an" +
					" expression for each byte value.",
				Usage: "memory set <address> <byte> [<byte> ...]",
			}, (*Host).cmdMemorySet},
		}},
	}

	root := cmd.NewTree(cmd.TreeDescriptor{Name: "chip8"})
	for _, c := range topCommands {
		c.Data = c
		root.AddCommand(c.CommandDescriptor)
	}
	for _, g := range groups {
		t := root.AddSubtree(g.TreeDescriptor)
		for _, c := range g.commands {
			c.Data = c
			t.AddCommand(c.CommandDescriptor)
		}
		groupTree.Add(g.Name, g)
	}

	// Add command shortcuts.
	root.AddShortcut("b", "breakpoint")
	root.AddShortcut("bp", "breakpoint")
	root.AddShortcut("ba", "breakpoint add")
	root.AddShortcut("br", "breakpoint remove")
	root.AddShortcut("bl", "breakpoint list")
	root.AddShortcut("be", "breakpoint enable")
	root.AddShortcut("bd", "breakpoint disable")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("db", "databreakpoint")
	root.AddShortcut("dbp", "databreakpoint")
	root.AddShortcut("dbl", "databreakpoint list")
	root.AddShortcut("dba", "databreakpoint add")
	root.AddShortcut("dbr", "databreakpoint remove")
	root.AddShortcut("dbe", "databreakpoint enable")
	root.AddShortcut("dbd", "databreakpoint disable")
	root.AddShortcut("e", "evaluate")
	root.AddShortcut("f", "frame")
	root.AddShortcut("k", "key")
	root.AddShortcut("kp", "key press")
	root.AddShortcut("kr", "key release")
	root.AddShortcut("kl", "key list")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("r", "register")
	root.AddShortcut("s", "step")
	root.AddShortcut("?", "help")
	root.AddShortcut(".", "register")

	cmds = root
}
