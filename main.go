// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command chip8 runs CHIP-8 programs inside an interactive monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/term"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/srikur/chip8/host"
)

var (
	shift  bool
	ipf    int
	debug  bool
	quiet  bool
	script string
)

func init() {
	flag.BoolVar(&shift, "shift", false, "shift VX in place for 8XY6 and 8XYE")
	flag.IntVar(&ipf, "ipf", host.DefaultInstructionsPerFrame, "instructions executed per frame")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&quiet, "q", false, "only log errors")
	flag.StringVar(&script, "script", "", "run monitor commands from a file, then exit")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: chip8 [options] [program]\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger := createLogger(debug, quiet)

	h := host.New(logger, host.Config{
		ForceShift:           shift,
		InstructionsPerFrame: ipf,
	})

	if args := flag.Args(); len(args) > 0 {
		if err := h.Load(args[0]); err != nil {
			logger.Fatal("Loading program failed", log.Err(err))
		}
	}

	// Run commands contained in a script file.
	if script != "" {
		file, err := os.Open(script)
		if err != nil {
			logger.Fatal("Opening script failed", log.Err(err))
		}
		defer file.Close()

		h.RunCommands(app.Context(), file, os.Stdout, false)
		return
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// Run commands interactively.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	h.RunCommands(context.Background(), os.Stdin, os.Stdout, interactive)
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for range c {
		h.Break()
	}
}

func createLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
