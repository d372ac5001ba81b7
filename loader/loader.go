// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader reads CHIP-8 program images from disk, unpacking them from
// zip, gzip or 7z archives when necessary, and identifies them so the host
// can choose the interpreter quirks.
package loader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/cespare/xxhash"
	"github.com/retroenv/retrogolib/log"
	"github.com/srikur/chip8/cpu"
)

// ErrEmptyArchive is returned when an archive contains no files.
var ErrEmptyArchive = errors.New("archive contains no files")

// A Program is a program image ready to be handed to (*cpu.CPU).Load.
type Program struct {
	Name   string     // file name of the image, without directory
	Data   []byte     // raw image bytes
	Hash   uint64     // xxhash64 of Data
	Quirks cpu.Quirks // interpreter quirks the program expects
}

// A Loader reads program images and chooses quirks for them.
type Loader struct {
	logger *log.Logger
	known  map[uint64]cpu.Quirks
}

// New creates a loader.
func New(logger *log.Logger) *Loader {
	return &Loader{
		logger: logger,
		known:  make(map[uint64]cpu.Quirks),
	}
}

// Register records the quirks for the program image with the given hash.
// Registered programs take precedence over name-based identification.
func (l *Loader) Register(hash uint64, quirks cpu.Quirks) {
	l.known[hash] = quirks
}

// Load reads the program image at path. Files ending in .zip, .gz or .7z
// are unpacked, and the first file in the archive is used. All failures are
// reported as *cpu.LoadError.
func (l *Loader) Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &cpu.LoadError{Op: "read", Path: path, Err: err}
	}

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		name, data, err = unzip(data)
	case ".gz":
		name, data, err = gunzip(name, data)
	case ".7z":
		name, data, err = un7z(data)
	}
	if err != nil {
		return nil, &cpu.LoadError{Op: "decompress", Path: path, Err: err}
	}

	p, err := l.identify(name, data)
	if err != nil {
		var loadErr *cpu.LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, err
	}

	l.logger.Debug("Program loaded",
		log.String("path", path),
		log.String("name", p.Name),
		log.Int("size", len(p.Data)),
		log.Hex("hash", p.Hash),
		log.String("shiftInPlace", strconv.FormatBool(p.Quirks.ShiftInPlace)))
	return p, nil
}

// LoadBytes identifies an in-memory program image.
func (l *Loader) LoadBytes(name string, data []byte) (*Program, error) {
	return l.identify(name, data)
}

func (l *Loader) identify(name string, data []byte) (*Program, error) {
	switch {
	case len(data) == 0:
		return nil, &cpu.LoadError{Op: "load", Err: cpu.ErrProgramEmpty}
	case len(data) > cpu.MaxProgramSize:
		return nil, &cpu.LoadError{Op: "load", Size: len(data), Err: cpu.ErrProgramTooLarge}
	}

	p := &Program{
		Name: name,
		Data: data,
		Hash: xxhash.Sum64(data),
	}

	if q, ok := l.known[p.Hash]; ok {
		p.Quirks = q
	} else {
		p.Quirks.ShiftInPlace = strings.Contains(strings.ToUpper(name), "INVADERS")
	}
	return p, nil
}

func unzip(data []byte) (string, []byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()

		b, err := readImage(rc)
		return filepath.Base(f.Name), b, err
	}
	return "", nil, ErrEmptyArchive
}

func gunzip(name string, data []byte) (string, []byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	b, err := readImage(r)
	if err != nil {
		return "", nil, err
	}

	// Prefer the name stored in the gzip header.
	if r.Name != "" {
		name = filepath.Base(r.Name)
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name, b, nil
}

func un7z(data []byte) (string, []byte, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()

		b, err := readImage(rc)
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		return filepath.Base(f.Name), b, nil
	}
	return "", nil, ErrEmptyArchive
}

// readImage reads at most one byte more than the largest program, so an
// oversized archive entry is rejected by identify without being unpacked
// in full.
func readImage(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, cpu.MaxProgramSize+1))
}
