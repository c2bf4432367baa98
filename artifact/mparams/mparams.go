/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package mparams patches the machine parameter block embedded in a
// secondary-stage loader (SPL) binary.
//
// The block layout is:
//
//	marker   uint32le   0xdeadbeef
//	version  uint32le   must be 1
//	size     uint32le   declared block size
//	params   NUL-terminated list of single-character parameter codes
//	values   one uint32le slot per code
//
// The last 4 bytes of the binary hold a checksum: the byte-sum of every
// preceding byte, mod 2^32.
package mparams

import (
	"bytes"
	"encoding/binary"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// Marker identifying the start of the parameter block.
const Marker = 0xdeadbeef

// Supported parameter block version.
const blockVersion = 1

// MemType is the DRAM technology declared by the board config.
type MemType int

const (
	MemDdr2 MemType = iota
	MemDdr3
	MemLpddr2
	MemLpddr3
)

var memTypeNames = []string{"ddr2", "ddr3", "lpddr2", "lpddr3"}

func ParseMemType(s string) (MemType, error) {
	for i, name := range memTypeNames {
		if name == s {
			return MemType(i), nil
		}
	}
	return 0, util.FmtConfigError("Unknown memory type '%s'", s)
}

func (m MemType) String() string {
	return memTypeNames[m]
}

// MemManuf is the DRAM manufacturer declared by the board config.
type MemManuf int

const (
	ManufAutodetect MemManuf = iota
	ManufElpida
	ManufSamsung
)

var memManufNames = []string{"autodetect", "elpida", "samsung"}

func ParseMemManuf(s string) (MemManuf, error) {
	for i, name := range memManufNames {
		if name == s {
			return MemManuf(i), nil
		}
	}
	return 0, util.FmtConfigError("Unknown memory manufacturer: '%s'", s)
}

func (m MemManuf) String() string {
	return memManufNames[m]
}

// BootSource selects where the SPL loads the next stage from.  The integer
// codes written into the block come from the boot_mode enum in U-Boot's
// cpu.h.
type BootSource int

const (
	BootStraps BootSource = iota
	BootEmmc
	BootSpi
	BootUsb
)

var bootSourceNames = []string{"straps", "emmc", "spi", "usb"}

var bootSourceCodes = map[BootSource]uint32{
	BootStraps: 32,
	BootEmmc:   4,
	BootSpi:    20,
	BootUsb:    33,
}

func ParseBootSource(s string) (BootSource, error) {
	for i, name := range bootSourceNames {
		if name == s {
			return BootSource(i), nil
		}
	}
	return 0, util.FmtConfigError("Invalid boot source '%s'", s)
}

func (b BootSource) String() string {
	return bootSourceNames[b]
}

// Config holds the board values resolved into parameter slots.  The enum
// fields are parsed at the configuration boundary, so unknown names are
// rejected before any byte patching starts.
type Config struct {
	MemType  MemType
	MemManuf MemManuf

	// DRAM clock in Hz, as declared by the board config.
	ClockHz int

	BootSource BootSource
}

// Block is a parsed parameter block.
type Block struct {
	// Offset of the marker within the containing binary.
	Pos int

	// Declared block size from the header.
	Size int

	// Parameter codes, in on-disk order.
	Params string

	// Offset of the first value slot within the containing binary.
	ValueOff int
}

// Locate finds the parameter block in an SPL binary and validates its
// header.  The binary is searched from the end: later marker matches are
// more likely the real header rather than coincidental data.
func Locate(b blob.Blob) (Block, error) {
	data := b.Bytes()

	marker := make([]byte, 4)
	binary.LittleEndian.PutUint32(marker, Marker)

	pos := bytes.LastIndex(data, marker)
	if pos == -1 {
		return Block{}, util.FmtFormatError(
			"Could not find machine parameter block in '%s'", b.Origin())
	}

	if pos+12 > len(data) {
		return Block{}, util.FmtFormatError(
			"%s: truncated parameter block header at %#x", b.Origin(), pos)
	}

	version := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
	size := binary.LittleEndian.Uint32(data[pos+8 : pos+12])

	if version != blockVersion {
		return Block{}, util.FmtFormatError(
			"Cannot update machine parameter block version '%d'", version)
	}
	if pos+int(size) > len(data) {
		return Block{}, util.FmtFormatError(
			"Machine parameter block size %d is invalid: "+
				"pos=%d, space=%d, len=%d",
			size, pos, len(data)-pos, len(data))
	}

	// Move past the header and read the parameter list, which is
	// terminated with \0.
	listOff := pos + 12
	nul := bytes.IndexByte(data[listOff:], 0)
	if nul == -1 {
		return Block{}, util.FmtFormatError(
			"%s: unterminated parameter list at %#x", b.Origin(), listOff)
	}

	params := string(data[listOff : listOff+nul])
	valueOff := listOff + (nul+4)&^3

	if valueOff+4*len(params) > len(data) {
		return Block{}, util.FmtFormatError(
			"%s: parameter block value slots extend beyond binary "+
				"(%d params at %#x, len=%d)",
			b.Origin(), len(params), valueOff, len(data))
	}

	return Block{
		Pos:      pos,
		Size:     int(size),
		Params:   params,
		ValueOff: valueOff,
	}, nil
}

// resolveValue computes the value for a single parameter code.  prev is the
// slot's existing value, which unknown codes keep.
func resolveValue(code byte, cfg Config, loadSize int,
	prev uint32) (uint32, error) {

	switch code {
	case 'm':
		v := uint32(cfg.MemType)
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Memory type: %s (%d)\n", cfg.MemType, v)
		return v, nil
	case 'M':
		v := uint32(cfg.MemManuf)
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Memory manufacturer: %s (%d)\n", cfg.MemManuf, v)
		return v, nil
	case 'f':
		freq := cfg.ClockHz / 1000000
		if freq != 533 && freq != 667 && freq != 800 {
			util.Warning("Unexpected memory speed '%d'", freq)
		}
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Memory speed: %d\n", freq)
		return uint32(freq), nil
	case 'v':
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Memory interleave: %#x\n", 31)
		return 31, nil
	case 'u':
		v := uint32(blob.RoundUp(loadSize, 0x1000))
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  U-Boot size: %#x (rounded up from %#x)\n", v, loadSize)
		return v, nil
	case 'b':
		v, ok := bootSourceCodes[cfg.BootSource]
		if !ok {
			return 0, util.FmtConfigError("Invalid boot source '%s'",
				cfg.BootSource)
		}
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Boot source: %#x\n", v)
		return v, nil
	default:
		util.Warning("Unknown machine parameter type '%c'", code)
		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  Unknown value: %#x\n", prev)
		return prev, nil
	}
}

// Patch rewrites the parameter block's value slots and then recomputes the
// trailing checksum.  loadSize is the size of the image the SPL must load.
// The patch-then-checksum order is mandatory: checksumming first would bake
// stale values into the sum and silently corrupt the block.
func Patch(b blob.Blob, cfg Config, loadSize int) (blob.Blob, error) {
	blk, err := Locate(b)
	if err != nil {
		return blob.Blob{}, err
	}

	data := make([]byte, b.Len())
	copy(data, b.Bytes())

	for i := 0; i < len(blk.Params); i++ {
		off := blk.ValueOff + 4*i
		prev := binary.LittleEndian.Uint32(data[off : off+4])

		v, err := resolveValue(blk.Params[i], cfg, loadSize, prev)
		if err != nil {
			return blob.Blob{}, err
		}

		binary.LittleEndian.PutUint32(data[off:off+4], v)
	}

	updateChecksum(data)

	util.StatusMessage(util.VERBOSITY_VERBOSE, "SPL configuration complete\n")
	return blob.New(b.Origin(), data), nil
}

// Checksum computes the trailing checksum for a binary: the unsigned sum of
// every byte except the final 4, mod 2^32.
func Checksum(data []byte) uint32 {
	var sum uint32
	for _, ch := range data[:len(data)-4] {
		sum += uint32(ch)
	}
	return sum
}

func updateChecksum(data []byte) {
	binary.LittleEndian.PutUint32(data[len(data)-4:], Checksum(data))
}

// VerifyChecksum indicates whether the binary's trailing checksum matches
// its contents.
func VerifyChecksum(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	return stored == Checksum(data)
}
