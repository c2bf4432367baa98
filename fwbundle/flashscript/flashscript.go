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

// Package flashscript generates the U-Boot command script that a flasher
// image executes to program a payload into on-board storage.
package flashscript

import (
	"fmt"
	"strings"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// Placeholder stands in for the payload load address, which is not known
// until the flasher image's layout is fixed.  It must be replaced by an
// 8-character hex string so the script length, and with it every downstream
// offset, stays unchanged.
const Placeholder = "zsHEXYla"

// Medium is the storage device the flasher programs.
type Medium int

const (
	MediumNand Medium = iota
	MediumSdmmc
	MediumSpi
)

var mediumNames = []string{"nand", "sdmmc", "spi"}

func ParseMedium(s string) (Medium, error) {
	for i, name := range mediumNames {
		if name == s {
			return Medium(i), nil
		}
	}
	return 0, util.FmtConfigError("Unknown storage medium '%s'", s)
}

func (m Medium) String() string {
	return mediumNames[m]
}

// PageSize returns the erase/write granularity the script rounds to.
func (m Medium) PageSize() int {
	if m == MediumSdmmc {
		return 512
	}
	return 4096
}

// Params configures script generation.
type Params struct {
	PayloadSize int
	Medium      Medium

	// Use the faster update algorithm instead of a full erase.  Only
	// honored for SPI.
	Update bool

	// Verify the write with a readback and CRC.
	Verify bool

	// CRC32 of the payload, as an unsigned value.
	Checksum uint32

	// Bus identifier for SPI probe.
	Bus string
}

// Generate produces the boot command script.  The returned script contains
// Placeholder exactly once; the caller substitutes the real load address
// after fixing the image layout.
func Generate(p Params) (string, error) {
	pageSize := p.Medium.PageSize()
	update := p.Update && p.Medium == MediumSpi
	length := blob.RoundUp(p.PayloadSize, pageSize)

	cmds := []string{
		fmt.Sprintf("setenv address       0x%s", Placeholder),
		fmt.Sprintf("setenv firmware_size %#x", p.PayloadSize),
		fmt.Sprintf("setenv length        %#x", length),
		fmt.Sprintf("setenv blocks   %#x", length/pageSize),
		fmt.Sprintf("setenv _crc    \"crc32 -v ${address} ${firmware_size} "+
			"%#08x\"", p.Checksum),
		"setenv _clear  \"echo Clearing RAM; mw.b     ${address} 0 " +
			"${length}\"",
	}

	switch p.Medium {
	case MediumNand:
		cmds = append(cmds,
			"setenv _init   \"echo Init NAND;  nand info\"",
			"setenv _erase  \"echo Erase NAND; nand erase            0 "+
				"${length}\"",
			"setenv _write  \"echo Write NAND; nand write ${address} 0 "+
				"${length}\"",
			"setenv _read   \"echo Read NAND;  nand read  ${address} 0 "+
				"${length}\"",
		)
	case MediumSdmmc:
		cmds = append(cmds,
			"setenv _init   \"echo Init EMMC;  mmc rescan            0\"",
			"setenv _erase  \"echo Erase EMMC; \"",
			"setenv _write  \"echo Write EMMC; mmc write 0 ${address} 0 "+
				"${blocks} boot1\"",
			"setenv _read   \"echo Read EMMC;  mmc read 0 ${address} 0 "+
				"${blocks} boot1\"",
		)
	default:
		cmds = append(cmds,
			fmt.Sprintf("setenv _init   \"echo Init SPI;   sf probe"+
				"            %s\"", p.Bus),
			"setenv _erase  \"echo Erase SPI;  sf erase            0 "+
				"${length}\"",
			"setenv _write  \"echo Write SPI;  sf write ${address} 0 "+
				"${length}\"",
			"setenv _read   \"echo Read SPI;   sf read  ${address} 0 "+
				"${length}\"",
			"setenv _update \"echo Update SPI; sf update ${address} 0 "+
				"${length}\"",
		)
	}

	cmds = append(cmds,
		"echo Firmware loaded to ${address}, size ${firmware_size}, "+
			"length ${length}",
		"if run _crc; then",
		"run _init",
	)

	if update {
		cmds = append(cmds, "time run _update")
	} else {
		cmds = append(cmds, "run _erase", "run _write")
	}

	if p.Verify {
		cmds = append(cmds, "run _clear", "run _read", "run _crc")
	} else {
		cmds = append(cmds, "echo Skipping verify")
	}

	cmds = append(cmds,
		"else",
		"echo",
		"echo \"** Checksum error on load: please check download tool **\"",
		"fi",
	)

	script := strings.Join(cmds, "; ")

	if err := checkPlaceholder(script); err != nil {
		return "", err
	}
	return script, nil
}

func checkPlaceholder(s string) error {
	if len(Placeholder) != 8 {
		return util.FmtConsistencyError(
			"Internal error: load address placeholder '%s' is %d "+
				"characters; must be 8", Placeholder, len(Placeholder))
	}

	if n := strings.Count(s, Placeholder); n != 1 {
		return util.FmtConsistencyError(
			"Internal error: load address placeholder '%s' occurs %d "+
				"times in script; must occur exactly once", Placeholder, n)
	}

	return nil
}

// Substitute replaces the placeholder in data with the resolved load
// address.  The replacement must have the placeholder's exact length and
// the placeholder must occur exactly once; both are checked before any
// bytes are produced.
func Substitute(data []byte, addr string) ([]byte, error) {
	if len(addr) != len(Placeholder) {
		return nil, util.FmtConsistencyError(
			"Internal error: replacement string '%s' length does not "+
				"match placeholder '%s'", addr, Placeholder)
	}

	n := strings.Count(string(data), Placeholder)
	if n != 1 {
		return nil, util.FmtConsistencyError(
			"Internal error: placeholder '%s' occurs %d times in data; "+
				"must occur exactly once", Placeholder, n)
	}

	out := strings.Replace(string(data), Placeholder, addr, 1)
	return []byte(out), nil
}
