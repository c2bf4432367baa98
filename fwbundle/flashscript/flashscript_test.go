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

package flashscript

import (
	"strings"
	"testing"

	"github.com/embedfw/fwbundle/util"
)

func TestGenerateSpi(t *testing.T) {
	script, err := Generate(Params{
		PayloadSize: 0x5000,
		Medium:      MediumSpi,
		Update:      true,
		Checksum:    0x1234abcd,
		Bus:         "0",
	})
	if err != nil {
		t.Fatalf("Generate: %s", err.Error())
	}

	if strings.Count(script, Placeholder) != 1 {
		t.Errorf("placeholder occurs %d times",
			strings.Count(script, Placeholder))
	}
	if !strings.Contains(script, "time run _update") {
		t.Errorf("spi update script does not use the update algorithm")
	}
	if strings.Contains(script, "run _erase") {
		t.Errorf("spi update script still erases")
	}
	if !strings.Contains(script, "echo Skipping verify") {
		t.Errorf("non-verify script missing skip notice")
	}
	if !strings.Contains(script, "sf probe            0") {
		t.Errorf("spi init does not probe bus 0")
	}
	if !strings.Contains(script, "crc32 -v ${address} ${firmware_size} "+
		"0x1234abcd") {
		t.Errorf("checksum missing from script:\n%s", script)
	}
}

func TestGenerateNandIgnoresUpdate(t *testing.T) {
	// The update algorithm only exists for SPI.
	script, err := Generate(Params{
		PayloadSize: 0x5000,
		Medium:      MediumNand,
		Update:      true,
	})
	if err != nil {
		t.Fatalf("Generate: %s", err.Error())
	}

	if strings.Contains(script, "_update") {
		t.Errorf("nand script mentions the update algorithm")
	}
	if !strings.Contains(script, "run _erase") ||
		!strings.Contains(script, "run _write") {
		t.Errorf("nand script missing erase+write")
	}
}

func TestGenerateSdmmcBlocks(t *testing.T) {
	// 0x5001 bytes rounds to 0x5200 at the 512-byte page size: 41 blocks.
	script, err := Generate(Params{
		PayloadSize: 0x5001,
		Medium:      MediumSdmmc,
		Verify:      true,
	})
	if err != nil {
		t.Fatalf("Generate: %s", err.Error())
	}

	if !strings.Contains(script, "setenv length        0x5200") {
		t.Errorf("length not rounded to the sdmmc page size:\n%s", script)
	}
	if !strings.Contains(script, "setenv blocks   0x29") {
		t.Errorf("block count wrong:\n%s", script)
	}
	if !strings.Contains(script, "run _clear") ||
		!strings.Contains(script, "run _read") {
		t.Errorf("verify script missing readback")
	}
}

func TestSubstitute(t *testing.T) {
	data := []byte("setenv address       0x" + Placeholder + "; run _init")

	out, err := Substitute(data, "00109000")
	if err != nil {
		t.Fatalf("Substitute: %s", err.Error())
	}
	if len(out) != len(data) {
		t.Errorf("substitution changed the length: %d -> %d", len(data),
			len(out))
	}
	if !strings.Contains(string(out), "0x00109000") {
		t.Errorf("address not substituted: %s", out)
	}
}

func TestSubstituteWrongLength(t *testing.T) {
	data := []byte("0x" + Placeholder)

	_, err := Substitute(data, "109000")
	if err == nil {
		t.Fatalf("6-character replacement accepted")
	}
	if !util.IsConsistency(err) {
		t.Errorf("got %s; want a consistency error", err.Error())
	}
}

func TestSubstituteOccurrenceCount(t *testing.T) {
	if _, err := Substitute([]byte("no placeholder here"),
		"00109000"); err == nil {
		t.Errorf("zero occurrences accepted")
	}

	double := []byte(Placeholder + " " + Placeholder)
	if _, err := Substitute(double, "00109000"); err == nil {
		t.Errorf("two occurrences accepted")
	}
}

func TestParseMedium(t *testing.T) {
	m, err := ParseMedium("sdmmc")
	if err != nil {
		t.Fatalf("ParseMedium(sdmmc): %s", err.Error())
	}
	if m.PageSize() != 512 {
		t.Errorf("sdmmc page size = %d; want 512", m.PageSize())
	}

	m, err = ParseMedium("nand")
	if err != nil {
		t.Fatalf("ParseMedium(nand): %s", err.Error())
	}
	if m.PageSize() != 4096 {
		t.Errorf("nand page size = %d; want 4096", m.PageSize())
	}

	if _, err := ParseMedium("floppy"); err == nil {
		t.Errorf("unknown medium accepted")
	}
}
