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

package mparams

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// buildSpl fabricates an SPL binary with a parameter block: some leading
// code bytes, the header, the NUL-terminated code list padded to a 4-byte
// slot boundary, one slot per code, and the trailing checksum.
func buildSpl(version uint32, params string, slots []uint32) []byte {
	var b bytes.Buffer

	b.Write(bytes.Repeat([]byte{0xaa}, 16))

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], Marker)
	b.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], version)
	b.Write(word[:])

	listLen := (len(params) + 4) &^ 3
	size := 12 + listLen + 4*len(slots)
	binary.LittleEndian.PutUint32(word[:], uint32(size))
	b.Write(word[:])

	b.WriteString(params)
	b.Write(make([]byte, listLen-len(params)))

	for _, v := range slots {
		binary.LittleEndian.PutUint32(word[:], v)
		b.Write(word[:])
	}

	b.Write(make([]byte, 4))
	data := b.Bytes()
	binary.LittleEndian.PutUint32(data[len(data)-4:], Checksum(data))
	return data
}

func slotValues(t *testing.T, data []byte, params string) []uint32 {
	t.Helper()

	blk, err := Locate(blob.FromBytes("spl", data))
	if err != nil {
		t.Fatalf("Locate: %s", err.Error())
	}
	if blk.Params != params {
		t.Fatalf("params = %q; want %q", blk.Params, params)
	}

	vals := make([]uint32, len(params))
	for i := range vals {
		off := blk.ValueOff + 4*i
		vals[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}
	return vals
}

var testConfig = Config{
	MemType:    MemDdr3,
	MemManuf:   ManufSamsung,
	ClockHz:    800000000,
	BootSource: BootStraps,
}

func TestPatchValues(t *testing.T) {
	spl := buildSpl(1, "mMfvub", make([]uint32, 6))

	patched, err := Patch(blob.FromBytes("spl", spl), testConfig, 0x12345)
	if err != nil {
		t.Fatalf("Patch: %s", err.Error())
	}

	got := slotValues(t, patched.Bytes(), "mMfvub")
	want := []uint32{
		1,       // ddr3
		2,       // samsung
		800,     // MHz
		31,      // interleave
		0x13000, // load size rounded to 4KB
		32,      // straps
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %c = %d; want %d", "mMfvub"[i], got[i], want[i])
		}
	}

	if !VerifyChecksum(patched.Bytes()) {
		t.Errorf("checksum not recomputed after patch")
	}
}

func TestPatchIdempotent(t *testing.T) {
	spl := buildSpl(1, "mMfvub", make([]uint32, 6))

	once, err := Patch(blob.FromBytes("spl", spl), testConfig, 0x8000)
	if err != nil {
		t.Fatalf("first Patch: %s", err.Error())
	}
	twice, err := Patch(once, testConfig, 0x8000)
	if err != nil {
		t.Fatalf("second Patch: %s", err.Error())
	}

	if !bytes.Equal(once.Bytes(), twice.Bytes()) {
		t.Errorf("patching twice with the same config changed the bytes")
	}
}

func TestPatchPreservesInput(t *testing.T) {
	spl := buildSpl(1, "u", []uint32{7})
	orig := make([]byte, len(spl))
	copy(orig, spl)

	if _, err := Patch(blob.FromBytes("spl", spl), testConfig,
		0x1000); err != nil {
		t.Fatalf("Patch: %s", err.Error())
	}

	if !bytes.Equal(spl, orig) {
		t.Errorf("Patch modified its input")
	}
}

func TestUnknownCodeKeepsSlot(t *testing.T) {
	spl := buildSpl(1, "uz", []uint32{0, 0xcafef00d})

	patched, err := Patch(blob.FromBytes("spl", spl), testConfig, 0x1000)
	if err != nil {
		t.Fatalf("Patch: %s", err.Error())
	}

	got := slotValues(t, patched.Bytes(), "uz")
	if got[1] != 0xcafef00d {
		t.Errorf("unknown code slot = %#x; want 0xcafef00d", got[1])
	}
}

func TestUnsupportedVersion(t *testing.T) {
	spl := buildSpl(2, "u", []uint32{0})
	orig := make([]byte, len(spl))
	copy(orig, spl)

	_, err := Patch(blob.FromBytes("spl", spl), testConfig, 0x1000)
	if err == nil {
		t.Fatalf("version 2 block was accepted")
	}
	if !util.IsFormat(err) {
		t.Errorf("got %s; want a format error", err.Error())
	}

	// A rejected block must be left byte-identical, checksum included.
	if !bytes.Equal(spl, orig) {
		t.Errorf("rejected patch still modified the binary")
	}
}

func TestMissingMarker(t *testing.T) {
	_, err := Locate(blob.FromBytes("spl", make([]byte, 64)))
	if err == nil {
		t.Fatalf("located a block in zeroed data")
	}
	if !util.IsFormat(err) {
		t.Errorf("got %s; want a format error", err.Error())
	}
}

func TestOversizedBlock(t *testing.T) {
	spl := buildSpl(1, "u", []uint32{0})
	// Inflate the declared size past the end of the binary.
	pos := bytes.LastIndex(spl, []byte{0xef, 0xbe, 0xad, 0xde})
	binary.LittleEndian.PutUint32(spl[pos+8:pos+12], uint32(len(spl)))

	if _, err := Locate(blob.FromBytes("spl", spl)); err == nil {
		t.Errorf("oversized block was accepted")
	}
}

func TestVerifyChecksumDetectsCorruption(t *testing.T) {
	spl := buildSpl(1, "u", []uint32{0})
	if !VerifyChecksum(spl) {
		t.Fatalf("fresh block fails checksum")
	}

	spl[0] ^= 0x01
	if VerifyChecksum(spl) {
		t.Errorf("corrupted block passes checksum")
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseMemType("ddr5"); err == nil {
		t.Errorf("unknown memory type accepted")
	}
	if _, err := ParseMemManuf("acme"); err == nil {
		t.Errorf("unknown manufacturer accepted")
	}
	if _, err := ParseBootSource("floppy"); err == nil {
		t.Errorf("unknown boot source accepted")
	}

	src, err := ParseBootSource("spi")
	if err != nil {
		t.Fatalf("ParseBootSource(spi): %s", err.Error())
	}
	if bootSourceCodes[src] != 20 {
		t.Errorf("spi boot code = %d; want 20", bootSourceCodes[src])
	}
}
