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

// Package textbase recovers a boot loader's link address (TEXT_BASE) from
// its binary.  U-Boot carries a header word 0x12345678 immediately followed
// by the TEXT_BASE value, so the address can be read back from the image
// with some certainty.
package textbase

import (
	"encoding/binary"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// The header word that precedes the TEXT_BASE value.
const Sentinel = 0x12345678

// Each scan window covers the first 40 words from its start offset; the
// header is expected within that region.
const windowLen = 160

// Window start offsets.  Offset 0 covers classic layouts; 0x4000 covers
// boards with a 16KB SPL region at the start, where the header lives in the
// U-Boot portion instead.
var windowStarts = []int{0, 0x4000}

// Decode scans the boot-loader binary for the TEXT_BASE header.  It returns
// the decoded address adjusted by the window's start offset.  A missing
// header is reported as found=false, not as an error.
func Decode(b blob.Blob) (base uint32, found bool) {
	data := b.Bytes()

	// The match carries across windows: a sentinel in the last word of one
	// window is resolved by the first word of the next.
	matched := false
	for _, start := range windowStarts {
		for i := start; i+4 <= len(data) && i < start+windowLen; i += 4 {
			word := binary.LittleEndian.Uint32(data[i : i+4])
			if matched {
				return word - uint32(start), true
			}
			if word == Sentinel {
				matched = true
			}
		}
	}

	return 0, false
}

// Resolve picks the TEXT_BASE to use for an image.  The configured value
// comes from the board config; the decoded value comes from the binary
// itself.  When both are present and disagree, the decoded value wins and
// the discrepancy is reported as a warning.  This allows flashing a
// boot loader whose build used a different link-address convention than the
// board config declares.
func Resolve(name string, configured uint32, b blob.Blob) uint32 {
	decoded, found := Decode(b)
	if !found {
		return configured
	}

	util.StatusMessage(util.VERBOSITY_VERBOSE,
		"TEXT_BASE: config says %#x, %s says %#x\n",
		configured, b.Origin(), decoded)

	if decoded != configured {
		util.Warning("TEXT_BASE %#x in %s doesn't match config value "+
			"of %#x. Using %#x", decoded, name, configured, decoded)
	}

	return decoded
}
