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

// Package flasher assembles a self-booting flasher image: a boot loader,
// a device tree carrying the flash script, and the payload to program.
package flasher

import (
	"fmt"
	"hash/crc32"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/flashscript"
	"github.com/embedfw/fwbundle/util"
)

// The NAND driver expects 4-byte alignment of the payload.  Go whole hog
// and use 4KB.
const payloadAlignment = 0x1000

// Params describes one flasher build.
type Params struct {
	// The boot loader the flasher runs.
	Uboot blob.Blob

	// The image the flasher programs into storage.
	Payload blob.Blob

	// Link address of the boot loader.
	TextBase uint32

	Medium flashscript.Medium
	Update bool
	Verify bool
	Bus    string
}

// Layout records where the pieces of a built flasher landed.
type Layout struct {
	// Offset of the payload within the image.  Also the amount by which
	// the load address exceeds the text base.
	PayloadOffset int

	// RAM address the payload is loaded to.
	LoadAddress uint32

	// CRC32 of the payload, as embedded in the flash script.
	Checksum uint32
}

// Build assembles the flasher image.  The device tree is copied first; the
// original is left untouched.
//
// The payload's load address depends on the size of the device tree, which
// contains the script that mentions the load address.  The script therefore
// carries a fixed-length placeholder, and the address is substituted after
// the layout is fixed, which leaves every offset unchanged.
func Build(t *fdt.Fdt, p Params) (blob.Blob, Layout, error) {
	var layout Layout

	checksum := crc32.ChecksumIEEE(p.Payload.Bytes())

	script, err := flashscript.Generate(flashscript.Params{
		PayloadSize: p.Payload.Len(),
		Medium:      p.Medium,
		Update:      p.Update,
		Verify:      p.Verify,
		Checksum:    checksum,
		Bus:         p.Bus,
	})
	if err != nil {
		return blob.Blob{}, layout, err
	}

	fdtCopy, err := t.Copy("flasher.dtb")
	if err != nil {
		return blob.Blob{}, layout, err
	}
	if err := fdtCopy.PutString("/config", "bootcmd", script); err != nil {
		return blob.Blob{}, layout, err
	}

	fdtData, err := blob.ReadFile(fdtCopy.Fname())
	if err != nil {
		return blob.Blob{}, layout, err
	}

	payloadOffset := blob.RoundUp(p.Uboot.Len()+fdtData.Len(),
		payloadAlignment)
	loadAddress := p.TextBase + uint32(payloadOffset)

	resolved, err := flashscript.Substitute(fdtData.Bytes(),
		fmt.Sprintf("%08x", loadAddress))
	if err != nil {
		return blob.Blob{}, layout, err
	}
	fdtData = blob.New(fdtData.Origin(), resolved)

	image := p.Uboot.Concat("flasher-for-image.bin", fdtData)
	image, err = image.PadTo(payloadOffset)
	if err != nil {
		return blob.Blob{}, layout, err
	}
	image = image.Concat("flasher-for-image.bin", p.Payload)

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Payload checksum %08x\n", checksum)
	util.StatusMessage(util.VERBOSITY_VERBOSE,
		"Flasher: boot loader %d bytes, fdt %d bytes, payload %d bytes "+
			"at %#x\n",
		p.Uboot.Len(), fdtData.Len(), p.Payload.Len(), payloadOffset)

	layout = Layout{
		PayloadOffset: payloadOffset,
		LoadAddress:   loadAddress,
		Checksum:      checksum,
	}
	return image, layout, nil
}
