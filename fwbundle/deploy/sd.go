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

package deploy

import (
	"strings"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/textbase"
	"github.com/embedfw/fwbundle/fwbundle/bundle"
	"github.com/embedfw/fwbundle/fwbundle/flasher"
	"github.com/embedfw/fwbundle/util"
)

// A flasher written to SD must place the payload at this offset; BL1 (8KB)
// plus BL2 padded out occupy the space before it.
const sdPayloadOffset = 0x6000

// SdParams describes one SD card write.
type SdParams struct {
	// Selects the card, in one of three forms:
	//
	//	":."             the only available disk; fails given a choice
	//	":/dev/sdX"      that device
	//	":<description>" the disk whose full description matches
	Dest string

	// Boot loader used to build a flasher.
	Uboot blob.Blob

	// The image to program.
	Payload blob.Blob
}

// SendToSdCard writes an image, or a flasher wrapping it, to a removable SD
// card.
func (s *Session) SendToSdCard(p SdParams) error {
	disks, err := s.ListRemovableDisks()
	if err != nil {
		return err
	}

	device := ""
	if strings.HasPrefix(p.Dest, ":") {
		name := p.Dest[1:]
		if name == "." && len(disks) == 1 {
			device = disks[0].Device
		}
		for _, d := range disks {
			if d.Desc == name || d.Device == name {
				device = d.Device
			}
		}
	}

	if device == "" {
		var b strings.Builder
		b.WriteString("Please specify destination ':<disk_description>': " +
			"use . for the only disk, the device name or the full " +
			"description.")
		if len(disks) == 0 {
			b.WriteString(" No disks found; please insert an SD card " +
				"and try again.")
		}
		for _, d := range disks {
			b.WriteString("\n  " + d.Desc)
		}
		return util.FmtConfigError("%s", b.String())
	}

	if err := checkNotMounted(device); err != nil {
		return err
	}

	image := p.Payload
	if s.FlashDest != nil {
		image, err = s.buildSdFlasher(p.Uboot, p.Payload)
		if err != nil {
			return err
		}
		util.StatusMessage(util.VERBOSITY_DEFAULT,
			"Writing flasher to %s\n", device)
	} else {
		util.StatusMessage(util.VERBOSITY_DEFAULT, "Writing image to %s\n",
			device)
	}

	path, err := s.stageBlob(image.Origin(), image)
	if err != nil {
		return err
	}

	// Block 0 holds the partition table; the boot blocks start at block 1.
	args := []string{"if=" + path, "of=" + device, "bs=512", "seek=1"}
	_, err = s.Tools.Run("dd", args, true)
	return err
}

// buildSdFlasher wraps the payload in a flasher bootable straight from the
// card: BL1, then BL2 patched to load the flasher's full size, padding up
// to the payload offset, then the flasher image itself.
func (s *Session) buildSdFlasher(uboot, payload blob.Blob) (blob.Blob,
	error) {

	if s.TextBase == TextBaseUnknown {
		configured := uint32(s.Fdt.GetInt("/chromeos-config", "textbase",
			0))
		s.TextBase = textbase.Resolve("flasher", configured, uboot)
	}

	flashImage, _, err := flasher.Build(s.Fdt, flasher.Params{
		Uboot:    uboot,
		Payload:  payload,
		TextBase: s.TextBase,
		Medium:   *s.FlashDest,
		Update:   s.Update,
		Verify:   s.Verify,
		Bus:      "1:0",
	})
	if err != nil {
		return blob.Blob{}, err
	}

	bl1, bl2, _, err := ExtractPayloadParts(payload)
	if err != nil {
		return blob.Blob{}, err
	}

	// BL2 must load the whole flasher, not just a boot loader, so its
	// parameter block is repatched with the flasher's size.
	bl2, err = bundle.ConfigureBl2(s.Fdt, flashImage.Len(), bl2,
		s.SplSource)
	if err != nil {
		return blob.Blob{}, err
	}

	image := bl1.Concat("flasher-with-bl.bin", bl2)
	image, err = image.PadTo(sdPayloadOffset)
	if err != nil {
		return blob.Blob{}, err
	}
	image = image.Concat("flasher-with-bl.bin", flashImage)
	return image, nil
}
