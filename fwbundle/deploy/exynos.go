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
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/textbase"
	"github.com/embedfw/fwbundle/fwbundle/flasher"
	"github.com/embedfw/fwbundle/util"
)

const exynosDownloadTool = "smdk-usbdl"

// USB IDs the Exynos boot ROM enumerates with in download mode.
const exynosVendorID = 0x04e8
const exynosProductID = 0x1234

// Layout of an Exynos payload: BL1 is always 8KB, then BL2 (the SPL), a
// 2KB gap, and the boot loader proper.
const exynosBl1Size = 0x2000
const exynosBl2Gap = 0x800

// "B reset", the first instruction of the boot loader.  BL2's size is
// detected by finding it.
const exynosResetInstr = 0xea000014

// SRAM download addresses for each stage.
const (
	exynosBl1Addr   = 0x02021400
	exynosBl2Addr   = 0x02023400
	exynosUbootAddr = 0x43e00000
)

// How long each stage gets to enumerate on the USB bus.
const exynosStageTimeout = 4 * time.Second

// ExynosParams describes one Exynos USB download.
type ExynosParams struct {
	// Boot loader used to build a flasher.
	FlashUboot blob.Blob

	// Pre-boot and SPL binaries, used when a flasher is built.  Without a
	// flasher both are extracted from the payload instead.
	Bl1 blob.Blob
	Bl2 blob.Blob

	// The image to program.
	Payload blob.Blob

	// Kernel appended after the payload, zero-length for none.
	Kernel blob.Blob
}

// ExtractPayloadParts splits an Exynos payload into its BL1, BL2 and boot
// loader parts.
//
// BL2's end is found by locating the boot loader's first instruction and
// backing off the 2KB gap.  Only 14KB and 30KB BL2s are accepted; anything
// else means the search matched the wrong bytes.
func ExtractPayloadParts(payload blob.Blob) (bl1, bl2,
	image blob.Blob, err error) {

	data, err := payload.Slice(0, exynosBl1Size)
	if err != nil {
		return bl1, bl2, image, err
	}
	bl1 = blob.New("bl1.bin", data)

	var instr [4]byte
	binary.LittleEndian.PutUint32(instr[:], exynosResetInstr)
	searchFrom := exynosBl1Size + 0x3800
	if searchFrom > payload.Len() {
		return bl1, bl2, image, util.FmtFormatError(
			"%s is too short (%d bytes) to hold an Exynos image",
			payload.Origin(), payload.Len())
	}
	i := bytes.Index(payload.Bytes()[searchFrom:], instr[:])
	if i < 0 {
		return bl1, bl2, image, util.FmtFormatError(
			"Could not locate start of U-Boot in %s", payload.Origin())
	}
	ubootOffset := searchFrom + i

	bl2Size := ubootOffset - exynosBl1Size - exynosBl2Gap
	switch bl2Size >> 10 {
	case 14, 30:
	default:
		return bl1, bl2, image, util.FmtFormatError(
			"BL2 size is %dK - only 14, 30 supported", bl2Size>>10)
	}
	util.StatusMessage(util.VERBOSITY_DEFAULT, "BL2 size is %dKB\n",
		bl2Size>>10)

	data, err = payload.Slice(exynosBl1Size, bl2Size)
	if err != nil {
		return bl1, bl2, image, err
	}
	bl2 = blob.New("bl2.bin", data)

	data, err = payload.Slice(ubootOffset, payload.Len()-ubootOffset)
	if err != nil {
		return bl1, bl2, image, err
	}
	image = blob.New("u-boot-from-image.bin", data)

	return bl1, bl2, image, nil
}

// ExynosFlashImage sends an image to an Exynos board over USB in three
// stages: BL1, BL2 and the boot loader, each downloaded into SRAM at a
// fixed address.  The servo resets the board into download mode first and
// is restored to its prior state afterwards.
func (s *Session) ExynosFlashImage(p ExynosParams) error {
	var bl1, bl2, image blob.Blob
	var err error

	if s.FlashDest != nil {
		if s.TextBase == TextBaseUnknown {
			configured := uint32(s.Fdt.GetInt("/chromeos-config",
				"textbase", 0))
			s.TextBase = textbase.Resolve("flasher", configured,
				p.FlashUboot)
		}
		bl1 = p.Bl1
		bl2 = p.Bl2
		image, _, err = flasher.Build(s.Fdt, flasher.Params{
			Uboot:    p.FlashUboot,
			Payload:  p.Payload,
			TextBase: s.TextBase,
			Medium:   *s.FlashDest,
			Update:   s.Update,
			Verify:   s.Verify,
			Bus:      "1:0",
		})
		if err != nil {
			return err
		}
	} else {
		bl1, bl2, image, err = ExtractPayloadParts(p.Payload)
		if err != nil {
			return err
		}
	}

	// The board must see the servo's USB hub for the download port to be
	// powered; remember the current setting so it can be put back.
	preserved, err := s.Servo.HubSel()
	if err != nil {
		return err
	}
	const required = "dut_sees_servo"

	args := []string{"warm_reset:on", "fw_up:on", "pwr_button:press",
		"sleep:.1", "warm_reset:off"}
	if preserved != required {
		args = append(args, "dut_hub_sel:"+required)
	}
	args = append([]string{"cold_reset:on", "sleep:.2", "cold_reset:off"},
		args...)
	util.StatusMessage(util.VERBOSITY_DEFAULT, "Resetting board via servo\n")
	if _, err := s.Servo.Control(args); err != nil {
		return err
	}

	// With a kernel to send, pad the boot loader out to the payload's full
	// size first so the kernel lands where the flash map expects it.
	if p.Kernel.Len() > 0 {
		image, err = image.PadTo(p.Payload.Len())
		if err != nil {
			return err
		}
		image = image.Concat("image-plus-kernel.bin", p.Kernel)
	}

	stages := []struct {
		name string
		addr uint32
		data blob.Blob
	}{
		{"bl1", exynosBl1Addr, bl1},
		{"bl2", exynosBl2Addr, bl2},
		{"u-boot", exynosUbootAddr, image},
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Uploading image\n")

	err = func() error {
		for i, stage := range stages {
			if !s.waitForUSBDevice("exynos", exynosVendorID,
				exynosProductID, exynosStageTimeout) {
				if i == 0 {
					return util.FmtTransientError(
						"Could not find Exynos board on USB port")
				}
				return util.FmtTransientError(
					"Stage '%s' did not complete", stage.name)
			}

			path, err := s.stageBlob(stage.data.Origin(), stage.data)
			if err != nil {
				return err
			}
			util.StatusMessage(util.VERBOSITY_DEFAULT,
				"Uploading stage '%s'\n", stage.name)

			if i == 0 {
				// The IROM needs roughly 200ms before it accepts a USB
				// download.
				s.sleep(500 * time.Millisecond)
			}

			args := []string{"-a", fmt.Sprintf("%#x", stage.addr),
				"-f", path}
			if _, err := s.Tools.Run(exynosDownloadTool, args,
				true); err != nil {
				return err
			}

			if i == 1 {
				// Once the SPL is running the power button can go.
				if _, err := s.Servo.Control([]string{"fw_up:off",
					"pwr_button:release"}); err != nil {
					return err
				}
			}
		}
		return nil
	}()

	// Release the power button and restore the hub selection whatever
	// happened above.
	restore := []string{"fw_up:off", "pwr_button:release"}
	if preserved != required {
		restore = append(restore, "dut_hub_sel:"+preserved)
	}
	if _, rerr := s.Servo.Control(restore); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Image downloaded - please see serial output for progress.\n")
	return nil
}
