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
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/textbase"
	"github.com/embedfw/fwbundle/fwbundle/flasher"
	"github.com/embedfw/fwbundle/fwbundle/flashscript"
	"github.com/embedfw/fwbundle/util"
)

const tegraDownloadTool = "tegrarcm"

// The timing table names its boot device like "DevType[0] = NvBootDevType_Snor;".
var bootDevTypeRe = regexp.MustCompile(
	`DevType\[0\] = NvBootDevType_([a-zA-Z]+);`)

// How many times the download tool is retried while the operator connects
// the cable and resets the board into recovery mode.
const tegraAttempts = 10

// The signed image starts with a 64KB timing table; the boot loader whose
// text base we may need to decode follows it.
const tegraBctSize = 0x10000

// TegraParams describes one Tegra recovery-mode upload.
type TegraParams struct {
	// Boot loader used to build a flasher.
	Uboot blob.Blob

	// Path to the binary chip timing file.
	Bct string

	// The image to program.
	Payload blob.Blob

	// Path to the signed boot stub to upload instead of the payload, or
	// empty.
	Bootstub string
}

// bootDevice pulls the boot device type out of the dumped timing table.
func (s *Session) bootDevice(bct string) (string, error) {
	out, err := s.Tools.Run("bct_dump", []string{bct}, false)
	if err != nil {
		return "", err
	}

	m := bootDevTypeRe.FindStringSubmatch(out)
	if m == nil {
		return "", util.FmtFormatError(
			"No boot device type in timing table %s", bct)
	}
	return strings.ToLower(m[1]), nil
}

// TegraFlashImage uploads an image over a USB A-A cable to a Tegra board in
// recovery mode.  With a flash destination set, a flasher wrapping the
// payload is built and uploaded; otherwise the boot stub or the payload
// itself is sent.
//
// The download tool fails while the operator has not yet reset the board
// into recovery mode.  Only that failure is retried; anything else aborts
// at once.
func (s *Session) TegraFlashImage(p TegraParams) error {
	// The boot device is chosen by the timing table, not the flash
	// destination option.
	bootType, err := s.bootDevice(p.Bct)
	if err != nil {
		return err
	}

	var image string
	if s.FlashDest != nil {
		medium, err := flashscript.ParseMedium(bootType)
		if err != nil {
			return err
		}
		if s.TextBase == TextBaseUnknown {
			configured := uint32(s.Fdt.GetInt("/chromeos-config",
				"textbase", 0))
			s.TextBase = textbase.Resolve("flasher", configured, p.Uboot)
		}

		flashImage, _, err := flasher.Build(s.Fdt, flasher.Params{
			Uboot:    p.Uboot,
			Payload:  p.Payload,
			TextBase: s.TextBase,
			Medium:   medium,
			Update:   s.Update,
			Verify:   s.Verify,
			Bus:      "0",
		})
		if err != nil {
			return err
		}
		image, err = s.stageBlob("flasher-for-image.bin", flashImage)
		if err != nil {
			return err
		}
	} else if p.Bootstub != "" {
		image = p.Bootstub
	} else {
		image, err = s.stageBlob("image.bin", p.Payload)
		if err != nil {
			return err
		}
		if s.TextBase == TextBaseUnknown {
			loader, err := p.Payload.Slice(tegraBctSize,
				p.Payload.Len()-tegraBctSize)
			if err != nil {
				return err
			}
			base, found := textbase.Decode(
				blob.New(p.Payload.Origin(), loader))
			if !found {
				return util.FmtFormatError(
					"Could not decode TEXT_BASE from %s",
					p.Payload.Origin())
			}
			s.TextBase = base
		}
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "TEXT_BASE is %#x\n",
		s.TextBase)
	util.StatusMessage(util.VERBOSITY_DEFAULT, "Uploading flasher image\n")

	args := []string{
		"--bct", p.Bct,
		"--bootloader", image,
		"--loadaddr", fmt.Sprintf("%#x", s.TextBase),
	}

	lastErr := ""
	for attempt := 0; attempt < tegraAttempts; attempt++ {
		_, err := s.runRecovery(tegraDownloadTool, args)
		if err == nil {
			util.StatusMessage(util.VERBOSITY_DEFAULT,
				"Flasher downloaded - please see serial output for "+
					"progress.\n")
			return nil
		}
		if !util.IsTransient(err) {
			return err
		}

		// Show each distinct failure once, then just keep retrying.
		if err.Error() != lastErr {
			lastErr = err.Error()
			util.StatusMessage(util.VERBOSITY_DEFAULT, "%s\n", lastErr)
			util.StatusMessage(util.VERBOSITY_DEFAULT,
				"Please connect USB A-A cable and do a recovery-reset\n")
		}
		s.sleep(time.Second)
	}

	return util.FmtTransientError(
		"Image upload failed - please check board connection")
}
