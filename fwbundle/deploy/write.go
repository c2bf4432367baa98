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
	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// WriteParams collects everything a deployment might need.  Which fields
// are used depends on the destination.
type WriteParams struct {
	Dest Destination

	// SD card selection, see SdParams.Dest.
	SdDest string

	// Boot loader used when a flasher has to be built.
	Uboot blob.Blob

	// Path to the binary chip timing file (Tegra only).
	Bct string

	// Pre-boot and SPL binaries (Exynos only).
	Bl1 blob.Blob
	Bl2 blob.Blob

	// The image to deploy.
	Payload blob.Blob

	// Kernel appended after the payload (Exynos only), zero-length for
	// none.
	Kernel blob.Blob

	// Path to the signed boot stub to upload instead of the payload
	// (Tegra only), or empty.
	Bootstub string
}

// Write deploys an image to the selected destination.  Required external
// tools are checked up front so a missing package is reported before the
// board is touched.
func (s *Session) Write(p WriteParams) error {
	switch p.Dest {
	case DestUsbTegra:
		if err := s.Tools.CheckTool(tegraDownloadTool, ""); err != nil {
			return err
		}
		if err := s.TegraFlashImage(TegraParams{
			Uboot:    p.Uboot,
			Bct:      p.Bct,
			Payload:  p.Payload,
			Bootstub: p.Bootstub,
		}); err != nil {
			return err
		}

	case DestUsbExynos:
		if err := s.Tools.CheckTool("lsusb", "usbutils"); err != nil {
			return err
		}
		if err := s.Tools.CheckTool(exynosDownloadTool,
			"smdk-dltool"); err != nil {
			return err
		}
		if err := s.ExynosFlashImage(ExynosParams{
			FlashUboot: p.Uboot,
			Bl1:        p.Bl1,
			Bl2:        p.Bl2,
			Payload:    p.Payload,
			Kernel:     p.Kernel,
		}); err != nil {
			return err
		}

	case DestSd:
		return s.SendToSdCard(SdParams{
			Dest:    p.SdDest,
			Uboot:   p.Uboot,
			Payload: p.Payload,
		})

	case DestSpiEmulator:
		if err := s.Tools.CheckTool(em100Tool, ""); err != nil {
			return err
		}
		return s.Em100FlashImage(p.Payload)

	default:
		return util.FmtConfigError("Unknown destination device '%s'", p.Dest)
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Image uploaded - please wait for flashing to complete\n")
	return nil
}
