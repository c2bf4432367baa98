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

package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/mparams"
	"github.com/embedfw/fwbundle/fwbundle/deploy"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/flashscript"
	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

var writeDest string
var writeImage string
var writeFdt string
var writeUboot string
var writeBct string
var writeBl1 string
var writeBl2 string
var writeKernel string
var writeBootstub string
var writeFlashDest string
var writeServo string
var writeSplSource string
var writeUpdate bool
var writeVerify bool
var writeOutDir string

// readOptional reads a blob from a path, or returns a zero blob for "".
func readOptional(path string) (blob.Blob, error) {
	if path == "" {
		return blob.Blob{}, nil
	}
	return blob.ReadFile(path)
}

func writeRunCmd(cmd *cobra.Command, args []string) {
	if writeDest == "" || writeImage == "" || writeFdt == "" {
		BundleUsage(cmd, util.NewBundleError(
			"Must specify --dest, --image and --fdt"))
	}

	// An "sd" destination carries the card selection after the first
	// colon, e.g. "sd:." or "sd:/dev/sdd".
	destStr := writeDest
	sdDest := ""
	if strings.HasPrefix(destStr, "sd:") {
		sdDest = destStr[2:]
		destStr = "sd"
	}
	dest, err := deploy.ParseDestination(destStr)
	if err != nil {
		BundleUsage(cmd, err)
	}

	t, err := tools.New()
	if err != nil {
		BundleUsage(nil, err)
	}
	defer t.Close(writeOutDir)

	f := fdt.New(t, writeFdt)

	servo, err := deploy.SelectServo(t, writeServo)
	if err != nil {
		BundleUsage(cmd, err)
	}

	sess := deploy.NewSession(t, f, servo)
	sess.Update = writeUpdate
	sess.Verify = writeVerify

	if writeFlashDest != "" {
		medium, err := flashscript.ParseMedium(writeFlashDest)
		if err != nil {
			BundleUsage(cmd, err)
		}
		sess.FlashDest = &medium
	}
	sess.SplSource, err = mparams.ParseBootSource(writeSplSource)
	if err != nil {
		BundleUsage(cmd, err)
	}

	payload, err := blob.ReadFile(writeImage)
	if err != nil {
		BundleUsage(nil, err)
	}
	uboot, err := readOptional(writeUboot)
	if err != nil {
		BundleUsage(nil, err)
	}
	bl1, err := readOptional(writeBl1)
	if err != nil {
		BundleUsage(nil, err)
	}
	bl2, err := readOptional(writeBl2)
	if err != nil {
		BundleUsage(nil, err)
	}
	kernel, err := readOptional(writeKernel)
	if err != nil {
		BundleUsage(nil, err)
	}

	err = sess.Write(deploy.WriteParams{
		Dest:     dest,
		SdDest:   sdDest,
		Uboot:    uboot,
		Bct:      writeBct,
		Bl1:      bl1,
		Bl2:      bl2,
		Payload:  payload,
		Kernel:   kernel,
		Bootstub: writeBootstub,
	})
	if err != nil {
		BundleUsage(nil, err)
	}
}

func AddWriteCommands(cmd *cobra.Command) {
	writeHelpText := FormatHelp(`Write a firmware image to a device.  The
		destination selects the transport: usb-tegra uploads over a USB A-A
		cable to a board in recovery mode, usb-exynos performs the
		three-stage Exynos USB download, sd:<selection> writes a removable
		SD card, and spi-emulator loads an EM100 SPI flash emulator.`)
	writeHelpEx := "  fwbundle write --dest usb-tegra --image image.bin" +
		" --fdt board.dtb --bct board.bct\n"
	writeHelpEx += "  fwbundle write --dest sd:. --image image.bin" +
		" --fdt board.dtb --flash-dest spi"

	writeCmd := &cobra.Command{
		Use:     "write",
		Short:   "Write a firmware image to a device",
		Long:    writeHelpText,
		Example: writeHelpEx,
		Run:     writeRunCmd,
	}

	writeCmd.PersistentFlags().StringVarP(&writeDest, "dest", "w", "",
		"Destination device (usb-tegra, usb-exynos, sd:<selection>, "+
			"spi-emulator)")
	writeCmd.PersistentFlags().StringVarP(&writeImage, "image", "i", "",
		"Image to write")
	writeCmd.PersistentFlags().StringVar(&writeFdt, "fdt", "",
		"Device tree blob for the board")
	writeCmd.PersistentFlags().StringVar(&writeUboot, "uboot", "",
		"Boot loader binary used to build a flasher")
	writeCmd.PersistentFlags().StringVar(&writeBct, "bct", "",
		"Binary chip timing file (usb-tegra)")
	writeCmd.PersistentFlags().StringVar(&writeBl1, "bl1", "",
		"Pre-boot binary (usb-exynos)")
	writeCmd.PersistentFlags().StringVar(&writeBl2, "bl2", "",
		"Secondary loader binary (usb-exynos)")
	writeCmd.PersistentFlags().StringVar(&writeKernel, "kernel", "",
		"Kernel to send after the image (usb-exynos)")
	writeCmd.PersistentFlags().StringVar(&writeBootstub, "bootstub", "",
		"Signed boot stub to upload instead of the image (usb-tegra)")
	writeCmd.PersistentFlags().StringVarP(&writeFlashDest, "flash-dest",
		"F", "", "Build a flasher programming this medium "+
			"(nand, sdmmc, spi)")
	writeCmd.PersistentFlags().StringVar(&writeServo, "servo", "any",
		"Servo to use: none, any, or a port number")
	writeCmd.PersistentFlags().StringVar(&writeSplSource, "spl-source",
		"straps", "Boot source the secondary loader is patched for")
	writeCmd.PersistentFlags().BoolVar(&writeUpdate, "update", true,
		"Use the faster update algorithm instead of a full erase")
	writeCmd.PersistentFlags().BoolVar(&writeVerify, "verify", false,
		"Verify the write with a readback and CRC")
	writeCmd.PersistentFlags().StringVarP(&writeOutDir, "outdir", "d", "",
		"Directory to preserve the work directory contents in")

	cmd.AddCommand(writeCmd)
}
