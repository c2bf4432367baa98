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
	"strconv"
	"strings"

	"github.com/apache/mynewt-artifact/flash"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/mparams"
	"github.com/embedfw/fwbundle/fwbundle/bundle"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/pack"
	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

var bundleUboot string
var bundleFdt string
var bundleBct string
var bundlePostload string
var bundleExynosBl2 string
var bundleSplSource string
var bundleSignerFlags string
var bundleAreas []string
var bundleOutDir string

// parseArea parses a "name:offset:size[:file]" flash area spec.  The file
// defaults to the signed boot stub.
func parseArea(spec string, dfltFile string) (flash.FlashArea, string,
	error) {

	var area flash.FlashArea

	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return area, "", util.FmtConfigError(
			"Invalid flash area '%s'; expected name:offset:size[:file]",
			spec)
	}

	offset, err := strconv.ParseUint(parts[1], 0, 32)
	if err != nil {
		return area, "", util.FmtConfigError(
			"Invalid offset in flash area '%s'", spec)
	}
	size, err := strconv.ParseUint(parts[2], 0, 32)
	if err != nil {
		return area, "", util.FmtConfigError(
			"Invalid size in flash area '%s'", spec)
	}

	area.Name = parts[0]
	area.Offset = int(offset)
	area.Size = int(size)

	file := dfltFile
	if len(parts) == 4 {
		file = parts[3]
	}
	return area, file, nil
}

func bundleRunCmd(cmd *cobra.Command, args []string) {
	if bundleUboot == "" || bundleFdt == "" || bundleBct == "" {
		BundleUsage(cmd, util.NewBundleError(
			"Must specify --uboot, --fdt and --bct"))
	}

	t, err := tools.New()
	if err != nil {
		BundleUsage(nil, err)
	}
	defer t.Close(bundleOutDir)

	f := fdt.New(t, bundleFdt)

	signer := bundle.NewSigner(t, bundleBct)
	if bundleSignerFlags != "" {
		extra, err := shellquote.Split(bundleSignerFlags)
		if err != nil {
			BundleUsage(cmd, util.ChildBundleError(err))
		}
		signer.ExtraArgs = extra
	}

	uboot, err := blob.ReadFile(bundleUboot)
	if err != nil {
		BundleUsage(nil, err)
	}

	var postload blob.Blob
	if bundlePostload != "" {
		postload, err = blob.ReadFile(bundlePostload)
		if err != nil {
			BundleUsage(nil, err)
		}
	}

	asm := bundle.NewAssembler(t, signer, f)
	res, err := asm.Assemble(uboot, postload)
	if err != nil {
		BundleUsage(nil, err)
	}

	if bundleExynosBl2 != "" {
		source, err := mparams.ParseBootSource(bundleSplSource)
		if err != nil {
			BundleUsage(cmd, err)
		}
		bl2, err := blob.ReadFile(bundleExynosBl2)
		if err != nil {
			BundleUsage(nil, err)
		}

		signedData, err := blob.ReadFile(res.SignedPath)
		if err != nil {
			BundleUsage(nil, err)
		}
		bl2, err = bundle.ConfigureBl2(f, signedData.Len(), bl2, source)
		if err != nil {
			BundleUsage(nil, err)
		}
		if err := t.WriteFile(t.OutPath("updated-spl.bin"),
			bl2.Bytes()); err != nil {
			BundleUsage(nil, err)
		}
		t.OutputSize("Updated SPL", t.OutPath("updated-spl.bin"))
	}

	if len(bundleAreas) > 0 {
		var areas []flash.FlashArea
		blobs := map[string]blob.Blob{}
		for _, spec := range bundleAreas {
			area, file, err := parseArea(spec, res.SignedPath)
			if err != nil {
				BundleUsage(cmd, err)
			}
			b, err := blob.ReadFile(file)
			if err != nil {
				BundleUsage(nil, err)
			}
			areas = append(areas, area)
			blobs[area.Name] = b
		}

		image, err := pack.Image(areas, blobs)
		if err != nil {
			BundleUsage(nil, err)
		}
		if err := t.WriteFile(t.OutPath("image.bin"),
			image.Bytes()); err != nil {
			BundleUsage(nil, err)
		}
		t.OutputSize("Flash image", t.OutPath("image.bin"))
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Boot stub assembled (text base %#x)\n", res.TextBase)
	if bundleOutDir != "" {
		util.StatusMessage(util.VERBOSITY_DEFAULT,
			"Artifacts will be preserved in %s\n", bundleOutDir)
	}
}

func AddBundleCommands(cmd *cobra.Command) {
	bundleHelpText := FormatHelp(`Assemble a signed boot stub from a boot
		loader binary, a device tree and a binary chip timing file.  An
		optional postload binary is appended after signing, and an optional
		list of flash areas packs the results into a full flash image.`)
	bundleHelpEx := "  fwbundle bundle --uboot u-boot.bin --fdt board.dtb" +
		" --bct board.bct\n"
	bundleHelpEx += "  fwbundle bundle --uboot u-boot.bin --fdt board.dtb" +
		" --bct board.bct \\\n      --area ro-boot:0x0:0x100000 -d out/"

	bundleCmd := &cobra.Command{
		Use:     "bundle",
		Short:   "Assemble and sign a firmware image",
		Long:    bundleHelpText,
		Example: bundleHelpEx,
		Run:     bundleRunCmd,
	}

	bundleCmd.PersistentFlags().StringVar(&bundleUboot, "uboot", "",
		"Boot loader binary (u-boot.bin)")
	bundleCmd.PersistentFlags().StringVar(&bundleFdt, "fdt", "",
		"Device tree blob for the board")
	bundleCmd.PersistentFlags().StringVar(&bundleBct, "bct", "",
		"Binary chip timing file")
	bundleCmd.PersistentFlags().StringVar(&bundlePostload, "postload", "",
		"Binary to append after the signed portion")
	bundleCmd.PersistentFlags().StringVar(&bundleExynosBl2, "exynos-bl2",
		"", "Secondary loader to patch with the board's memory parameters")
	bundleCmd.PersistentFlags().StringVar(&bundleSplSource, "spl-source",
		"straps", "Boot source for the secondary loader "+
			"(straps, emmc, spi, usb)")
	bundleCmd.PersistentFlags().StringVar(&bundleSignerFlags,
		"signer-flags", "", "Extra arguments passed to the signer tool")
	bundleCmd.PersistentFlags().StringArrayVar(&bundleAreas, "area", nil,
		"Flash area as name:offset:size[:file]; repeatable")
	bundleCmd.PersistentFlags().StringVarP(&bundleOutDir, "outdir", "d",
		"", "Directory to preserve the work directory contents in")

	cmd.AddCommand(bundleCmd)
}
