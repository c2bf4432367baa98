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

// Package bundle builds signed boot stubs from a boot loader, a device
// tree, and the board's timing configuration.
//
// File naming used throughout:
//
//	uboot     u-boot.bin (with no device tree)
//	fdt       the device tree blob
//	bct       the binary chip timing file
//	bootstub  uboot + fdt
//	signed    signed (uboot + fdt + bct) blob
package bundle

import (
	"os"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/textbase"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

// Sentinel value for the postload-text-offset property meaning "the
// postload code immediately follows the boot stub".  The unsigned stub gets
// this value; the signed stub gets the real flash offset once it is known.
const postloadFollows = 0xffffffff

// Assembler builds boot stubs for one board.
type Assembler struct {
	tools  *tools.Tools
	signer *Signer

	// The board's device tree; copies are taken per stub, the original
	// is never written to.
	Fdt *fdt.Fdt
}

func NewAssembler(t *tools.Tools, signer *Signer, f *fdt.Fdt) *Assembler {
	return &Assembler{
		tools:  t,
		signer: signer,
		Fdt:    f,
	}
}

// Result holds the artifacts of one boot stub build.
type Result struct {
	// The unsigned stub: uboot + fdt (+ postload appended raw).
	BootstubPath string

	// The signed stub, with postload appended if one was supplied.
	SignedPath string

	// The text base the stub was signed for.
	TextBase uint32
}

// CalcTextBase decides the text base for a boot loader binary.  The board
// config's declared value is used unless the binary itself decodes to a
// different one, in which case the decoded value wins with a warning.
func (a *Assembler) CalcTextBase(name string, uboot blob.Blob) uint32 {
	configured := uint32(a.Fdt.GetInt("/chromeos-config", "textbase", 0))
	return textbase.Resolve(name, configured, uboot)
}

// Assemble builds and signs a boot stub.  postload is an optional binary
// appended after the signed image; pass a zero-length blob for none.
//
// With a postload the signer runs twice.  The flash offset of the postload
// code equals the signed image's size, but that size is only known after
// signing, and the offset must be embedded in the plaintext device tree
// that gets signed.  So: sign once to learn the size, patch the offset,
// sign again, and require the size not to drift.
func (a *Assembler) Assemble(uboot blob.Blob, postload blob.Blob) (Result,
	error) {

	var res Result

	res.TextBase = a.CalcTextBase("", uboot)

	stubFdt, err := a.Fdt.Copy("bootstub.dtb")
	if err != nil {
		return res, err
	}
	if err := stubFdt.PutInteger("/config", "postload-text-offset",
		postloadFollows); err != nil {
		return res, err
	}

	fdtData, err := blob.ReadFile(stubFdt.Fname())
	if err != nil {
		return res, err
	}

	bootstub := a.tools.OutPath("u-boot-fdt.bin")
	stubData := uboot.Concat(bootstub, fdtData)
	if err := a.tools.WriteFile(bootstub, stubData.Bytes()); err != nil {
		return res, err
	}
	a.tools.OutputSize("Combined binary", bootstub)

	signed, err := a.signer.Sign(bootstub, res.TextBase, "signed.bin")
	if err != nil {
		return res, err
	}

	signedData, err := blob.ReadFile(signed)
	if err != nil {
		return res, err
	}

	if postload.Len() > 0 {
		// The raw stub gets the postload appended directly, so firmware
		// that boots the stub from RAM can find it without the
		// postload-text-offset property.
		bootstub = a.tools.OutPath("u-boot-fdt-postload.bin")
		withPost := stubData.Concat(bootstub, postload)
		if err := a.tools.WriteFile(bootstub, withPost.Bytes()); err != nil {
			return res, err
		}
		a.tools.OutputSize("Combined binary with postload", bootstub)

		// Now that the signed size is known, embed it as the postload
		// offset and re-sign.
		if err := stubFdt.PutInteger("/config", "postload-text-offset",
			uint32(signedData.Len())); err != nil {
			return res, err
		}
		fdtData, err = blob.ReadFile(stubFdt.Fname())
		if err != nil {
			return res, err
		}

		postStub := a.tools.OutPath("postload.bin")
		postStubData := uboot.Concat(postStub, fdtData)
		if err := a.tools.WriteFile(postStub,
			postStubData.Bytes()); err != nil {
			return res, err
		}

		signed, err = a.signer.Sign(postStub, res.TextBase, "signed.bin")
		if err != nil {
			return res, err
		}

		fi, err := os.Stat(signed)
		if err != nil {
			return res, util.ChildBundleError(err)
		}
		if int64(signedData.Len()) != fi.Size() {
			return res, util.FmtConsistencyError(
				"Signed file size changed from %d to %d after updating "+
					"fdt", signedData.Len(), fi.Size())
		}

		signedData, err = blob.ReadFile(signed)
		if err != nil {
			return res, err
		}
		signedData = signedData.Concat("signed-postload.bin", postload)
		a.tools.OutputSize("Post-load binary", postload.Origin())
	}

	signedPostload := a.tools.OutPath("signed-postload.bin")
	if err := a.tools.WriteFile(signedPostload,
		signedData.Bytes()); err != nil {
		return res, err
	}
	a.tools.OutputSize("Final boot stub", signedPostload)

	res.BootstubPath = bootstub
	res.SignedPath = signedPostload
	return res, nil
}
