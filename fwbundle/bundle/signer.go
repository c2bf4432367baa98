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

package bundle

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

// The signer is driven by a text config file; this is how cbootimage is
// instructed.
const signerTool = "cbootimage"
const bctDumpTool = "bct_dump"

// Substring in the dumped timing table that identifies NAND as the boot
// device.
const nandDevType = "NvBootDevType_Nand"

// Signer invokes the external image signer.  The signer combines a boot
// stub with the board's binary chip timing (BCT) file and produces an image
// the boot ROM will accept.
type Signer struct {
	tools *tools.Tools

	// Path to the board's BCT file.
	Bct string

	// Extra arguments passed through to the signer tool.
	ExtraArgs []string

	bctDump string
}

func NewSigner(t *tools.Tools, bct string) *Signer {
	return &Signer{
		tools: t,
		Bct:   bct,
	}
}

// DumpBct returns the timing table's textual dump.  The dump is fetched
// once and cached for the signer's lifetime.
func (s *Signer) DumpBct() (string, error) {
	if s.bctDump == "" {
		out, err := s.tools.Run(bctDumpTool, []string{s.Bct}, false)
		if err != nil {
			return "", err
		}
		s.bctDump = out
	}

	return s.bctDump, nil
}

// Sign produces a signed image from a boot stub.  outName is the name of
// the signed file inside the working directory.
//
// The signer is assumed size-stable: signing two inputs of equal length
// yields outputs of equal length.  The boot stub assembler relies on this.
func (s *Signer) Sign(bootstub string, textBase uint32,
	outName string) (string, error) {

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Signing boot stub\n")

	signed := s.tools.OutPath(outName)
	config := s.tools.OutPath("boot.cfg")

	var b strings.Builder
	fmt.Fprintf(&b, "Version    = 1;\n")
	fmt.Fprintf(&b, "Redundancy = 1;\n")
	fmt.Fprintf(&b, "Bctfile    = %s;\n", s.Bct)

	// There is not enough room in the NAND flash map for two copies of
	// the BCT, so drop to one.
	dump, err := s.DumpBct()
	if err != nil {
		return "", err
	}
	if strings.Contains(dump, nandDevType) {
		fmt.Fprintf(&b, "Bctcopy = 1;\n")
	}

	fmt.Fprintf(&b, "BootLoader = %s,%#x,%#x,Complete;\n", bootstub,
		textBase, textBase)

	if err := ioutil.WriteFile(config, []byte(b.String()), 0644); err != nil {
		return "", util.ChildBundleError(err)
	}

	args := append(append([]string{}, s.ExtraArgs...), config, signed)
	if _, err := s.tools.Run(signerTool, args, false); err != nil {
		return "", err
	}

	s.tools.OutputSize("BCT", s.Bct)
	s.tools.OutputSize("Signed image", signed)
	return signed, nil
}
