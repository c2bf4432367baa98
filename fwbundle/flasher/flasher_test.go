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

package flasher

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/flashscript"
	"github.com/embedfw/fwbundle/fwbundle/tools"
)

// fakeFdtRunner emulates the fdtput calls the builder makes: a string
// property put appends the value to the blob file, which is close enough to
// how the real tool grows the tree.
func fakeFdtRunner(cmdStrs []string, env map[string]string) ([]byte, error) {
	if cmdStrs[0] != "fdtput" {
		return nil, fmt.Errorf("unexpected command %s", cmdStrs[0])
	}

	// fdtput -p -t s <file> <node> <prop> <value>
	file := cmdStrs[4]
	value := cmdStrs[7]
	f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return nil, err
	}
	return nil, nil
}

func TestBuildLayout(t *testing.T) {
	dir, err := ioutil.TempDir("", "flasher_test")
	if err != nil {
		t.Fatalf("TempDir: %s", err.Error())
	}
	defer os.RemoveAll(dir)

	tl := tools.NewInDir(dir)
	tl.SetRunner(fakeFdtRunner)

	fdtFile := filepath.Join(dir, "base.dtb")
	if err := ioutil.WriteFile(fdtFile, make([]byte, 64), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err.Error())
	}
	f := fdt.New(tl, fdtFile)

	uboot := blob.FromBytes("u-boot.bin", bytes.Repeat([]byte{0x55}, 100))
	payload := blob.FromBytes("payload.bin", bytes.Repeat([]byte{0x77}, 50))

	image, layout, err := Build(f, Params{
		Uboot:    uboot,
		Payload:  payload,
		TextBase: 0x00108000,
		Medium:   flashscript.MediumSpi,
		Update:   true,
		Bus:      "0",
	})
	if err != nil {
		t.Fatalf("Build: %s", err.Error())
	}

	// 100 bytes of boot loader plus a small fdt rounds up to one 4KB
	// alignment unit.
	if layout.PayloadOffset != 0x1000 {
		t.Errorf("payload offset = %#x; want 0x1000", layout.PayloadOffset)
	}
	if layout.LoadAddress != 0x00109000 {
		t.Errorf("load address = %#x; want 0x109000", layout.LoadAddress)
	}
	if want := crc32.ChecksumIEEE(payload.Bytes()); layout.Checksum != want {
		t.Errorf("checksum = %#x; want %#x", layout.Checksum, want)
	}

	if image.Len() != 0x1000+50 {
		t.Errorf("image is %d bytes; want %d", image.Len(), 0x1000+50)
	}
	if !bytes.Equal(image.Bytes()[0x1000:], payload.Bytes()) {
		t.Errorf("payload not placed at the payload offset")
	}
	if !bytes.Equal(image.Bytes()[:100], uboot.Bytes()) {
		t.Errorf("boot loader not placed at the image start")
	}

	// The script in the fdt portion carries the resolved address, not the
	// placeholder.
	fdtPortion := string(image.Bytes()[100:0x1000])
	if strings.Contains(fdtPortion, flashscript.Placeholder) {
		t.Errorf("placeholder survived into the built image")
	}
	if !strings.Contains(fdtPortion, "0x00109000") {
		t.Errorf("resolved load address missing from the flash script")
	}

	// The original device tree is untouched.
	orig, err := ioutil.ReadFile(fdtFile)
	if err != nil {
		t.Fatalf("ReadFile: %s", err.Error())
	}
	if !bytes.Equal(orig, make([]byte, 64)) {
		t.Errorf("Build modified the original device tree")
	}
}
