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

// Package deploy sends a built firmware image to a device, over a
// recovery-mode USB transport, to an SD card, or to a SPI flash emulator.
package deploy

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/mparams"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/fwbundle/flashscript"
	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

// Destination is where an image gets deployed.
type Destination int

const (
	// Tegra recovery mode over a USB A-A cable.
	DestUsbTegra Destination = iota

	// Exynos multi-stage USB download.
	DestUsbExynos

	// Removable SD card via a block-device write.
	DestSd

	// Dediprog EM100 SPI flash emulator.
	DestSpiEmulator
)

var destNames = []string{"usb-tegra", "usb-exynos", "sd", "spi-emulator"}

func ParseDestination(s string) (Destination, error) {
	for i, name := range destNames {
		if name == s {
			return Destination(i), nil
		}
	}
	return 0, util.FmtConfigError("Unknown destination device '%s'", s)
}

func (d Destination) String() string {
	return destNames[d]
}

// Session holds the transient state of one provisioning attempt.  A session
// is created per invocation and discarded when the attempt finishes; no
// state survives into the next invocation.
type Session struct {
	Tools *tools.Tools
	Fdt   *fdt.Fdt
	Servo *Servo

	// Flasher generation options.
	Update bool
	Verify bool

	// Medium the flasher programs, or nil to deploy without building a
	// flasher.
	FlashDest *flashscript.Medium

	// Boot source the SPL parameter block is patched with.
	SplSource mparams.BootSource

	// Link address of the boot loader; resolved lazily from the image
	// when left at TextBaseUnknown.
	TextBase uint32

	// Injected for tests; default to time.Sleep, time.Now and
	// /sys/block.
	sleep    func(d time.Duration)
	now      func() time.Time
	sysBlock string
}

// TextBaseUnknown means the session has no text base yet and must decode
// one from the payload.
const TextBaseUnknown = 0xffffffff

func NewSession(t *tools.Tools, f *fdt.Fdt, servo *Servo) *Session {
	return &Session{
		Tools:     t,
		Fdt:       f,
		Servo:     servo,
		Update:    true,
		SplSource: mparams.BootStraps,
		TextBase:  TextBaseUnknown,
		sleep:     time.Sleep,
		now:       time.Now,
		sysBlock:  "/sys/block",
	}
}

// stageBlob writes a blob into the working directory so external tools can
// consume it, returning the staged path.  Origins may be full paths, so
// only the base name is used.
func (s *Session) stageBlob(name string, b blob.Blob) (string, error) {
	path := s.Tools.OutPath(filepath.Base(name))
	if err := s.Tools.WriteFile(path, b.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// The recovery-mode loader reports an unenumerated device with this text.
// The tool wrapper turns the substring into a structured transient error so
// retry decisions do not depend on string matching at the call sites.
const notEnumeratedText = "could not open USB device"

// runRecovery invokes an external download tool, classifying the
// "device not enumerated yet" failure as transient.
func (s *Session) runRecovery(name string, args []string) (string, error) {
	out, err := s.Tools.Run(name, args, true)
	if err == nil {
		return out, nil
	}

	if strings.Contains(err.Error(), notEnumeratedText) {
		terr := util.FmtTransientError("%s", err.Error())
		terr.Parent = err
		return out, terr
	}

	return out, err
}
