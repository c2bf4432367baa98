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

const em100Tool = "em100"

// SPI flash chip the emulator pretends to be.
// TODO: pick this up from the device tree instead of hardcoding.
const em100Chip = "W25Q64CV"

// Em100FlashImage sends an image to an attached Dediprog EM100 SPI flash
// emulation device.  The servo takes the real SPI flash off the bus first,
// then the image is loaded into the emulator and the board is reset to boot
// from it.
func (s *Session) Em100FlashImage(image blob.Blob) error {
	args := []string{"spi2_vref:off", "spi2_buf_en:off",
		"spi2_buf_on_flex_en:off", "spi_hold:on"}
	if _, err := s.Servo.Control(args); err != nil {
		return err
	}

	path, err := s.stageBlob("em100-image.bin", image)
	if err != nil {
		return err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Writing image to em100\n")
	args = []string{"-c", em100Chip, "-d", path, "-r"}
	if _, err := s.Tools.Run(em100Tool, args, true); err != nil {
		return err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Resetting board\n")
	args = []string{"cold_reset:on", "sleep:.2", "cold_reset:off",
		"sleep:.5", "pwr_button:press", "sleep:.2", "pwr_button:release"}
	_, err = s.Servo.Control(args)
	return err
}
