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
	"time"

	"github.com/embedfw/fwbundle/util"
)

// waitForUSBDevice polls the USB bus until a device with the given vendor
// and product ID enumerates, or the timeout passes.  Returns false on
// timeout; absence is a state here, not an error.
func (s *Session) waitForUSBDevice(name string, vendorID, productID uint16,
	timeout time.Duration) bool {

	util.StatusMessage(util.VERBOSITY_DEFAULT,
		"Waiting for board to appear on USB bus\n")

	args := []string{"-d", fmt.Sprintf("%04x:%04x", vendorID, productID)}
	deadline := s.now().Add(timeout)
	for s.now().Before(deadline) {
		if _, err := s.Tools.Run("lsusb", args, true); err == nil {
			util.StatusMessage(util.VERBOSITY_DEFAULT, "Found %s board\n",
				name)
			return true
		}
		s.sleep(100 * time.Millisecond)
	}

	return false
}
