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
	"strconv"
	"strings"

	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

const dutControlTool = "dut-control"

// Servo drives a board's debug header through dut-control.
//
// The port selects which servo to talk to:
//
//	nil  servo access is forbidden; any control attempt fails
//	0    any available servo
//	N    the servo listening on port N
type Servo struct {
	tools *tools.Tools
	port  *int
}

// SelectServo parses a servo selection string: "none", "any", or a port
// number.
func SelectServo(t *tools.Tools, servo string) (*Servo, error) {
	s := &Servo{tools: t}

	switch servo {
	case "none":
		s.port = nil
	case "any":
		port := 0
		s.port = &port
	default:
		port, err := strconv.Atoi(servo)
		if err != nil {
			return nil, util.FmtConfigError(
				"Invalid servo selection '%s'; use none, any or a port "+
					"number", servo)
		}
		s.port = &port
	}

	if s.port == nil {
		util.StatusMessage(util.VERBOSITY_VERBOSE, "Servo port none\n")
	} else {
		util.StatusMessage(util.VERBOSITY_VERBOSE, "Servo port %d\n",
			*s.port)
	}
	return s, nil
}

// Control runs dut-control with the given arguments against the selected
// servo.
func (s *Servo) Control(args []string) (string, error) {
	if s.port == nil {
		return "", util.FmtConfigError(
			"No servo access available, please use --servo")
	}
	if *s.port != 0 {
		args = append(args, "-p", strconv.Itoa(*s.port))
	}
	return s.tools.Run(dutControlTool, args, false)
}

// HubSel reads the current dut_hub_sel setting, e.g. "dut_sees_servo".
func (s *Servo) HubSel() (string, error) {
	out, err := s.Control([]string{"dut_hub_sel"})
	if err != nil {
		return "", err
	}

	// dut-control prints "name:value".
	out = strings.TrimSpace(out)
	if i := strings.LastIndex(out, ":"); i >= 0 {
		out = out[i+1:]
	}
	return out, nil
}
