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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/textbase"
	"github.com/embedfw/fwbundle/util"
)

const bctDumpOutput = "Version = 1;\nDevType[0] = NvBootDevType_Snor;\n"

func TestTegraRetriesTransientFailures(t *testing.T) {
	failures := 3
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		switch cmd[0] {
		case "bct_dump":
			return bctDumpOutput, nil
		case "tegrarcm":
			if fr.count("tegrarcm") <= failures {
				return "", errors.New("could not open USB device")
			}
			return "", nil
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.TextBase = 0x00108000

	err := s.TegraFlashImage(TegraParams{
		Bct:      "board.bct",
		Payload:  blob.FromBytes("image.bin", make([]byte, 128)),
		Bootstub: "bootstub.bin",
	})
	if err != nil {
		t.Fatalf("TegraFlashImage: %s", err.Error())
	}

	// Three failed attempts plus the one that succeeded.
	if n := fr.count("tegrarcm"); n != failures+1 {
		t.Errorf("tegrarcm ran %d times; want %d", n, failures+1)
	}

	cmd := fr.last("tegrarcm")
	wantArgs := []string{"--bct", "board.bct", "--bootloader",
		"bootstub.bin", "--loadaddr", "0x108000"}
	if len(cmd) != len(wantArgs)+1 {
		t.Fatalf("tegrarcm args = %v", cmd)
	}
	for i, w := range wantArgs {
		if cmd[i+1] != w {
			t.Fatalf("tegrarcm args = %v; want %v", cmd[1:], wantArgs)
		}
	}
}

func TestTegraDoesNotRetryOtherFailures(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		switch cmd[0] {
		case "bct_dump":
			return bctDumpOutput, nil
		case "tegrarcm":
			return "", errors.New("unrecognized option '--bct'")
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.TextBase = 0x00108000

	err := s.TegraFlashImage(TegraParams{
		Bct:      "board.bct",
		Payload:  blob.FromBytes("image.bin", make([]byte, 128)),
		Bootstub: "bootstub.bin",
	})
	if err == nil {
		t.Fatalf("hard tool failure was swallowed")
	}
	if util.IsTransient(err) {
		t.Errorf("hard failure classified transient: %s", err.Error())
	}
	if n := fr.count("tegrarcm"); n != 1 {
		t.Errorf("tegrarcm ran %d times; want 1", n)
	}
}

func TestTegraGivesUpAfterMaxAttempts(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		switch cmd[0] {
		case "bct_dump":
			return bctDumpOutput, nil
		case "tegrarcm":
			return "", errors.New("could not open USB device")
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.TextBase = 0x00108000

	err := s.TegraFlashImage(TegraParams{
		Bct:      "board.bct",
		Payload:  blob.FromBytes("image.bin", make([]byte, 128)),
		Bootstub: "bootstub.bin",
	})
	if err == nil {
		t.Fatalf("permanent enumeration failure was swallowed")
	}
	if !util.IsTransient(err) {
		t.Errorf("exhaustion error not transient: %s", err.Error())
	}
	if n := fr.count("tegrarcm"); n != tegraAttempts {
		t.Errorf("tegrarcm ran %d times; want %d", n, tegraAttempts)
	}
}

func TestTegraDecodesTextBaseFromPayload(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		if cmd[0] == "bct_dump" {
			return bctDumpOutput, nil
		}
		return "", nil
	}

	// The payload opens with the 64KB timing table; the boot loader and
	// its header follow.
	payload := make([]byte, tegraBctSize+256)
	binary.LittleEndian.PutUint32(payload[tegraBctSize+8:],
		textbase.Sentinel)
	binary.LittleEndian.PutUint32(payload[tegraBctSize+12:], 0x0010c000)

	s := newTestSession(t, fr)

	err := s.TegraFlashImage(TegraParams{
		Bct:     "board.bct",
		Payload: blob.FromBytes("image.bin", payload),
	})
	if err != nil {
		t.Fatalf("TegraFlashImage: %s", err.Error())
	}

	cmd := fr.last("tegrarcm")
	if cmd == nil {
		t.Fatalf("tegrarcm not invoked")
	}
	if cmd[len(cmd)-1] != "0x10c000" {
		t.Errorf("loadaddr = %s; want 0x10c000", cmd[len(cmd)-1])
	}
}

func TestTegraBootDeviceParse(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		return "Version = 1;\nDevType[0] = NvBootDevType_Sdmmc;\n", nil
	}
	s := newTestSession(t, fr)

	boot, err := s.bootDevice("board.bct")
	if err != nil {
		t.Fatalf("bootDevice: %s", err.Error())
	}
	if boot != "sdmmc" {
		t.Errorf("boot device = %s; want sdmmc", boot)
	}

	fr.handler = func(cmd []string) (string, error) {
		return "no device here\n", nil
	}
	if _, err := s.bootDevice("board.bct"); err == nil {
		t.Errorf("missing DevType line accepted")
	}
}
