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
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/embedfw/fwbundle/artifact/blob"
)

// fakeSysBlock builds a sysfs fixture holding one removable disk entry.
func fakeSysBlock(t *testing.T, name string, removable string) string {
	t.Helper()

	dir, err := ioutil.TempDir("", "sysblock")
	if err != nil {
		t.Fatalf("TempDir: %s", err.Error())
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	diskDir := filepath.Join(dir, name)
	if err := os.Mkdir(diskDir, 0755); err != nil {
		t.Fatalf("Mkdir: %s", err.Error())
	}
	if err := ioutil.WriteFile(filepath.Join(diskDir, "removable"),
		[]byte(removable+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err.Error())
	}
	return dir
}

const fdiskOutput = "Disk /dev/sdzq: 7859 MB, 7859101696 bytes\n" +
	"255 heads, 63 sectors/track\n"

func TestListRemovableDisks(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		if cmd[0] == "fdisk" {
			return fdiskOutput, nil
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.sysBlock = fakeSysBlock(t, "sdzq", "1")

	disks, err := s.ListRemovableDisks()
	if err != nil {
		t.Fatalf("ListRemovableDisks: %s", err.Error())
	}
	if len(disks) != 1 {
		t.Fatalf("found %d disks; want 1", len(disks))
	}

	d := disks[0]
	if d.Device != "/dev/sdzq" {
		t.Errorf("device = %s; want /dev/sdzq", d.Device)
	}
	// 7859 MB lands at 8 GB.
	if d.Capacity != 8 {
		t.Errorf("capacity = %d; want 8", d.Capacity)
	}
	if !strings.HasPrefix(d.Desc, "/dev/sdzq: ") {
		t.Errorf("desc = %s", d.Desc)
	}
}

func TestListSkipsFixedDisks(t *testing.T) {
	fr := &fakeRunner{}
	s := newTestSession(t, fr)
	s.sysBlock = fakeSysBlock(t, "sda", "0")

	disks, err := s.ListRemovableDisks()
	if err != nil {
		t.Fatalf("ListRemovableDisks: %s", err.Error())
	}
	if len(disks) != 0 {
		t.Errorf("fixed disk listed as removable")
	}
}

func TestSendToSdCardOnlyDisk(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		if cmd[0] == "fdisk" {
			return fdiskOutput, nil
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.sysBlock = fakeSysBlock(t, "sdzq", "1")

	payload := blob.FromBytes("image.bin", []byte{1, 2, 3, 4})
	err := s.SendToSdCard(SdParams{
		Dest:    ":.",
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("SendToSdCard: %s", err.Error())
	}

	cmd := fr.last("dd")
	if cmd == nil {
		t.Fatalf("dd not invoked")
	}
	joined := strings.Join(cmd, " ")
	for _, want := range []string{"of=/dev/sdzq", "bs=512", "seek=1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("dd call %v missing %s", cmd, want)
		}
	}

	// The staged input file holds the raw payload.
	for _, arg := range cmd {
		if strings.HasPrefix(arg, "if=") {
			staged, err := ioutil.ReadFile(arg[3:])
			if err != nil {
				t.Fatalf("reading staged image: %s", err.Error())
			}
			if string(staged) != string(payload.Bytes()) {
				t.Errorf("staged image does not match the payload")
			}
		}
	}
}

func TestSendToSdCardBadSelection(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(cmd []string) (string, error) {
		if cmd[0] == "fdisk" {
			return fdiskOutput, nil
		}
		return "", nil
	}

	s := newTestSession(t, fr)
	s.sysBlock = fakeSysBlock(t, "sdzq", "1")

	err := s.SendToSdCard(SdParams{
		Dest:    ":/dev/nosuch",
		Payload: blob.FromBytes("image.bin", []byte{1}),
	})
	if err == nil {
		t.Fatalf("unknown disk selection accepted")
	}
	// The error lists the candidates to pick from.
	if !strings.Contains(err.Error(), "/dev/sdzq") {
		t.Errorf("error does not list available disks: %s", err.Error())
	}

	if fr.last("dd") != nil {
		t.Errorf("dd ran despite a failed disk selection")
	}
}
