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
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/disk"

	"github.com/embedfw/fwbundle/util"
)

// Disk describes one removable block device a flasher image can be written
// to.
type Disk struct {
	Device   string // e.g. /dev/sdf
	Manuf    string
	Product  string
	Capacity int // GB

	// All of the above concatenated, matched against user selections.
	Desc string
}

// fdisk reports something like "Disk /dev/sdf: 7859 MB, ...".
var diskCapacityRe = regexp.MustCompile(`Disk .*: (\d+) \w+,`)

// ListRemovableDisks enumerates removable SCSI disks via sysfs.  Disks with
// no readable capacity are skipped; they are usually empty card readers.
func (s *Session) ListRemovableDisks() ([]Disk, error) {
	entries, err := filepath.Glob(filepath.Join(s.sysBlock, "sd*"))
	if err != nil {
		return nil, util.ChildBundleError(err)
	}

	var disks []Disk
	for _, entry := range entries {
		removable, err := ioutil.ReadFile(filepath.Join(entry, "removable"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(removable)) != "1" {
			continue
		}

		d := Disk{
			Device:  "/dev/" + filepath.Base(entry),
			Manuf:   diskInfo(entry, "manufacturer"),
			Product: diskInfo(entry, "product"),
		}
		d.Capacity = s.diskCapacity(d.Device)
		if d.Capacity == 0 {
			continue
		}
		d.Desc = fmt.Sprintf("%s: %s %s %d GB", d.Device, d.Manuf,
			d.Product, d.Capacity)
		disks = append(disks, d)
	}

	return disks, nil
}

// diskInfo finds an attribute of a disk's device, searching upwards through
// the sysfs hierarchy and through symlinks.  The manufacturer and product
// attributes live on the USB device a few levels above the block device.
func diskInfo(sysDisk string, item string) string {
	devPath := filepath.Join(sysDisk, "device")

	for {
		resolved, err := filepath.EvalSymlinks(devPath)
		if err != nil {
			break
		}
		fi, err := os.Stat(resolved)
		if err != nil || !fi.IsDir() || resolved == "/sys" {
			break
		}

		data, err := ioutil.ReadFile(filepath.Join(resolved, item))
		if err == nil {
			if i := strings.IndexByte(string(data), '\n'); i >= 0 {
				data = data[:i]
			}
			return strings.TrimRight(string(data), "\r\n ")
		}

		devPath = filepath.Join(resolved, "..")
	}

	return "[Unknown]"
}

// diskCapacity returns a device's capacity in GB, or 0 if unknown.
func (s *Session) diskCapacity(device string) int {
	out, err := s.Tools.Run("fdisk", []string{"-l", device}, true)
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(out, "\n") {
		m := diskCapacityRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mb, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return int(float64(mb) * 1024 * 1024 / 1e9)
	}
	return 0
}

// checkNotMounted refuses a disk that has mounted partitions; writing the
// raw device underneath a mounted filesystem corrupts both.
func checkNotMounted(device string) error {
	parts, err := disk.Partitions(false)
	if err != nil {
		// No partition info is not a reason to refuse.
		return nil
	}

	for _, p := range parts {
		if strings.HasPrefix(p.Device, device) {
			return util.FmtConfigError(
				"%s has a mounted partition (%s on %s); unmount it first",
				device, p.Device, p.Mountpoint)
		}
	}
	return nil
}
