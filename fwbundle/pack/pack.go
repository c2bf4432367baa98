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

// Package pack places named blobs into a full flash image according to a
// given ordered list of flash areas.  Deciding which blob belongs in which
// area is the flash map's job, upstream of this package; pack only performs
// the byte placement.
package pack

import (
	"sort"

	"github.com/apache/mynewt-artifact/flash"

	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/util"
)

// Erase value used to fill gaps between areas.
const eraseVal = 0xff

// Image concatenates the blobs into one image laid out per the flash
// areas.  Every area must have a blob that fits it; gaps between areas are
// filled with the erase value.
func Image(areas []flash.FlashArea,
	blobs map[string]blob.Blob) (blob.Blob, error) {

	sorted := make([]flash.FlashArea, len(areas))
	copy(sorted, areas)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	totalSize := 0
	for _, area := range sorted {
		if area.Offset+area.Size > totalSize {
			totalSize = area.Offset + area.Size
		}
	}

	data := make([]byte, totalSize)
	for i := range data {
		data[i] = eraseVal
	}

	end := 0
	for _, area := range sorted {
		if area.Offset < end {
			return blob.Blob{}, util.FmtConsistencyError(
				"flash area %s at %#x overlaps previous area ending at "+
					"%#x", area.Name, area.Offset, end)
		}

		b, ok := blobs[area.Name]
		if !ok {
			return blob.Blob{}, util.FmtConfigError(
				"no content for flash area '%s'", area.Name)
		}
		if b.Len() > area.Size {
			return blob.Blob{}, util.FmtFormatError(
				"%s is %d bytes; does not fit flash area %s (%d bytes)",
				b.Origin(), b.Len(), area.Name, area.Size)
		}

		copy(data[area.Offset:], b.Bytes())
		end = area.Offset + area.Size

		util.StatusMessage(util.VERBOSITY_VERBOSE,
			"  %-20s %#8x..%#8x (%d bytes used)\n",
			area.Name, area.Offset, area.Offset+area.Size, b.Len())
	}

	return blob.New("image.bin", data), nil
}
