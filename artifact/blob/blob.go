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

// Package blob implements the immutable byte buffers that the bundle and
// deploy packages pass between each other.  A blob is never modified in
// place; every transformation allocates a new blob.
package blob

import (
	"io/ioutil"

	"github.com/embedfw/fwbundle/util"
)

// Blob is an immutable byte sequence with a known origin.  The origin is
// only used in diagnostics.
type Blob struct {
	origin string
	data   []byte
}

// New wraps the provided bytes without copying them.  The caller gives up
// ownership of the slice.
func New(origin string, data []byte) Blob {
	return Blob{origin: origin, data: data}
}

// FromBytes copies the provided bytes into a new blob.
func FromBytes(origin string, data []byte) Blob {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Blob{origin: origin, data: cp}
}

// ReadFile reads an entire file into a blob.  The file path becomes the
// blob's origin.
func ReadFile(path string) (Blob, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Blob{}, util.ChildBundleError(err)
	}

	return Blob{origin: path, data: data}, nil
}

// WriteFile writes the blob's contents to the specified path.
func (b Blob) WriteFile(path string) error {
	if err := ioutil.WriteFile(path, b.data, 0644); err != nil {
		return util.ChildBundleError(err)
	}
	return nil
}

func (b Blob) Origin() string {
	return b.origin
}

func (b Blob) Len() int {
	return len(b.data)
}

// Bytes returns the underlying byte slice.  Callers must not modify it.
func (b Blob) Bytes() []byte {
	return b.data
}

// Slice returns a copy of the byte range [off, off+length).  The range is
// validated against the blob's bounds first.
func (b Blob) Slice(off int, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+length > len(b.data) {
		return nil, util.FmtFormatError(
			"%s: slice [%d:%d] out of bounds (blob is %d bytes)",
			b.origin, off, off+length, len(b.data))
	}

	cp := make([]byte, length)
	copy(cp, b.data[off:off+length])
	return cp, nil
}

// Concat produces a new blob holding this blob's bytes followed by the
// arguments' bytes, in order.
func (b Blob) Concat(origin string, others ...Blob) Blob {
	total := len(b.data)
	for _, o := range others {
		total += o.Len()
	}

	data := make([]byte, 0, total)
	data = append(data, b.data...)
	for _, o := range others {
		data = append(data, o.data...)
	}

	return Blob{origin: origin, data: data}
}

// PadTo produces a new blob zero-padded out to the specified total size.
// Padding to a size smaller than the current length is an internal error.
func (b Blob) PadTo(size int) (Blob, error) {
	if size < len(b.data) {
		return Blob{}, util.FmtConsistencyError(
			"%s: cannot pad %d bytes down to %d",
			b.origin, len(b.data), size)
	}

	data := make([]byte, size)
	copy(data, b.data)
	return Blob{origin: b.origin, data: data}, nil
}

// RoundUp aligns a value to the next multiple of boundary, which must be a
// power of 2.
func RoundUp(value int, boundary int) int {
	return (value + boundary - 1) &^ (boundary - 1)
}
