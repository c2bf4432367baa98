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

// Package fdt reads and writes properties in a flat device tree blob by
// wrapping the external fdtget/fdtput tools.  The bundler only needs a
// handful of properties, so a full in-process FDT parser is not worth
// carrying.
package fdt

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/embedfw/fwbundle/fwbundle/tools"
	"github.com/embedfw/fwbundle/util"
)

// Fdt is one device-tree blob file.  Property writes modify the file in
// place, so callers that need a pristine tree take a Copy first.
type Fdt struct {
	fname string
	tools *tools.Tools
}

func New(t *tools.Tools, fname string) *Fdt {
	return &Fdt{
		fname: fname,
		tools: t,
	}
}

// Fname returns the path of the underlying blob file.
func (f *Fdt) Fname() string {
	return f.fname
}

// Copy duplicates the blob into the working directory under the given name
// and returns an Fdt for the copy.
func (f *Fdt) Copy(name string) (*Fdt, error) {
	dst := f.tools.OutPath(name)
	if err := util.CopyFile(f.fname, dst); err != nil {
		return nil, err
	}

	return New(f.tools, dst), nil
}

// GetString reads a string property, returning dflt if the property is
// absent.
func (f *Fdt) GetString(node string, prop string, dflt string) string {
	out, err := f.tools.Run("fdtget", []string{
		"-t", "s", f.fname, node, prop,
	}, false)
	if err != nil {
		return dflt
	}

	return strings.TrimSpace(out)
}

// GetInt reads an integer property, returning dflt if the property is
// absent or malformed.
func (f *Fdt) GetInt(node string, prop string, dflt int) int {
	out, err := f.tools.Run("fdtget", []string{
		"-t", "i", f.fname, node, prop,
	}, false)
	if err != nil {
		return dflt
	}

	v, err := cast.ToIntE(strings.TrimSpace(out))
	if err != nil {
		util.Warning("fdt property %s/%s is not an integer: %s",
			node, prop, strings.TrimSpace(out))
		return dflt
	}

	return v
}

// PutString writes a string property, creating the node if necessary.
func (f *Fdt) PutString(node string, prop string, value string) error {
	_, err := f.tools.Run("fdtput", []string{
		"-p", "-t", "s", f.fname, node, prop, value,
	}, false)
	return err
}

// PutInteger writes a 32-bit integer property, creating the node if
// necessary.
func (f *Fdt) PutInteger(node string, prop string, value uint32) error {
	_, err := f.tools.Run("fdtput", []string{
		"-p", "-t", "i", f.fname, node, prop,
		cast.ToString(int64(value)),
	}, false)
	return err
}
