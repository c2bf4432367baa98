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

package bundle

import (
	"github.com/embedfw/fwbundle/artifact/blob"
	"github.com/embedfw/fwbundle/artifact/mparams"
	"github.com/embedfw/fwbundle/fwbundle/fdt"
	"github.com/embedfw/fwbundle/util"
)

// ParamConfig reads the machine parameter values from the board's device
// tree.  Enum values are validated here, at the boundary, so the byte
// patcher never sees an unknown name.
func ParamConfig(f *fdt.Fdt, source mparams.BootSource) (mparams.Config,
	error) {

	var cfg mparams.Config
	var err error

	cfg.MemType, err = mparams.ParseMemType(
		f.GetString("/dmc", "mem-type", ""))
	if err != nil {
		return cfg, err
	}

	cfg.MemManuf, err = mparams.ParseMemManuf(
		f.GetString("/dmc", "mem-manuf", ""))
	if err != nil {
		return cfg, err
	}

	cfg.ClockHz = f.GetInt("/dmc", "clock-frequency", 0)
	cfg.BootSource = source

	return cfg, nil
}

// ConfigureBl2 patches a secondary loader's machine parameter block with the
// board's memory configuration and the size of the image it must load.
func ConfigureBl2(f *fdt.Fdt, splLoadSize int, bl2 blob.Blob,
	source mparams.BootSource) (blob.Blob, error) {

	util.StatusMessage(util.VERBOSITY_VERBOSE, "Configuring BL2\n")

	cfg, err := ParamConfig(f, source)
	if err != nil {
		return blob.Blob{}, err
	}

	return mparams.Patch(bl2, cfg, splLoadSize)
}
