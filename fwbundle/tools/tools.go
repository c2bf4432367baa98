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

// Package tools invokes the external commands the bundler depends on
// (signer, recovery-mode loaders, servo control, dd) and owns the isolated
// per-build working directory that all scratch binaries are produced into.
package tools

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cheggaaa/pb"
	"github.com/kardianos/osext"

	"github.com/embedfw/fwbundle/util"
)

// Images above this size get a progress bar when written out.
const progressThreshold = 1024 * 1024

// Runner executes one external command and returns its combined output.
// Tests substitute a fake; the default is util.ShellCommand.
type Runner func(cmdStrs []string, env map[string]string) ([]byte, error)

// Tools runs external commands and stages scratch files in an isolated
// working directory.  One Tools instance serves one build or deployment
// session.
type Tools struct {
	outDir  string
	runner  Runner
	tempDir bool
}

// New creates a Tools instance with a fresh temporary working directory.
func New() (*Tools, error) {
	dir, err := ioutil.TempDir("", "fwbundle")
	if err != nil {
		return nil, util.ChildBundleError(err)
	}

	return &Tools{
		outDir:  dir,
		runner:  util.ShellCommand,
		tempDir: true,
	}, nil
}

// NewInDir creates a Tools instance that stages scratch files in the
// specified existing directory.
func NewInDir(dir string) *Tools {
	return &Tools{
		outDir: dir,
		runner: util.ShellCommand,
	}
}

// SetRunner replaces the command runner.  Used by tests.
func (t *Tools) SetRunner(r Runner) {
	t.runner = r
}

// OutDir returns the session's working directory.
func (t *Tools) OutDir() string {
	return t.outDir
}

// OutPath returns the path of a named scratch file inside the working
// directory.
func (t *Tools) OutPath(name string) string {
	return filepath.Join(t.outDir, name)
}

// Close removes the working directory.  If preserveDir is non-empty the
// directory's contents are copied there first, for debugging.
func (t *Tools) Close(preserveDir string) error {
	if preserveDir != "" {
		util.StatusMessage(util.VERBOSITY_DEFAULT,
			"Preserving work files in %s\n", preserveDir)
		if err := util.CopyDir(t.outDir, preserveDir); err != nil {
			return err
		}
	}

	if t.tempDir {
		if err := os.RemoveAll(t.outDir); err != nil {
			return util.ChildBundleError(err)
		}
	}
	return nil
}

// Run executes an external command and returns its combined output.  sudo
// prefixes the invocation; commands that touch USB devices or raw disks
// need it.
func (t *Tools) Run(name string, args []string, sudo bool) (string, error) {
	cmd := []string{}
	if sudo {
		cmd = append(cmd, "sudo")
	}
	cmd = append(cmd, name)
	cmd = append(cmd, args...)

	o, err := t.runner(cmd, nil)
	if err != nil {
		return string(o), util.FmtChildBundleError(err, "%s failed: %s",
			name, err.Error())
	}
	return string(o), nil
}

// CheckTool verifies that an external tool is present, looking first in
// $PATH and then next to the fwbundle executable.  pkg names the package
// that provides the tool, for the error message.
func (t *Tools) CheckTool(name string, pkg string) error {
	if _, err := exec.LookPath(name); err == nil {
		return nil
	}

	if dir, err := osext.ExecutableFolder(); err == nil {
		if util.NodeExist(filepath.Join(dir, name)) {
			return nil
		}
	}

	if pkg == "" {
		pkg = name
	}
	return util.FmtConfigError(
		"Required tool '%s' not found; please install %s", name, pkg)
}

// WriteFile writes data to a path, drawing a progress bar for large images
// so slow media writes are visible.
func (t *Tools) WriteFile(path string, data []byte) error {
	if len(data) < progressThreshold ||
		util.Verbosity < util.VERBOSITY_DEFAULT {

		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return util.ChildBundleError(err)
		}
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return util.ChildBundleError(err)
	}
	defer f.Close()

	bar := pb.New(len(data)).SetUnits(pb.U_BYTES)
	bar.Start()
	defer bar.Finish()

	r := bar.NewProxyReader(bytes.NewReader(data))
	if _, err := io.Copy(f, r); err != nil {
		return util.ChildBundleError(err)
	}

	return nil
}

// OutputSize reports the size of a generated file.
func (t *Tools) OutputSize(label string, path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "%s size: %s (%d bytes)\n",
		label, prettySize(fi.Size()), fi.Size())
}

func prettySize(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
