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

package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/otiai10/copy"
	log "github.com/sirupsen/logrus"
)

var Verbosity int
var PrintShellCmds bool
var logFile *os.File

const (
	VERBOSITY_SILENT  = 0
	VERBOSITY_QUIET   = 1
	VERBOSITY_DEFAULT = 2
	VERBOSITY_VERBOSE = 3
)

var warnColor = color.New(color.FgYellow)
var errColor = color.New(color.FgRed)

// Print Silent, Quiet and Verbose aware status messages to stdout.
func WriteMessage(f *os.File, level int, message string,
	args ...interface{}) {

	if Verbosity >= level {
		str := fmt.Sprintf(message, args...)
		f.WriteString(str)
		f.Sync()

		if logFile != nil {
			logFile.WriteString(str)
		}
	}
}

// Print Silent, Quiet and Verbose aware status messages to stdout.
func StatusMessage(level int, message string, args ...interface{}) {
	WriteMessage(os.Stdout, level, message, args...)
}

// Print Silent, Quiet and Verbose aware status messages to stderr.
func ErrorMessage(level int, message string, args ...interface{}) {
	WriteMessage(os.Stderr, level, message, args...)
}

// Warning prints a tinted warning to stderr.  Warnings are shown at every
// verbosity level short of silent.
func Warning(message string, args ...interface{}) {
	if Verbosity > VERBOSITY_SILENT {
		body := fmt.Sprintf(message, args...)
		warnColor.Fprintf(os.Stderr, "WARNING: %s\n", body)
		if logFile != nil {
			fmt.Fprintf(logFile, "WARNING: %s\n", body)
		}
	}
}

// Failure prints a tinted error message to stderr.
func Failure(message string, args ...interface{}) {
	body := fmt.Sprintf(message, args...)
	errColor.Fprintf(os.Stderr, "Error: %s\n", body)
	if logFile != nil {
		fmt.Fprintf(logFile, "Error: %s\n", body)
	}
}

func NodeExist(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	} else {
		return false
	}
}

// Check whether the node (either dir or file) specified by path exists
func NodeNotExist(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true
	} else {
		return false
	}
}

type logFormatter struct{}

func (f *logFormatter) Format(entry *log.Entry) ([]byte, error) {
	// 2016/03/16 12:50:47 [DEBUG]

	b := &bytes.Buffer{}

	b.WriteString(entry.Time.Format("2006/01/02 15:04:05.000 "))
	b.WriteString("[" + strings.ToUpper(entry.Level.String()) + "] ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')

	return b.Bytes(), nil
}

func initLog(level log.Level, logFilename string) error {
	log.SetLevel(level)

	var writer io.Writer
	if logFilename == "" {
		writer = os.Stderr
	} else {
		var err error
		logFile, err = os.Create(logFilename)
		if err != nil {
			return NewBundleError(err.Error())
		}

		writer = io.MultiWriter(os.Stderr, logFile)
	}

	log.SetOutput(writer)
	log.SetFormatter(&logFormatter{})

	return nil
}

// Initialize the util module
func Init(logLevel log.Level, logFile string, verbosity int) error {
	// Configure logging twice.  First just configure the filter for stderr;
	// second configure the logfile if there is one.  This needs to happen in
	// two steps so that the log level is configured prior to the attempt to
	// open the log file.  The correct log level needs to be applied to file
	// error messages.
	if err := initLog(logLevel, ""); err != nil {
		return err
	}
	if logFile != "" {
		if err := initLog(logLevel, logFile); err != nil {
			return err
		}
	}

	Verbosity = verbosity
	PrintShellCmds = false

	return nil
}

func LogShellCmd(cmdStrs []string, env map[string]string) {
	envLogStr := ""
	if len(env) > 0 {
		s := EnvVarsToSlice(env)
		envLogStr = strings.Join(s, " ") + " "
	}
	log.Debugf("%s%s", envLogStr, strings.Join(cmdStrs, " "))

	if PrintShellCmds {
		StatusMessage(VERBOSITY_DEFAULT, "%s\n", strings.Join(cmdStrs, " "))
	}
}

// EnvVarsToSlice converts an environment variable map into a slice of `k=v`
// strings.
func EnvVarsToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]string, 0, len(env))
	for _, key := range keys {
		slice = append(slice, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return slice
}

// SliceToEnvVars converts a slice of `k=v` strings into an environment
// variable map.
func SliceToEnvVars(slc []string) (map[string]string, error) {
	m := make(map[string]string, len(slc))
	for _, s := range slc {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 {
			return nil, FmtBundleError("invalid env var string: \"%s\"", s)
		}

		m[parts[0]] = parts[1]
	}

	return m, nil
}

// EnvironAsMap gathers the current process's set of environment variables and
// returns them as a map.
func EnvironAsMap() (map[string]string, error) {
	return SliceToEnvVars(os.Environ())
}

// Execute the specified process and block until it completes.  The combined
// stdout+stderr output is returned; on a non-zero exit status the output is
// folded into the returned error's text so that callers always surface the
// literal tool failure text.
func ShellCommand(cmdStrs []string, env map[string]string) ([]byte, error) {
	LogShellCmd(cmdStrs, env)

	cmd := exec.Command(cmdStrs[0], cmdStrs[1:]...)

	if env != nil {
		m, err := EnvironAsMap()
		if err != nil {
			return nil, err
		}

		for k, v := range env {
			m[k] = v
		}
		cmd.Env = EnvVarsToSlice(m)
	}

	o, err := cmd.CombinedOutput()
	log.Debugf("o=%s", string(o))

	if err != nil {
		berr := ChildBundleError(err)
		berr.Kind = KindExternalTool
		log.Debugf("err=%s", err.Error())
		if len(o) > 0 {
			berr.Text = strings.TrimSpace(string(o))
		}
		return o, berr
	}
	return o, nil
}

func CopyFile(srcFile string, dstFile string) error {
	in, err := os.Open(srcFile)
	if err != nil {
		return ChildBundleError(err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return ChildBundleError(err)
	}

	dstDir := filepath.Dir(dstFile)
	if err := os.MkdirAll(dstDir, os.ModePerm); err != nil {
		return ChildBundleError(err)
	}

	out, err := os.OpenFile(dstFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		info.Mode())
	if err != nil {
		return ChildBundleError(err)
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return ChildBundleError(err)
	}

	return nil
}

func CopyDir(srcDirStr, dstDirStr string) error {
	opt := copy.Options{
		OnSymlink: func(src string) copy.SymlinkAction {
			return copy.Shallow
		},
	}

	err := copy.Copy(srcDirStr, dstDirStr, opt)

	if err != nil {
		return ChildBundleError(err)
	}

	return nil
}

// Indicates whether the provided error is of type *exec.ExitError (raised when
// a child process exits with a non-zero status code).
func IsExit(err error) bool {
	berr, ok := err.(*BundleError)
	if ok {
		err = berr.Parent
	}

	_, ok = err.(*exec.ExitError)
	return ok
}

func IsNotExist(err error) bool {
	berr, ok := err.(*BundleError)
	if ok {
		err = berr.Parent
	}

	return os.IsNotExist(err)
}

func PrintStacks() {
	buf := make([]byte, 1024*1024)
	stacklen := runtime.Stack(buf, true)
	fmt.Printf("*** goroutine dump\n%s\n*** end\n", buf[:stacklen])
}
