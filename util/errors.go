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
	"fmt"
	"runtime"
)

// ErrorKind classifies a BundleError.  The kind decides how callers react:
// only KindTransientDevice failures are ever retried; everything else
// propagates immediately.
type ErrorKind int

const (
	// Generic failure; no special handling.
	KindGeneric ErrorKind = iota

	// Malformed binary input: bad parameter block, version mismatch,
	// out-of-bounds size, missing instruction signature.
	KindFormat

	// Internal consistency violation: placeholder length mismatch,
	// placeholder count != 1, re-signed size drift.
	KindConsistency

	// Invalid configuration value: unknown memory type, manufacturer,
	// boot source, destination or method.
	KindConfig

	// Device not present on the bus yet.  The only retryable kind.
	KindTransientDevice

	// Non-zero exit from an invoked external command.
	KindExternalTool
)

type BundleError struct {
	Parent     error
	Text       string
	Kind       ErrorKind
	StackTrace []byte
}

func (be *BundleError) Error() string {
	return be.Text
}

func (be *BundleError) Unwrap() error {
	return be.Parent
}

func NewBundleError(msg string) *BundleError {
	err := &BundleError{
		Text:       msg,
		StackTrace: make([]byte, 65536),
	}

	stackLen := runtime.Stack(err.StackTrace, true)
	err.StackTrace = err.StackTrace[:stackLen]

	return err
}

func FmtBundleError(format string, args ...interface{}) *BundleError {
	return NewBundleError(fmt.Sprintf(format, args...))
}

func ChildBundleError(parent error) *BundleError {
	for {
		berr, ok := parent.(*BundleError)
		if !ok || berr == nil || berr.Parent == nil {
			break
		}
		parent = berr.Parent
	}

	berr := NewBundleError(parent.Error())
	berr.Parent = parent
	return berr
}

func FmtChildBundleError(parent error, format string,
	args ...interface{}) *BundleError {

	be := ChildBundleError(parent)
	be.Text = fmt.Sprintf(format, args...)
	return be
}

func newKindError(kind ErrorKind, format string,
	args ...interface{}) *BundleError {

	err := FmtBundleError(format, args...)
	err.Kind = kind
	return err
}

// FmtFormatError reports a malformed binary input.
func FmtFormatError(format string, args ...interface{}) *BundleError {
	return newKindError(KindFormat, format, args...)
}

// FmtConsistencyError reports a violated internal invariant.
func FmtConsistencyError(format string, args ...interface{}) *BundleError {
	return newKindError(KindConsistency, format, args...)
}

// FmtConfigError reports an invalid configuration value.
func FmtConfigError(format string, args ...interface{}) *BundleError {
	return newKindError(KindConfig, format, args...)
}

// FmtTransientError reports a device that is not present on the bus yet.
func FmtTransientError(format string, args ...interface{}) *BundleError {
	return newKindError(KindTransientDevice, format, args...)
}

func errKind(err error) ErrorKind {
	if berr, ok := err.(*BundleError); ok {
		return berr.Kind
	}
	return KindGeneric
}

// IsTransient indicates whether the error represents a device that has not
// enumerated yet and may appear if the operation is retried.
func IsTransient(err error) bool {
	return errKind(err) == KindTransientDevice
}

func IsFormat(err error) bool {
	return errKind(err) == KindFormat
}

func IsConsistency(err error) bool {
	return errKind(err) == KindConsistency
}

func IsConfig(err error) bool {
	return errKind(err) == KindConfig
}

func IsExternalTool(err error) bool {
	return errKind(err) == KindExternalTool
}
