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
	"errors"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  *BundleError
		pred func(error) bool
		name string
	}{
		{FmtFormatError("bad header"), IsFormat, "format"},
		{FmtConsistencyError("size changed"), IsConsistency, "consistency"},
		{FmtConfigError("bad value"), IsConfig, "config"},
		{FmtTransientError("not enumerated"), IsTransient, "transient"},
	}

	for _, c := range cases {
		if !c.pred(c.err) {
			t.Errorf("%s error does not satisfy its own predicate", c.name)
		}
	}

	// Predicates are mutually exclusive.
	if IsTransient(FmtFormatError("x")) {
		t.Errorf("format error classified transient")
	}
	if IsFormat(NewBundleError("x")) {
		t.Errorf("generic error classified as format")
	}

	// Plain errors satisfy nothing.
	if IsTransient(errors.New("x")) || IsFormat(errors.New("x")) {
		t.Errorf("plain error matched a kind predicate")
	}
	if IsTransient(nil) {
		t.Errorf("nil matched a kind predicate")
	}
}

func TestChildErrorWrapping(t *testing.T) {
	parent := errors.New("exit status 1")
	err := FmtChildBundleError(parent, "tegrarcm failed: %s",
		parent.Error())

	if err.Error() != "tegrarcm failed: exit status 1" {
		t.Errorf("text = %s", err.Error())
	}
	if !errors.Is(err, parent) {
		t.Errorf("wrapped parent not reachable via errors.Is")
	}
	if len(err.StackTrace) == 0 {
		t.Errorf("no stack trace captured")
	}
}

func TestFmtErrors(t *testing.T) {
	err := FmtConfigError("Unknown storage medium '%s'", "floppy")
	if err.Error() != "Unknown storage medium 'floppy'" {
		t.Errorf("text = %s", err.Error())
	}
}
