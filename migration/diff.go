// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package migration

import (
	"fmt"
	"strings"
)

// Key returns the stable identity of an error entry, used to compare error
// sets across retries: kind + location + normalized message. The comparison
// is a set difference, not positional.
func (e ErrorEntry) Key() string {
	return fmt.Sprintf("%s|%s:%d:%d|%s", e.Kind, e.FilePath, e.Line, e.Column, NormalizeMessage(e.Message))
}

// NormalizeMessage lowercases a message and collapses runs of whitespace so
// cosmetic tool-output differences do not defeat the set comparison.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}

// DiffErrors compares the error sets of two consecutive validation runs.
// resolved counts entries of before that no longer appear in after;
// introduced counts entries of after that were not present in before.
func DiffErrors(before, after []ErrorEntry) (resolved, introduced int) {
	beforeKeys := make(map[string]struct{}, len(before))
	for _, e := range before {
		beforeKeys[e.Key()] = struct{}{}
	}
	afterKeys := make(map[string]struct{}, len(after))
	for _, e := range after {
		afterKeys[e.Key()] = struct{}{}
	}
	for k := range beforeKeys {
		if _, ok := afterKeys[k]; !ok {
			resolved++
		}
	}
	for k := range afterKeys {
		if _, ok := beforeKeys[k]; !ok {
			introduced++
		}
	}
	return resolved, introduced
}

// MarkResolved flags every entry of before that is absent from after.
func MarkResolved(before, after []ErrorEntry) []ErrorEntry {
	afterKeys := make(map[string]struct{}, len(after))
	for _, e := range after {
		afterKeys[e.Key()] = struct{}{}
	}
	out := make([]ErrorEntry, len(before))
	copy(out, before)
	for i := range out {
		if _, ok := afterKeys[out[i].Key()]; !ok {
			out[i].Resolved = true
		}
	}
	return out
}
