/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transform

import (
	"regexp"
	"strings"
)

var (
	tsxBlockRe    = regexp.MustCompile("(?s)```tsx\n(.*?)\n```")
	taggedBlockRe = regexp.MustCompile("(?s)```(?:tsx|jsx|ts|js)\n(.*?)\n```")
	bareBlockRe   = regexp.MustCompile("(?s)```\n(.*?)\n```")
	notesRe       = regexp.MustCompile(`(?s)## Migration Notes\s*\n(.+)$`)
)

// ExtractCodeBlock pulls the migrated file out of an LLM response. The
// primary pattern is a ```tsx fence; responses that mislabel or drop the
// language tag are still accepted.
func ExtractCodeBlock(response string) (string, bool) {
	for _, re := range []*regexp.Regexp{tsxBlockRe, taggedBlockRe, bareBlockRe} {
		if m := re.FindStringSubmatch(response); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ExtractNotes returns the free-text section after "## Migration Notes",
// or "" when the response has none.
func ExtractNotes(response string) string {
	if m := notesRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
