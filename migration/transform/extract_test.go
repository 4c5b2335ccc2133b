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

import "testing"

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		ok       bool
	}{
		{
			name:     "tsx fence",
			response: "Here is the result:\n```tsx\nconst a = 1;\n```\nDone.",
			want:     "const a = 1;",
			ok:       true,
		},
		{
			name:     "mislabeled jsx fence",
			response: "```jsx\nconst a = 1;\n```",
			want:     "const a = 1;",
			ok:       true,
		},
		{
			name:     "bare fence fallback",
			response: "```\nconst a = 1;\n```",
			want:     "const a = 1;",
			ok:       true,
		},
		{
			name:     "tsx preferred over bare",
			response: "```\nwrong\n```\n```tsx\nright\n```",
			want:     "right",
			ok:       true,
		},
		{
			name:     "multiline body preserved",
			response: "```tsx\nimport { Button } from '@new/tux-ui';\n\nexport const A = () => <Button />;\n```",
			want:     "import { Button } from '@new/tux-ui';\n\nexport const A = () => <Button />;",
			ok:       true,
		},
		{
			name:     "no code block",
			response: "I cannot migrate this file.",
			ok:       false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractCodeBlock(tt.response)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractNotes(t *testing.T) {
	resp := "```tsx\ncode\n```\n\n## Migration Notes\n- renamed type to variant\n- removed the loading prop"
	want := "- renamed type to variant\n- removed the loading prop"
	if got := ExtractNotes(resp); got != want {
		t.Errorf("notes = %q, want %q", got, want)
	}
	if got := ExtractNotes("```tsx\ncode\n```"); got != "" {
		t.Errorf("notes = %q, want empty", got)
	}
}
