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

package guide

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/tuxmigrate/migration"
)

const buttonGuide = `---
name: TUXButton
description: Button migration
old_import: "@old/tux-components"
new_import: "@new/tux-ui"
---
# TUXButton Migration Guide

Replace TUXButton imports and rename the type prop to variant.
`

const sheetGuide = `---
name: TUXSheet
active: false
---
# TUXSheet Migration Guide
`

// No front matter: name from file, imports recovered from the examples.
const iconGuide = "# TUXIcon Migration Guide\n\n" +
	"## Old usage\n```tsx\nimport { TUXIcon } from '@old/tux-components'\n```\n\n" +
	"## New usage\n```tsx\nimport { Icon } from '@new/tux-ui'\n```\n"

func writeGuides(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadCatalog(t *testing.T) {
	dir := writeGuides(t, map[string]string{
		"TUXButton.md": buttonGuide,
		"TUXSheet.md":  sheetGuide,
		"TUXIcon.md":   iconGuide,
		"notes.txt":    "not a guide",
		".hidden.md":   "# skipped",
	})
	c, err := LoadCatalog(dir)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(c.List()); got != 3 {
		t.Fatalf("List() = %d guides, want 3", got)
	}
	if got := len(c.ListActive()); got != 2 {
		t.Fatalf("ListActive() = %d guides, want 2", got)
	}

	g, err := c.Get("TUXButton")
	if err != nil {
		t.Fatal(err)
	}
	if g.OldImportPath != "@old/tux-components" || g.NewImportPath != "@new/tux-ui" {
		t.Errorf("imports = %q -> %q", g.OldImportPath, g.NewImportPath)
	}
	if g.Instructions == "" {
		t.Error("instructions should carry the markdown body")
	}
}

func TestGetUnknownOrInactive(t *testing.T) {
	dir := writeGuides(t, map[string]string{"TUXSheet.md": sheetGuide})
	c, err := LoadCatalog(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"TUXDialog", "TUXSheet"} {
		if _, err := c.Get(name); !errors.Is(err, migration.ErrNotFound) {
			t.Errorf("Get(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestParseRecoversImportsFromExamples(t *testing.T) {
	g, err := Parse("TUXIcon.md", []byte(iconGuide))
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "TUXIcon" {
		t.Errorf("Name = %q, want TUXIcon", g.Name)
	}
	if g.OldImportPath != "@old/tux-components" {
		t.Errorf("OldImportPath = %q", g.OldImportPath)
	}
	if g.NewImportPath != "@new/tux-ui" {
		t.Errorf("NewImportPath = %q", g.NewImportPath)
	}
	if !g.IsActive {
		t.Error("guides default to active")
	}
}

func TestLoadCatalogMissingDir(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
