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

// Package guide loads component migration guides from a directory of
// markdown files. One file describes one migratable component: how its old
// API maps to the new one, consumed verbatim by the LLM transformer.
package guide

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Guide identifies one migratable component and its migration instructions.
type Guide struct {
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description,omitempty"`
	OldImportPath string `yaml:"old_import" json:"old_import,omitempty"`
	NewImportPath string `yaml:"new_import" json:"new_import,omitempty"`
	IsActive      bool   `yaml:"active" json:"active"`
	// Instructions is the markdown body handed to the transformer.
	Instructions string `yaml:"-" json:"-"`
	// Path is the guide file this was loaded from, relative to the guides dir.
	Path string `yaml:"-" json:"guide_path,omitempty"`
}

// frontMatter is the optional YAML block between two "---" lines at the top
// of a guide file. Active defaults to true when the key is absent.
type frontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	OldImport   string `yaml:"old_import"`
	NewImport   string `yaml:"new_import"`
	Active      *bool  `yaml:"active"`
}

var (
	titleRe = regexp.MustCompile(`(?m)^#\s+(.+?)(?:\s+Migration Guide)?\s*$`)
	// First import inside a fenced code block under an "## Old ..." or
	// "## New ..." heading.
	oldImportRe = regexp.MustCompile(`(?is)##\s+Old.*?` + "```" + `(?:tsx?|jsx?|javascript)?\s*\n.*?from\s+["']([^"']+)["']`)
	newImportRe = regexp.MustCompile(`(?is)##\s+New.*?` + "```" + `(?:tsx?|jsx?|javascript)?\s*\n.*?from\s+["']([^"']+)["']`)
)

// Parse builds a Guide from the contents of one markdown file. The component
// name defaults to the file name without extension.
func Parse(path string, content []byte) (*Guide, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	g := &Guide{Name: name, IsActive: true, Path: path}

	body := string(content)
	if fm, rest, ok := splitFrontMatter(body); ok {
		var meta frontMatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, fmt.Errorf("guide %s: bad front matter: %w", path, err)
		}
		if meta.Name != "" {
			g.Name = meta.Name
		}
		g.Description = meta.Description
		g.OldImportPath = meta.OldImport
		g.NewImportPath = meta.NewImport
		if meta.Active != nil {
			g.IsActive = *meta.Active
		}
		body = rest
	}
	g.Instructions = strings.TrimSpace(body)

	if g.Description == "" {
		if m := titleRe.FindStringSubmatch(body); m != nil {
			g.Description = m[1]
		} else {
			g.Description = g.Name
		}
	}
	// Import paths not declared up front are recovered from the guide's own
	// before/after examples.
	if g.OldImportPath == "" {
		if m := oldImportRe.FindStringSubmatch(body); m != nil {
			g.OldImportPath = m[1]
		}
	}
	if g.NewImportPath == "" {
		if m := newImportRe.FindStringSubmatch(body); m != nil {
			g.NewImportPath = m[1]
		}
	}
	return g, nil
}

func splitFrontMatter(content string) (meta, rest string, ok bool) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return "", content, false
	}
	trimmed := strings.TrimPrefix(content, "---")
	trimmed = strings.TrimPrefix(trimmed, "\r\n")
	trimmed = strings.TrimPrefix(trimmed, "\n")
	idx := strings.Index(trimmed, "\n---")
	if idx < 0 {
		return "", content, false
	}
	meta = trimmed[:idx]
	rest = trimmed[idx+len("\n---"):]
	rest = strings.TrimPrefix(rest, "\r")
	rest = strings.TrimPrefix(rest, "\n")
	return meta, rest, true
}

// ReadFile loads and parses one guide file.
func ReadFile(path string) (*Guide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guide %s: %w", path, err)
	}
	return Parse(path, data)
}
