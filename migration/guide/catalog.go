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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cloudwego/tuxmigrate/migration"
)

// Catalog maps component names to their migration guides. It is loaded once
// at startup and is immutable afterwards; administrative updates replace the
// whole catalog.
type Catalog struct {
	dir    string
	guides map[string]*Guide
}

// LoadCatalog scans dir for *.md guide files. Hidden files are skipped.
// A file that fails to parse is logged and skipped rather than failing the
// whole catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("guide catalog: %w", err)
	}
	c := &Catalog{dir: dir, guides: make(map[string]*Guide)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		g, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("skipping unparseable guide", "file", name, "err", err)
			continue
		}
		if prev, ok := c.guides[g.Name]; ok {
			log.Warn("duplicate guide name, keeping first", "name", g.Name, "kept", prev.Path, "skipped", name)
			continue
		}
		g.Path = name
		c.guides[g.Name] = g
	}
	log.Debug("guide catalog loaded", "dir", dir, "guides", len(c.guides))
	return c, nil
}

// Dir returns the directory this catalog was loaded from.
func (c *Catalog) Dir() string { return c.dir }

// Get returns the guide for a component. An inactive guide is treated
// exactly like an unknown one: migrations must not start against it.
func (c *Catalog) Get(name string) (*Guide, error) {
	g, ok := c.guides[name]
	if !ok || !g.IsActive {
		return nil, fmt.Errorf("%q: %w", name, migration.ErrNotFound)
	}
	return g, nil
}

// ListActive returns all guides eligible for migration, sorted by name.
func (c *Catalog) ListActive() []*Guide {
	var out []*Guide
	for _, g := range c.guides {
		if g.IsActive {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns every guide including inactive ones, for reporting.
func (c *Catalog) List() []*Guide {
	out := make([]*Guide, 0, len(c.guides))
	for _, g := range c.guides {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
