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

package gitops

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Workspace locates one file inside a subrepo of the checkout and satisfies
// the validation layer's file access needs. Validation tools run from the
// subrepo directory so they pick up its eslint/tsconfig/package setup.
type Workspace struct {
	root    string // repository root
	subrepo string // subrepo path relative to root, may be empty
	relFile string // file path relative to the subrepo
}

func NewWorkspace(root, subrepo, relFile string) *Workspace {
	return &Workspace{root: root, subrepo: subrepo, relFile: relFile}
}

// WorkDir is the directory validation tools run in.
func (w *Workspace) WorkDir() string {
	return filepath.Join(w.root, w.subrepo)
}

// FileAbsPath is the absolute path of the file under migration.
func (w *Workspace) FileAbsPath() string {
	return filepath.Join(w.root, w.subrepo, w.relFile)
}

// RelPath is the file's path relative to the repository root, as stored on
// the migration record.
func (w *Workspace) RelPath() string {
	return filepath.Join(w.subrepo, w.relFile)
}

func (w *Workspace) ReadFile() (string, error) {
	data, err := os.ReadFile(w.FileAbsPath())
	if err != nil {
		return "", errors.Wrap(err, "read component file")
	}
	return string(data), nil
}

func (w *Workspace) WriteFile(code string) error {
	path := w.FileAbsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create component dir")
	}
	return errors.Wrap(os.WriteFile(path, []byte(code), 0o644), "write component file")
}
