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

package validate

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandResult is the captured outcome of one tool invocation. A non-zero
// exit code is a normal result (the tool found problems), not an error.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes one external tool command. Injected so tests can
// substitute canned tool output.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*CommandResult, error)
}

type execRunner struct{}

// NewCommandRunner returns the os/exec backed runner used in production.
func NewCommandRunner() CommandRunner {
	return execRunner{}
}

// Run implements CommandRunner. The returned error is non-nil only when the
// command could not be started or was killed (missing binary, cancelled
// context); tool findings come back through ExitCode and the output streams.
func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}
	return res, nil
}
