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

// Package gitops wraps the git CLI for the migration flow: branch off the
// base branch, commit the migrated file, push, and clean up. It shells out
// rather than linking a git library so it behaves exactly like the git the
// repository was cloned with (credentials, hooks, config included).
package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Repo is a handle on a local git checkout.
type Repo struct {
	root string
}

func NewRepo(root string) *Repo {
	return &Repo{root: root}
}

func (r *Repo) Root() string { return r.root }

// BranchName builds the migration branch name for a component, e.g.
// "migration/tuxbutton-20250824-153045".
func BranchName(component string, t time.Time) string {
	return fmt.Sprintf("migration/%s-%s", strings.ToLower(component), t.Format("20060102-150405"))
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), output)
	}
	return output, nil
}

// EnsureIdentity sets a repo-local committer identity when none is
// configured, so commits from unattended runs never fail on a bare machine.
func (r *Repo) EnsureIdentity(ctx context.Context, name, email string) error {
	if _, err := r.run(ctx, "config", "user.name"); err != nil {
		if _, err := r.run(ctx, "config", "user.name", name); err != nil {
			return err
		}
	}
	if _, err := r.run(ctx, "config", "user.email"); err != nil {
		if _, err := r.run(ctx, "config", "user.email", email); err != nil {
			return err
		}
	}
	return nil
}

// Fetch updates remote refs.
func (r *Repo) Fetch(ctx context.Context) error {
	_, err := r.run(ctx, "fetch", "origin")
	return err
}

// CheckoutBase moves the working tree to the base branch and fast-forwards
// it to the remote. A failed pull (no remote, diverged history) is tolerated:
// the migration then runs against the local refs, same as a failed fetch.
func (r *Repo) CheckoutBase(ctx context.Context, base string) error {
	if _, err := r.run(ctx, "checkout", base); err != nil {
		return err
	}
	if _, err := r.run(ctx, "pull", "--ff-only", "origin", base); err != nil {
		log.Warn("git pull failed, continuing with local refs", "base", base, "err", err)
	}
	return nil
}

// CreateBranch branches off base and checks the new branch out.
func (r *Repo) CreateBranch(ctx context.Context, name, base string) error {
	log.Info("creating migration branch", "branch", name, "base", base)
	_, err := r.run(ctx, "checkout", "-b", name, base)
	return err
}

// CommitFile stages only the given path and commits it, returning the new
// commit hash. Staging is deliberately narrow: the working tree may carry
// leftovers from validation tooling that must never reach a commit.
func (r *Repo) CommitFile(ctx context.Context, path, message string) (string, error) {
	if _, err := r.run(ctx, "add", "--", path); err != nil {
		return "", err
	}
	if _, err := r.run(ctx, "commit", "-m", message, "--", path); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// Head returns the current commit hash.
func (r *Repo) Head(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "HEAD")
}

// Push publishes the branch to origin.
func (r *Repo) Push(ctx context.Context, branch string) error {
	log.Info("pushing migration branch", "branch", branch)
	_, err := r.run(ctx, "push", "-u", "origin", branch)
	return err
}

// DeleteBranch removes a local branch, switching back to base first when the
// branch is currently checked out. Used to discard failed migrations.
func (r *Repo) DeleteBranch(ctx context.Context, name, base string) error {
	current, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	if current == name {
		if _, err := r.run(ctx, "checkout", base); err != nil {
			return err
		}
	}
	_, err = r.run(ctx, "branch", "-D", name)
	return err
}
