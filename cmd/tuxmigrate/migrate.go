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

package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/orchestrate"
)

func newMigrateCmd() *cobra.Command {
	var (
		component  string
		subrepo    string
		file       string
		steps      []string
		maxRetries int
		baseBranch string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run one component migration synchronously",
		Example: `  tuxmigrate migrate --component TUXButton --subrepo apps/web \
      --file src/pages/Checkout.tsx --steps eslint,typescript`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, st, err := buildEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			createdBy := "cli"
			if u, err := user.Current(); err == nil && u.Username != "" {
				createdBy = u.Username
			}

			rec, err := eng.Execute(cmd.Context(), orchestrate.Request{
				ComponentName: component,
				SubrepoPath:   subrepo,
				FilePath:      file,
				Steps:         steps,
				MaxRetries:    maxRetries,
				BaseBranch:    baseBranch,
				CreatedBy:     createdBy,
			})
			if err != nil {
				return err
			}
			printRecord(cmd, rec)
			if !rec.OverallSuccess {
				return fmt.Errorf("migration %s failed: %s", rec.ID, rec.ErrorSummary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "component to migrate (required)")
	cmd.Flags().StringVar(&subrepo, "subrepo", "", "subrepo path inside the repository")
	cmd.Flags().StringVar(&file, "file", "", "file path relative to the subrepo (required)")
	cmd.Flags().StringSliceVar(&steps, "steps", nil, "validation steps to run, in order (default from config)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "attempts per validation step (default from config)")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "branch to migrate from (default from config)")
	_ = cmd.MarkFlagRequired("component")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printRecord(cmd *cobra.Command, rec *migration.Record) {
	cmd.Printf("migration:  %s\n", rec.ID)
	cmd.Printf("component:  %s\n", rec.ComponentName)
	cmd.Printf("status:     %s\n", rec.Status)
	if rec.BranchName != "" {
		cmd.Printf("branch:     %s\n", rec.BranchName)
	}
	if rec.CommitHash != "" {
		cmd.Printf("commit:     %s\n", rec.CommitHash)
	}
	for _, att := range rec.Steps {
		cmd.Printf("  %-10s attempt %d/%d: %s (%d errors, %d resolved, %d introduced)\n",
			att.StepType, att.AttemptNumber, rec.MaxRetries, att.Status,
			len(att.ErrorsBefore), att.ErrorsResolved, att.ErrorsIntroduced)
	}
	if rec.MigrationNotes != "" {
		cmd.Printf("notes:\n%s\n", rec.MigrationNotes)
	}
}
