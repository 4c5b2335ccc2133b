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
	"github.com/spf13/cobra"

	"github.com/cloudwego/tuxmigrate/migration/guide"
)

func newComponentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "components",
		Short: "Inspect the migration guide catalog",
	}
	cmd.AddCommand(newComponentsListCmd())
	cmd.AddCommand(newComponentsDiscoverCmd())
	return cmd
}

func newComponentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List components with migration guides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.GuidesDir == "" {
				return errGuidesDirRequired
			}
			catalog, err := guide.LoadCatalog(cfg.GuidesDir)
			if err != nil {
				return err
			}
			for _, g := range catalog.List() {
				marker := " "
				if !g.IsActive {
					marker = "-"
				}
				cmd.Printf("%s %-20s %s -> %s\n", marker, g.Name, g.OldImportPath, g.NewImportPath)
			}
			return nil
		},
	}
}

func newComponentsDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Re-scan the guides directory and sync the components table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, st, err := buildEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := eng.ReloadGuides(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("discovered %d migration guides\n", n)
			return nil
		},
	}
}
