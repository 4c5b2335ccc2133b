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
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudwego/tuxmigrate/config"
	"github.com/cloudwego/tuxmigrate/engine"
	"github.com/cloudwego/tuxmigrate/gitops"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/migration/transform"
	"github.com/cloudwego/tuxmigrate/store"
)

var (
	flagConfig  string
	flagVerbose bool

	cfg *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tuxmigrate",
		Short: "LLM-driven migration of UI components to the new component library",
		Long: `tuxmigrate rewrites component usages from the legacy component library to
its successor: an LLM applies the per-component migration guide, then each
selected validation step (eslint, typescript, build) runs with a bounded
retry loop that feeds errors back to the LLM for targeted fixes.`,
		PersistentPreRunE: initGlobals,
		SilenceUsage:      true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file (default ./tuxmigrate.yaml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newComponentsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func initGlobals(cmd *cobra.Command, _ []string) error {
	if flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	v := viper.New()
	config.SetDefaults(v)
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
	} else {
		v.SetConfigName("tuxmigrate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	var err error
	cfg, err = config.Load(v)
	return err
}

// buildEngine assembles the full migration stack from the loaded config.
func buildEngine() (*engine.Engine, *store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	catalog, err := guide.LoadCatalog(cfg.GuidesDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	mdl := transform.NewChatModel(cfg.Model)
	gen := transform.NewChatGenerator(mdl, transform.SystemPrompt, cfg.Model)
	tr := transform.New(gen, transform.Options{FixErrorLimit: cfg.FixErrorLimit})

	repo := gitops.NewRepo(cfg.RepoPath)
	return engine.New(cfg, catalog, tr, repo, st), st, nil
}
