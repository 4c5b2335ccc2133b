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

// Package config loads tuxmigrate settings from a config file, environment
// variables, and flags via viper. The resulting Config is read-only after
// Load.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cloudwego/tuxmigrate/migration/transform"
)

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Workers int    `mapstructure:"workers"` // concurrent migration executions
}

// Config is the full runtime configuration.
type Config struct {
	RepoPath          string   `mapstructure:"repo_path"`
	GuidesDir         string   `mapstructure:"guides_dir"`
	DatabasePath      string   `mapstructure:"database_path"`
	BaseBranch        string   `mapstructure:"base_branch"`
	DefaultMaxRetries int      `mapstructure:"default_max_retries"`
	DefaultSteps      []string `mapstructure:"default_steps"`
	FixErrorLimit     int      `mapstructure:"fix_error_limit"`
	GitPush           bool     `mapstructure:"git_push"`

	Model  transform.ModelConfig `mapstructure:"model"`
	Server ServerConfig          `mapstructure:"server"`
}

// SetDefaults registers defaults on v. Call before binding flags so flag
// values win.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "tuxmigrate.db")
	v.SetDefault("base_branch", "master")
	v.SetDefault("default_max_retries", 3)
	v.SetDefault("default_steps", []string{"eslint", "typescript", "build"})
	v.SetDefault("fix_error_limit", transform.DefaultFixErrorLimit)
	v.SetDefault("git_push", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.workers", 2)
}

// Load reads the optional config file already wired into v and decodes the
// full configuration. TUXMIGRATE_MODEL_API_KEY style env vars override file
// values.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("TUXMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; anything else is a real failure.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	// Accept provider aliases like "anthropic" or "doubao".
	if cfg.Model.APIType != "" {
		cfg.Model.APIType = transform.NewModelType(string(cfg.Model.APIType))
	}
	return &cfg, nil
}

// Validate checks the fields every migration run needs.
func (c *Config) Validate() error {
	if c.RepoPath == "" {
		return errors.New("repo_path is required")
	}
	if c.GuidesDir == "" {
		return errors.New("guides_dir is required")
	}
	if c.Model.APIType == "" || c.Model.ModelName == "" {
		return errors.New("model.type and model.model_name are required")
	}
	return nil
}
