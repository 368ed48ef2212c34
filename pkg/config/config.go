/*
 * Copyright (C) 2019-Present Pivotal Software, Inc. All rights reserved.
 *
 * This program and the accompanying materials are made available under the terms
 * of the Apache License, Version 2.0 (the "License”); you may not use this file
 * except in compliance with the License. You may obtain a copy of the License at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed
 * under the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR
 * CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 */

package config

import (
	"io/ioutil"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. DISKALLOC_DATABASE_PATH.
const EnvPrefix = "DISKALLOC"

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Serve    ServeConfig    `yaml:"serve"`
}

// Field names map to environment keys under the parent's key, so
// Database.MaxIdleConns is DISKALLOC_DATABASE_MAX_IDLE_CONNS. No field carries
// an envconfig tag: a tag would also be looked up unprefixed (PATH, ADDR).
type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	MaxIdleConns int           `yaml:"max_idle_conns" split_words:"true"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" split_words:"true"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ServeConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path:         "diskalloc.db",
			MaxIdleConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Serve: ServeConfig{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := ioutil.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "could not read config file %s", path)
		}

		err = yaml.Unmarshal(raw, &cfg)
		if err != nil {
			return cfg, errors.Wrapf(err, "could not parse config file %s", path)
		}
	}

	err := envconfig.Process(EnvPrefix, &cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "could not apply environment overrides")
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Database.MaxIdleConns < 1 {
		return errors.Errorf("database.max_idle_conns must be at least 1, got %d", c.Database.MaxIdleConns)
	}
	if c.Database.BusyTimeout < 0 {
		return errors.Errorf("database.busy_timeout must not be negative, got %s", c.Database.BusyTimeout)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	if c.Serve.Addr == "" {
		return errors.New("serve.addr must not be empty")
	}

	return nil
}
