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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	spec.Run(t, "Config", testConfig, spec.Report(report.Terminal{}), spec.Sequential())
}

func testConfig(t *testing.T, describe spec.G, it spec.S) {
	var dir string
	var err error
	var savedEnv map[string]string

	unprefixed := []string{"PATH", "ADDR", "LEVEL", "DEVELOPMENT", "MAX_IDLE_CONNS", "BUSY_TIMEOUT", "SHUTDOWN_TIMEOUT"}

	writeFile := func(content string) string {
		path := filepath.Join(dir, "diskalloc.yaml")
		require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
		return path
	}

	it.Before(func() {
		dir, err = ioutil.TempDir("", "diskalloc-config")
		require.NoError(t, err)

		savedEnv = map[string]string{}
		for _, key := range unprefixed {
			if value, ok := os.LookupEnv(key); ok {
				savedEnv[key] = value
			}
		}
	})

	it.After(func() {
		os.RemoveAll(dir)
		os.Unsetenv("DISKALLOC_DATABASE_PATH")
		os.Unsetenv("DISKALLOC_LOG_LEVEL")
		os.Unsetenv("DISKALLOC_SERVE_SHUTDOWN_TIMEOUT")
		os.Unsetenv("DISKALLOC_DATABASE_MAX_IDLE_CONNS")

		for _, key := range unprefixed {
			if value, ok := savedEnv[key]; ok {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		}
	})

	describe("Load()", func() {
		it("returns the defaults without a file", func() {
			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, Default(), cfg)
		})

		it("applies values from the YAML file", func() {
			cfg, err := Load(writeFile(`
database:
  path: /var/lib/diskalloc/alloc.db
  busy_timeout: 250ms
log:
  level: debug
  development: true
`))
			require.NoError(t, err)
			assert.Equal(t, "/var/lib/diskalloc/alloc.db", cfg.Database.Path)
			assert.Equal(t, 250*time.Millisecond, cfg.Database.BusyTimeout)
			assert.Equal(t, 4, cfg.Database.MaxIdleConns)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.True(t, cfg.Log.Development)
		})

		it("lets the environment override the file", func() {
			os.Setenv("DISKALLOC_DATABASE_PATH", "from-env.db")
			os.Setenv("DISKALLOC_SERVE_SHUTDOWN_TIMEOUT", "3s")

			cfg, err := Load(writeFile("database:\n  path: from-file.db\n"))
			require.NoError(t, err)
			assert.Equal(t, "from-env.db", cfg.Database.Path)
			assert.Equal(t, 3*time.Second, cfg.Serve.ShutdownTimeout)
		})

		it("ignores environment variables without the prefix", func() {
			os.Setenv("PATH", "/usr/bin:/bin")
			os.Setenv("ADDR", "elsewhere:1")
			os.Setenv("LEVEL", "chatty")
			os.Setenv("DEVELOPMENT", "true")
			os.Setenv("MAX_IDLE_CONNS", "99")
			os.Setenv("BUSY_TIMEOUT", "1h")
			os.Setenv("SHUTDOWN_TIMEOUT", "1h")

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, Default(), cfg)

			cfg, err = Load(writeFile("database:\n  path: from-file.db\n"))
			require.NoError(t, err)
			assert.Equal(t, "from-file.db", cfg.Database.Path)
			assert.Equal(t, ":3000", cfg.Serve.Addr)
		})

		it("reads multi-word keys split on word boundaries", func() {
			os.Setenv("DISKALLOC_DATABASE_MAX_IDLE_CONNS", "9")

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, 9, cfg.Database.MaxIdleConns)
		})

		it("fails for a missing file", func() {
			_, err := Load(filepath.Join(dir, "missing.yaml"))
			assert.Error(t, err)
		})

		it("fails for malformed YAML", func() {
			_, err := Load(writeFile("database: [unterminated"))
			assert.Error(t, err)
		})

		it("fails validation for an unknown log level", func() {
			os.Setenv("DISKALLOC_LOG_LEVEL", "chatty")
			_, err := Load("")
			assert.Error(t, err)
		})
	})

	describe("Validate()", func() {
		var cfg Config

		it.Before(func() {
			cfg = Default()
		})

		it("accepts the defaults", func() {
			assert.NoError(t, cfg.Validate())
		})

		it("rejects an empty database path", func() {
			cfg.Database.Path = ""
			assert.Error(t, cfg.Validate())
		})

		it("rejects a pool without connections", func() {
			cfg.Database.MaxIdleConns = 0
			assert.Error(t, cfg.Validate())
		})

		it("rejects an empty listen address", func() {
			cfg.Serve.Addr = ""
			assert.Error(t, cfg.Validate())
		})
	})
}
