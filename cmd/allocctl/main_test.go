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

package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"diskalloc/pkg/config"
	"diskalloc/pkg/data"
	"diskalloc/pkg/model"
)

func TestCmdMain(t *testing.T) {
	spec.Run(t, "cmd main", testMain, spec.Report(report.Terminal{}))
}

func testMain(t *testing.T, describe spec.G, it spec.S) {
	var subject Runner
	var backend data.Backend
	var cfg config.Config
	var dir string
	var w bytes.Buffer

	it.Before(func() {
		var err error
		dir, err = ioutil.TempDir("", "allocctl")
		require.NoError(t, err)

		cfg = config.Default()
		cfg.Database.Path = filepath.Join(dir, "allocctl_test.db")
		cfg.Serve.Addr = "127.0.0.1:0"

		backend, err = data.NewSQLiteBackend(cfg.Database.Path, data.DefaultOptions)
		require.NoError(t, err)

		subject = NewRunner(backend, cfg, zap.NewNop().Sugar())
		w = bytes.Buffer{}
	})

	it.After(func() {
		assert.NoError(t, backend.Close())
		os.RemoveAll(dir)
	})

	describe("Run()", func() {
		it("creates the schema", func() {
			require.NoError(t, subject.Run(context.Background(), "create", &w))
			assert.Contains(t, w.String(), "allocator schema")
			assert.Equal(t, model.Ok, subject.Allocator().AddDisk(model.Disk{ID: 1, Company: "A", Speed: 1, FreeSpace: 1, CostPerByte: 1}))
		})

		it("clears the schema", func() {
			require.NoError(t, subject.Run(context.Background(), "create", &w))
			require.Equal(t, model.Ok, subject.Allocator().AddDisk(model.Disk{ID: 1, Company: "A", Speed: 1, FreeSpace: 1, CostPerByte: 1}))

			require.NoError(t, subject.Run(context.Background(), "clear", &w))
			assert.False(t, subject.Allocator().GetDiskProfile(1).Valid())
		})

		it("drops the schema", func() {
			require.NoError(t, subject.Run(context.Background(), "create", &w))
			require.NoError(t, subject.Run(context.Background(), "drop", &w))
			assert.Equal(t, model.OperationError, subject.Allocator().AddDisk(model.Disk{ID: 1, Company: "A", Speed: 1, FreeSpace: 1, CostPerByte: 1}))
		})

		it("rejects unknown commands", func() {
			assert.Error(t, subject.Run(context.Background(), "defragment", &w))
		})

		it("stops serving when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.NoError(t, subject.Run(ctx, "serve", &w))
		})
	})

	describe("execute()", func() {
		var stderr bytes.Buffer

		it.Before(func() {
			stderr = bytes.Buffer{}
		})

		it("returns 0 when the command succeeds", func() {
			assert.Equal(t, 0, execute(context.Background(), cfg, "create", &w, &stderr))
			assert.Equal(t, model.Ok, subject.Allocator().AddDisk(model.Disk{ID: 1, Company: "A", Speed: 1, FreeSpace: 1, CostPerByte: 1}))
		})

		it("returns 1 when the command fails", func() {
			assert.Equal(t, 1, execute(context.Background(), cfg, "defragment", &w, &stderr))
		})

		it("returns 1 when the database cannot be opened", func() {
			cfg.Database.Path = filepath.Join(dir, "missing", "alloc.db")
			assert.Equal(t, 1, execute(context.Background(), cfg, "create", &w, &stderr))
		})

		it("reports a logger it cannot build on stderr", func() {
			cfg.Log.Level = "chatty"
			assert.Equal(t, 1, execute(context.Background(), cfg, "create", &w, &stderr))
			assert.Contains(t, stderr.String(), "logger error")
		})
	})

	describe("Report()", func() {
		var rpt string

		it.Before(func() {
			require.NoError(t, subject.Run(context.Background(), "create", &w))
			alloc := subject.Allocator()
			require.Equal(t, model.Ok, alloc.AddDisk(model.Disk{ID: 1, Company: "Acme", Speed: 7200, FreeSpace: 1500000, CostPerByte: 2}))
			require.Equal(t, model.Ok, alloc.AddDisk(model.Disk{ID: 2, Company: "Bolt", Speed: 5400, FreeSpace: 900, CostPerByte: 1}))
			require.Equal(t, model.Ok, alloc.AddQuery(model.Query{ID: 1, Purpose: "etl", Size: 100}))
			require.Equal(t, model.Ok, alloc.AddQueryToDisk(model.Query{ID: 1, Purpose: "etl", Size: 100}, 1))
			require.Equal(t, model.Ok, alloc.AddQueryToDisk(model.Query{ID: 1, Purpose: "etl", Size: 100}, 2))
			require.Equal(t, model.Ok, alloc.AddRAM(model.RAM{ID: 1, Company: "Other", Size: 64}))
			require.Equal(t, model.Ok, alloc.AddRAMToDisk(1, 2))

			w = bytes.Buffer{}
			err := subject.Report(&w)
			assert.NoError(t, err)
			rpt = w.String()
		})

		it("prints a header", func() {
			assert.Contains(t, rpt, "Most available disks")
			assert.Contains(t, rpt, "Free space")
		})

		it("prints each disk with grouped numbers", func() {
			assert.Contains(t, rpt, "Acme")
			assert.Contains(t, rpt, "Bolt")
			assert.Contains(t, rpt, "1,499,900")
			assert.Contains(t, rpt, "7,200")
		})

		it("prints exclusivity and conflicts", func() {
			assert.Contains(t, rpt, "yes")
			assert.Contains(t, rpt, "no")
		})
	})
}
