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

package allocator

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"diskalloc/pkg/data"
	"diskalloc/pkg/model"
)

func TestAllocator(t *testing.T) {
	spec.Run(t, "Allocator", testAllocator, spec.Report(report.Terminal{}))
	spec.Run(t, "insertResult()", testInsertResult, spec.Report(report.Terminal{}))
}

// openBackend gives every test its own database file with the schema applied.
func openBackend(t *testing.T) (data.Backend, func()) {
	dir, err := ioutil.TempDir("", "diskalloc")
	require.NoError(t, err)

	backend, err := data.NewSQLiteBackend(filepath.Join(dir, "diskalloc_test.db"), data.DefaultOptions)
	require.NoError(t, err)
	require.NoError(t, data.CreateTables(backend))

	return backend, func() {
		assert.NoError(t, backend.Close())
		os.RemoveAll(dir)
	}
}

func testAllocator(t *testing.T, describe spec.G, it spec.S) {
	var subject Allocator
	var backend data.Backend
	var cleanup func()
	var logs *observer.ObservedLogs

	it.Before(func() {
		var core zapcore.Core
		core, logs = observer.New(zap.DebugLevel)
		backend, cleanup = openBackend(t)
		subject = New(backend, zap.New(core).Sugar())
	})

	it.After(func() {
		cleanup()
	})

	describe("New()", func() {
		it("tolerates a nil logger", func() {
			assert.NotNil(t, New(backend, nil))
		})
	})

	describe("when the backend has been closed", func() {
		it.Before(func() {
			require.NoError(t, backend.Close())
		})

		it("reports OperationError from adds", func() {
			assert.Equal(t, model.OperationError, subject.AddQuery(model.Query{ID: 1, Purpose: "x", Size: 1}))
			assert.Equal(t, model.OperationError, subject.AddDisk(model.Disk{ID: 1, Company: "A", Speed: 1, FreeSpace: 1, CostPerByte: 1}))
			assert.Equal(t, model.OperationError, subject.AddRAM(model.RAM{ID: 1, Company: "A", Size: 1}))
		})

		it("reports OperationError from deletes and placements", func() {
			assert.Equal(t, model.OperationError, subject.DeleteDisk(1))
			assert.Equal(t, model.OperationError, subject.DeleteQuery(model.Query{ID: 1}))
			assert.Equal(t, model.OperationError, subject.AddQueryToDisk(model.Query{ID: 1}, 1))
			assert.Equal(t, model.OperationError, subject.RemoveRAMFromDisk(1, 1))
		})

		it("returns the invalid sentinels from profile lookups", func() {
			assert.Equal(t, model.InvalidQuery, subject.GetQueryProfile(1))
			assert.Equal(t, model.InvalidDisk, subject.GetDiskProfile(1))
			assert.Equal(t, model.InvalidRAM, subject.GetRAMProfile(1))
		})

		it("returns the negative sentinels from scalar analytics", func() {
			assert.Equal(t, -1.0, subject.AverageSizeQueriesOnDisk(1))
			assert.Equal(t, -1, subject.DiskTotalRAM(1))
			assert.Equal(t, -1, subject.GetCostForPurpose("x"))
			assert.False(t, subject.IsCompanyExclusive(1))
		})

		it("returns empty lists from list analytics", func() {
			assert.Empty(t, subject.GetConflictingDisks())
			assert.Empty(t, subject.MostAvailableDisks())
			assert.NotNil(t, subject.GetCloseQueries(1))
		})

		it("logs the failure as a warning", func() {
			subject.AddQuery(model.Query{ID: 1, Purpose: "x", Size: 1})

			failures := logs.FilterMessage("operation failed").All()
			require.Len(t, failures, 1)
			assert.Equal(t, zap.WarnLevel, failures[0].Level)
			assert.Equal(t, "AddQuery", failures[0].ContextMap()["operation"])
			assert.Equal(t, "ConnectionInvalid", failures[0].ContextMap()["kind"])
		})
	})

	describe("rejected operations", func() {
		it("logs them at debug level with the result code", func() {
			assert.Equal(t, model.BadParameters, subject.AddQuery(model.Query{ID: 1, Purpose: "x", Size: -1}))

			rejected := logs.FilterMessage("operation rejected").All()
			require.Len(t, rejected, 1)
			assert.Equal(t, zap.DebugLevel, rejected[0].Level)
			assert.Equal(t, "BAD_PARAMS", rejected[0].ContextMap()["result"])
		})
	})
}

func testInsertResult(t *testing.T, describe spec.G, it spec.S) {
	violation := func(kind data.ErrorKind) error {
		return errors.Wrap(&data.Error{Kind: kind, Err: errors.New("boom")}, "context")
	}

	it("maps check and not-null violations to BadParameters", func() {
		assert.Equal(t, model.BadParameters, insertResult(violation(data.CheckViolation), model.OperationError))
		assert.Equal(t, model.BadParameters, insertResult(violation(data.NotNullViolation), model.OperationError))
	})

	it("maps unique violations to AlreadyExists", func() {
		assert.Equal(t, model.AlreadyExists, insertResult(violation(data.UniqueViolation), model.OperationError))
	})

	it("maps foreign key violations to the caller's choice", func() {
		assert.Equal(t, model.OperationError, insertResult(violation(data.ForeignKeyViolation), model.OperationError))
		assert.Equal(t, model.NotExists, insertResult(violation(data.ForeignKeyViolation), model.NotExists))
	})

	it("maps everything else to OperationError", func() {
		assert.Equal(t, model.OperationError, insertResult(violation(data.ConnectionInvalid), model.NotExists))
		assert.Equal(t, model.OperationError, insertResult(errors.New("not from the backend"), model.NotExists))
	})
}
