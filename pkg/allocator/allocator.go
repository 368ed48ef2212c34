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
	"go.uber.org/zap"

	"diskalloc/pkg/data"
	"diskalloc/pkg/model"
)

type EntityRepository interface {
	AddQuery(query model.Query) model.ReturnValue
	GetQueryProfile(queryID int) model.Query
	DeleteQuery(query model.Query) model.ReturnValue

	AddDisk(disk model.Disk) model.ReturnValue
	GetDiskProfile(diskID int) model.Disk
	DeleteDisk(diskID int) model.ReturnValue

	AddRAM(ram model.RAM) model.ReturnValue
	GetRAMProfile(ramID int) model.RAM
	DeleteRAM(ramID int) model.ReturnValue

	AddDiskAndQuery(disk model.Disk, query model.Query) model.ReturnValue
}

// PlacementManager keeps each disk's free space in step with the queries placed on it.
type PlacementManager interface {
	AddQueryToDisk(query model.Query, diskID int) model.ReturnValue
	RemoveQueryFromDisk(query model.Query, diskID int) model.ReturnValue
	AddRAMToDisk(ramID int, diskID int) model.ReturnValue
	RemoveRAMFromDisk(ramID int, diskID int) model.ReturnValue
}

// AnalyticsEngine never mutates. Failures come back as -1, false or an empty list.
type AnalyticsEngine interface {
	AverageSizeQueriesOnDisk(diskID int) float64
	DiskTotalRAM(diskID int) int
	GetCostForPurpose(purpose string) int
	GetQueriesCanBeAddedToDisk(diskID int) []int
	GetQueriesCanBeAddedToDiskAndRAM(diskID int) []int
	IsCompanyExclusive(diskID int) bool
	GetConflictingDisks() []int
	MostAvailableDisks() []int
	GetCloseQueries(queryID int) []int
}

type Allocator interface {
	EntityRepository
	PlacementManager
	AnalyticsEngine
}

type allocator struct {
	backend data.Backend
	logger  *zap.SugaredLogger
}

func New(backend data.Backend, logger *zap.SugaredLogger) Allocator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &allocator{
		backend: backend,
		logger:  logger,
	}
}

// insertResult maps a failed insert onto a result code. What a foreign key
// violation means depends on the caller, so it is passed in.
func insertResult(err error, onForeignKey model.ReturnValue) model.ReturnValue {
	switch data.KindOf(err) {
	case data.CheckViolation, data.NotNullViolation:
		return model.BadParameters
	case data.UniqueViolation:
		return model.AlreadyExists
	case data.ForeignKeyViolation:
		return onForeignKey
	default:
		return model.OperationError
	}
}

func (a *allocator) settle(operation string, err error, result model.ReturnValue) model.ReturnValue {
	if err == nil {
		return result
	}

	if result == model.OperationError {
		a.logger.Warnw("operation failed", "operation", operation, "kind", data.KindOf(err).String(), "error", err)
	} else {
		a.logger.Debugw("operation rejected", "operation", operation, "result", result.String(), "kind", data.KindOf(err).String())
	}

	return result
}
