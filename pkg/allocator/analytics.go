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
	"diskalloc/pkg/data"
)

func (a *allocator) AverageSizeQueriesOnDisk(diskID int) float64 {
	var average float64
	found, err := a.scalar(data.AverageQuerySizeOnDisk, []interface{}{diskID}, &average)
	if err != nil {
		a.analyticsFailed("AverageSizeQueriesOnDisk", err)
		return -1
	}

	if !found {
		return 0
	}
	return average
}

func (a *allocator) DiskTotalRAM(diskID int) int {
	var total int
	found, err := a.scalar(data.DiskTotalRAM, []interface{}{diskID}, &total)
	if err != nil {
		a.analyticsFailed("DiskTotalRAM", err)
		return -1
	}

	if !found {
		return 0
	}
	return total
}

func (a *allocator) GetCostForPurpose(purpose string) int {
	var cost int
	found, err := a.scalar(data.CostForPurpose, []interface{}{purpose}, &cost)
	if err != nil {
		a.analyticsFailed("GetCostForPurpose", err)
		return -1
	}

	if !found {
		return 0
	}
	return cost
}

func (a *allocator) GetQueriesCanBeAddedToDisk(diskID int) []int {
	return a.ids("GetQueriesCanBeAddedToDisk", data.QueriesThatFitDisk, diskID)
}

func (a *allocator) GetQueriesCanBeAddedToDiskAndRAM(diskID int) []int {
	return a.ids("GetQueriesCanBeAddedToDiskAndRAM", data.QueriesThatFitDiskAndRAM, diskID, diskID)
}

// IsCompanyExclusive holds when the disk and all RAM placed on it share one
// company. A disk without RAM is trivially exclusive; a missing disk is not.
func (a *allocator) IsCompanyExclusive(diskID int) bool {
	companies := 0
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(data.DiskCompanies, []interface{}{diskID, diskID}, func(row data.Row) error {
			companies++
			return nil
		})
	})
	if err != nil {
		a.analyticsFailed("IsCompanyExclusive", err)
		return false
	}

	return companies == 1
}

func (a *allocator) GetConflictingDisks() []int {
	return a.ids("GetConflictingDisks", data.ConflictingDisks)
}

func (a *allocator) MostAvailableDisks() []int {
	disks := make([]int, 0, 5)
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(data.MostAvailableDisks, nil, func(row data.Row) error {
			var diskID, runnable int
			err := row.Scan(&diskID, &runnable)
			disks = append(disks, diskID)
			return err
		})
	})
	if err != nil {
		a.analyticsFailed("MostAvailableDisks", err)
		return []int{}
	}

	return disks
}

func (a *allocator) GetCloseQueries(queryID int) []int {
	return a.ids("GetCloseQueries", data.CloseQueries, queryID, queryID, queryID)
}

// scalar reads the first column of the first row into dst.
func (a *allocator) scalar(statement string, args []interface{}, dst interface{}) (found bool, err error) {
	err = data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(statement, args, func(row data.Row) error {
			if found {
				return nil
			}
			found = true
			return row.Scan(dst)
		})
	})

	return found, err
}

func (a *allocator) ids(operation string, statement string, args ...interface{}) []int {
	ids := make([]int, 0)
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(statement, args, func(row data.Row) error {
			var id int
			err := row.Scan(&id)
			ids = append(ids, id)
			return err
		})
	})
	if err != nil {
		a.analyticsFailed(operation, err)
		return []int{}
	}

	return ids
}

func (a *allocator) analyticsFailed(operation string, err error) {
	a.logger.Warnw("analytics query failed", "operation", operation, "kind", data.KindOf(err).String(), "error", err)
}
