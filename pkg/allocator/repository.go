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
	"diskalloc/pkg/model"
)

func (a *allocator) AddQuery(query model.Query) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.InsertQuery, query.ID, query.Purpose, query.Size)
		return err
	})
	if err != nil {
		return a.settle("AddQuery", err, insertResult(err, model.OperationError))
	}

	return model.Ok
}

func (a *allocator) AddDisk(disk model.Disk) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		return insertDisk(tx, disk)
	})
	if err != nil {
		return a.settle("AddDisk", err, insertResult(err, model.OperationError))
	}

	return model.Ok
}

func (a *allocator) AddRAM(ram model.RAM) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.InsertRAM, ram.ID, ram.Company, ram.Size)
		return err
	})
	if err != nil {
		return a.settle("AddRAM", err, insertResult(err, model.OperationError))
	}

	return model.Ok
}

// AddDiskAndQuery inserts both rows or neither.
func (a *allocator) AddDiskAndQuery(disk model.Disk, query model.Query) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		err := insertDisk(tx, disk)
		if err != nil {
			return err
		}

		_, err = tx.Exec(data.InsertQuery, query.ID, query.Purpose, query.Size)
		return err
	})
	if err != nil {
		return a.settle("AddDiskAndQuery", err, insertResult(err, model.OperationError))
	}

	return model.Ok
}

func insertDisk(tx data.Tx, disk model.Disk) error {
	_, err := tx.Exec(data.InsertDisk, disk.ID, disk.Company, disk.Speed, disk.FreeSpace, disk.CostPerByte)
	return err
}

func (a *allocator) GetQueryProfile(queryID int) model.Query {
	var found []model.Query
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(data.SelectQuery, []interface{}{queryID}, func(row data.Row) error {
			var q model.Query
			err := row.Scan(&q.ID, &q.Purpose, &q.Size)
			found = append(found, q)
			return err
		})
	})
	if err != nil || len(found) != 1 {
		a.profileMiss("GetQueryProfile", queryID, err)
		return model.InvalidQuery
	}

	return found[0]
}

func (a *allocator) GetDiskProfile(diskID int) model.Disk {
	var found []model.Disk
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(data.SelectDisk, []interface{}{diskID}, func(row data.Row) error {
			var d model.Disk
			err := row.Scan(&d.ID, &d.Company, &d.Speed, &d.FreeSpace, &d.CostPerByte)
			found = append(found, d)
			return err
		})
	})
	if err != nil || len(found) != 1 {
		a.profileMiss("GetDiskProfile", diskID, err)
		return model.InvalidDisk
	}

	return found[0]
}

func (a *allocator) GetRAMProfile(ramID int) model.RAM {
	var found []model.RAM
	err := data.WithReadTx(a.backend, func(tx data.Tx) error {
		return tx.Query(data.SelectRAM, []interface{}{ramID}, func(row data.Row) error {
			var r model.RAM
			err := row.Scan(&r.ID, &r.Company, &r.Size)
			found = append(found, r)
			return err
		})
	})
	if err != nil || len(found) != 1 {
		a.profileMiss("GetRAMProfile", ramID, err)
		return model.InvalidRAM
	}

	return found[0]
}

// Absent rows and failures both end in the sentinel; only the log tells them apart.
func (a *allocator) profileMiss(operation string, id int, err error) {
	if err != nil {
		a.logger.Warnw("profile lookup failed", "operation", operation, "id", id, "error", err)
		return
	}
	a.logger.Debugw("profile not found", "operation", operation, "id", id)
}

// DeleteQuery gives every hosting disk its space back before the row goes;
// the placements themselves are removed by the cascade.
func (a *allocator) DeleteQuery(query model.Query) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.RestoreFreeSpaceForQuery, query.ID, query.ID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(data.DeleteQuery, query.ID)
		return err
	})
	if err != nil {
		return a.settle("DeleteQuery", err, model.OperationError)
	}

	return model.Ok
}

func (a *allocator) DeleteDisk(diskID int) model.ReturnValue {
	return a.deleteByID("DeleteDisk", data.DeleteDisk, diskID)
}

func (a *allocator) DeleteRAM(ramID int) model.ReturnValue {
	return a.deleteByID("DeleteRAM", data.DeleteRAM, ramID)
}

func (a *allocator) deleteByID(operation string, statement string, id int) model.ReturnValue {
	var affected int
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		var err error
		affected, err = tx.Exec(statement, id)
		return err
	})
	if err != nil {
		return a.settle(operation, err, model.OperationError)
	}

	if affected == 0 {
		return model.NotExists
	}
	return model.Ok
}
