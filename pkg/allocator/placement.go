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

// AddQueryToDisk records the placement and takes the query's size off the
// disk's free space. The placement row goes in first so that a missing query
// or disk surfaces as a foreign key violation rather than a bad counter.
func (a *allocator) AddQueryToDisk(query model.Query, diskID int) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.InsertQueryOnDisk, query.ID, diskID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(data.ReserveFreeSpace, query.ID, diskID)
		return err
	})
	if err != nil {
		return a.settle("AddQueryToDisk", err, insertResult(err, model.NotExists))
	}

	return model.Ok
}

// RemoveQueryFromDisk only credits space back when the placement exists, so
// repeating it never double-credits.
func (a *allocator) RemoveQueryFromDisk(query model.Query, diskID int) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.RestoreFreeSpaceForPlacement, query.ID, diskID, query.ID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(data.DeleteQueryOnDisk, query.ID, diskID)
		return err
	})
	if err != nil {
		if data.KindOf(err) == data.ForeignKeyViolation {
			return a.settle("RemoveQueryFromDisk", err, model.Ok)
		}
		return a.settle("RemoveQueryFromDisk", err, model.OperationError)
	}

	return model.Ok
}

func (a *allocator) AddRAMToDisk(ramID int, diskID int) model.ReturnValue {
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		_, err := tx.Exec(data.InsertRAMOnDisk, ramID, diskID)
		return err
	})
	if err != nil {
		return a.settle("AddRAMToDisk", err, insertResult(err, model.NotExists))
	}

	return model.Ok
}

func (a *allocator) RemoveRAMFromDisk(ramID int, diskID int) model.ReturnValue {
	var affected int
	err := data.WithTx(a.backend, func(tx data.Tx) error {
		var err error
		affected, err = tx.Exec(data.DeleteRAMOnDisk, ramID, diskID)
		return err
	})
	if err != nil {
		if data.KindOf(err) == data.ForeignKeyViolation {
			return a.settle("RemoveRAMFromDisk", err, model.Ok)
		}
		return a.settle("RemoveRAMFromDisk", err, model.OperationError)
	}

	if affected == 0 {
		return model.NotExists
	}
	return model.Ok
}
