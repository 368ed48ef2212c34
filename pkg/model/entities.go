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

package model

// Query is a unit of work that occupies Size bytes on every disk it is placed on.
type Query struct {
	ID      int    `json:"id"`
	Purpose string `json:"purpose"`
	Size    int    `json:"size"`
}

type Disk struct {
	ID          int    `json:"id"`
	Company     string `json:"company"`
	Speed       int    `json:"speed"`
	FreeSpace   int    `json:"free_space"`
	CostPerByte int    `json:"cost_per_byte"`
}

type RAM struct {
	ID      int    `json:"id"`
	Company string `json:"company"`
	Size    int    `json:"size"`
}

// The Invalid* values are returned by profile lookups that found nothing or failed.
var (
	InvalidQuery = Query{ID: -1, Size: -1}
	InvalidDisk  = Disk{ID: -1, Speed: -1, FreeSpace: -1, CostPerByte: -1}
	InvalidRAM   = RAM{ID: -1, Size: -1}
)

func (q Query) Valid() bool {
	return q.ID > 0
}

func (d Disk) Valid() bool {
	return d.ID > 0
}

func (r RAM) Valid() bool {
	return r.ID > 0
}
