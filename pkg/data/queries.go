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

package data

// language=sql
var (
	InsertQuery = `insert into queries(query_id, purpose, query_size) values (?, ?, ?)`
	InsertDisk  = `insert into disks(disk_id, disk_company, speed, free_space, cost_per_byte) values (?, ?, ?, ?, ?)`
	InsertRAM   = `insert into rams(ram_id, ram_company, ram_size) values (?, ?, ?)`

	SelectQuery = `select query_id, purpose, query_size from queries where query_id = ?`
	SelectDisk  = `select disk_id, disk_company, speed, free_space, cost_per_byte from disks where disk_id = ?`
	SelectRAM   = `select ram_id, ram_company, ram_size from rams where ram_id = ?`

	DeleteQuery = `delete from queries where query_id = ?`
	DeleteDisk  = `delete from disks where disk_id = ?`
	DeleteRAM   = `delete from rams where ram_id = ?`

	// args: query id, query id
	RestoreFreeSpaceForQuery = `
update disks
set free_space = free_space + (select query_size from queries where query_id = ?)
where disk_id in (select disk_id from query_on_disk where query_id = ?)
`
)

// language=sql
var (
	InsertQueryOnDisk = `insert into query_on_disk(query_id, disk_id) values (?, ?)`
	InsertRAMOnDisk   = `insert into ram_on_disk(ram_id, disk_id) values (?, ?)`

	DeleteQueryOnDisk = `delete from query_on_disk where query_id = ? and disk_id = ?`
	DeleteRAMOnDisk   = `delete from ram_on_disk where ram_id = ? and disk_id = ?`

	// Sizes are read from the stored query row so the counter always moves by
	// the amount that was actually placed.
	// args: query id, disk id
	ReserveFreeSpace = `
update disks
set free_space = free_space - (select query_size from queries where query_id = ?)
where disk_id = ?
`

	// args: query id, disk id, query id
	RestoreFreeSpaceForPlacement = `
update disks
set free_space = free_space + (select query_size from queries where query_id = ?)
where disk_id in (select disk_id from query_on_disk where disk_id = ? and query_id = ?)
`
)

// language=sql
var (
	AverageQuerySizeOnDisk = `select coalesce(avg(query_size), 0.0) from running_queries where disk_id = ?`

	DiskTotalRAM = `select total_ram from total_ram where disk_id = ?`

	CostForPurpose = `select coalesce(sum(cost_per_byte * query_size), 0) from running_queries where purpose = ?`

	QueriesThatFitDisk = `
select query_id
from runnable_queries
where disk_id = ?
order by query_id desc
limit 5
`

	// args: disk id, disk id
	QueriesThatFitDiskAndRAM = `
select rq.query_id
from runnable_queries rq
where rq.disk_id = ?
  and (select tr.total_ram from total_ram tr where tr.disk_id = ?) - rq.query_size >= 0
order by rq.query_id asc
limit 5
`

	// args: disk id, disk id
	DiskCompanies = `
select disk_company from disks where disk_id = ?
union
select ram_company from running_rams where disk_id = ?
`

	ConflictingDisks = `
select distinct l.disk_id
from query_on_disk l
         join query_on_disk r on l.query_id = r.query_id and l.disk_id <> r.disk_id
order by l.disk_id asc
`

	MostAvailableDisks = `
select d.disk_id
     , (select count(*) from runnable_queries rq where rq.disk_id = d.disk_id) as runnable
from disks d
order by runnable desc, d.speed desc, d.disk_id asc
limit 5
`

	// args: query id x3
	CloseQueries = `
select query_id1
from mutual_disks
where query_id1 <> ?
  and query_id2 = ?
  and disks_num >= (select 0.5 * disks_num from mutual_disks where query_id1 = ? and query_id2 = query_id1)
order by query_id1 asc
limit 10
`
)
