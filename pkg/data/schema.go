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

import "github.com/pkg/errors"

// language=sql
var Schema = `create table if not exists queries
(
    query_id   integer primary key check (query_id > 0),
    purpose    text    not null,
    query_size integer not null check (query_size >= 0)
);

create table if not exists disks
(
    disk_id       integer primary key check (disk_id > 0),
    disk_company  text    not null,
    speed         integer not null check (speed > 0),
    free_space    integer not null check (free_space >= 0),
    cost_per_byte integer not null check (cost_per_byte > 0)
);

create table if not exists rams
(
    ram_id      integer primary key check (ram_id > 0),
    ram_company text    not null,
    ram_size    integer not null check (ram_size > 0)
);

create table if not exists query_on_disk
(
    query_id integer not null references queries (query_id) on delete cascade,
    disk_id  integer not null references disks (disk_id) on delete cascade,

    primary key (query_id, disk_id)
);

create table if not exists ram_on_disk
(
    ram_id  integer not null references rams (ram_id) on delete cascade,
    disk_id integer not null references disks (disk_id) on delete cascade,

    primary key (ram_id, disk_id)
);

create view if not exists running_queries as
select q.query_id, q.query_size, q.purpose, d.disk_id, d.cost_per_byte
from queries q
         join query_on_disk qd on q.query_id = qd.query_id
         join disks d on qd.disk_id = d.disk_id;

create view if not exists running_rams as
select r.ram_id, r.ram_company, d.disk_id, d.disk_company
from rams r
         join ram_on_disk rd on r.ram_id = rd.ram_id
         join disks d on rd.disk_id = d.disk_id;

create view if not exists runnable_queries as
select d.disk_id, q.query_id, q.query_size
from queries q,
     disks d
where q.query_size <= d.free_space;

create view if not exists total_ram as
select d.disk_id,
       (select coalesce(sum(r.ram_size), 0)
        from ram_on_disk rd
                 join rams r on r.ram_id = rd.ram_id
        where rd.disk_id = d.disk_id) as total_ram
from disks d;

create view if not exists mutual_disks as
select q1.query_id as query_id1,
       q2.query_id as query_id2,
       (select count(*)
        from query_on_disk qd1
                 join query_on_disk qd2 on qd1.disk_id = qd2.disk_id
        where qd1.query_id = q1.query_id
          and qd2.query_id = q2.query_id) as disks_num
from queries q1,
     queries q2;
`

// Placements go first so the statements also work with foreign keys enforced.
// language=sql
var ClearSchema = `delete from query_on_disk;
delete from ram_on_disk;
delete from queries;
delete from disks;
delete from rams;
`

// language=sql
var DropSchema = `drop view if exists mutual_disks;
drop view if exists total_ram;
drop view if exists runnable_queries;
drop view if exists running_rams;
drop view if exists running_queries;
drop table if exists query_on_disk;
drop table if exists ram_on_disk;
drop table if exists queries;
drop table if exists disks;
drop table if exists rams;
`

// CreateTables creates every table and view that does not exist yet.
func CreateTables(b Backend) error {
	return applySchema(b, Schema, "create")
}

// ClearTables removes all rows but keeps the schema.
func ClearTables(b Backend) error {
	return applySchema(b, ClearSchema, "clear")
}

func DropTables(b Backend) error {
	return applySchema(b, DropSchema, "drop")
}

func applySchema(b Backend, statements string, action string) error {
	err := WithTx(b, func(tx Tx) error {
		_, err := tx.Exec(statements)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "could not %s allocator schema", action)
	}

	return nil
}
