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

import (
	"fmt"
	"sync"
	"time"

	"github.com/bvinc/go-sqlite-lite/sqlite3"
	"github.com/pkg/errors"
)

// Backend hands out transaction-scoped handles. Every Tx must end with
// exactly one Commit or Rollback, which also releases its connection;
// WithTx and WithReadTx take care of that.
type Backend interface {
	Begin() (Tx, error)
	BeginRead() (Tx, error)
	Close() error
}

type Tx interface {
	Exec(statement string, args ...interface{}) (rowsAffected int, err error)
	Query(statement string, args []interface{}, each func(row Row) error) error
	Commit() error
	Rollback() error
}

type Row interface {
	Scan(dst ...interface{}) error
}

type Options struct {
	MaxIdleConns int
	BusyTimeout  time.Duration
}

var DefaultOptions = Options{
	MaxIdleConns: 4,
	BusyTimeout:  5 * time.Second,
}

type sqliteBackend struct {
	path string
	opts Options
	idle chan *sqlite3.Conn

	mu     sync.Mutex
	closed bool
}

// NewSQLiteBackend opens the database file at path, creating it if needed.
// One connection is dialled eagerly so that a bad path fails here rather
// than on the first operation.
func NewSQLiteBackend(path string, opts Options) (Backend, error) {
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = DefaultOptions.MaxIdleConns
	}

	b := &sqliteBackend{
		path: path,
		opts: opts,
		idle: make(chan *sqlite3.Conn, opts.MaxIdleConns),
	}

	conn, err := b.dial()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	b.release(conn, false)

	return b, nil
}

func (b *sqliteBackend) Begin() (Tx, error) {
	return b.begin("begin immediate")
}

func (b *sqliteBackend) BeginRead() (Tx, error) {
	return b.begin("begin deferred")
}

func (b *sqliteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.idle)

	var firstErr error
	for conn := range b.idle {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *sqliteBackend) begin(beginStmt string) (Tx, error) {
	conn, err := b.acquire()
	if err != nil {
		return nil, err
	}

	err = conn.Exec(beginStmt)
	if err != nil {
		b.release(conn, true)
		return nil, classify(err)
	}

	return &sqliteTx{backend: b, conn: conn}, nil
}

func (b *sqliteBackend) acquire() (*sqlite3.Conn, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, classify(ErrClosed)
	}
	select {
	case conn := <-b.idle:
		b.mu.Unlock()
		return conn, nil
	default:
	}
	b.mu.Unlock()

	return b.dial()
}

func (b *sqliteBackend) dial() (*sqlite3.Conn, error) {
	conn, err := sqlite3.Open(b.path)
	if err != nil {
		return nil, &Error{Kind: ConnectionInvalid, Err: err}
	}

	err = conn.Exec("pragma foreign_keys = on")
	if err == nil {
		err = pragma(conn, fmt.Sprintf("pragma busy_timeout = %d", b.opts.BusyTimeout.Nanoseconds()/int64(time.Millisecond)))
	}
	if err != nil {
		conn.Close()
		return nil, &Error{Kind: ConnectionInvalid, Err: err}
	}

	return conn, nil
}

// release returns conn to the idle pool, or closes it when the pool is full,
// the backend is closed or the connection is no longer trustworthy.
func (b *sqliteBackend) release(conn *sqlite3.Conn, broken bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if broken || b.closed {
		conn.Close()
		return
	}

	select {
	case b.idle <- conn:
	default:
		conn.Close()
	}
}

// pragma runs a statement that yields a result row, which Exec would reject.
func pragma(conn *sqlite3.Conn, stmt string) error {
	s, err := conn.Prepare(stmt)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.Step()
	return err
}

type sqliteTx struct {
	backend *sqliteBackend
	conn    *sqlite3.Conn
	done    bool
}

var errTxDone = errors.New("transaction has already been committed or rolled back")

func (tx *sqliteTx) Exec(statement string, args ...interface{}) (int, error) {
	if tx.done {
		return 0, classify(errTxDone)
	}

	err := tx.conn.Exec(statement, args...)
	if err != nil {
		return 0, classify(err)
	}

	return tx.conn.Changes(), nil
}

func (tx *sqliteTx) Query(statement string, args []interface{}, each func(row Row) error) error {
	if tx.done {
		return classify(errTxDone)
	}

	stmt, err := tx.conn.Prepare(statement, args...)
	if err != nil {
		return classify(err)
	}
	defer stmt.Close()

	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return classify(err)
		}

		if !hasRow {
			break
		}

		err = each(stmt)
		if err != nil {
			return classify(err)
		}
	}

	return nil
}

func (tx *sqliteTx) Commit() error {
	if tx.done {
		return classify(errTxDone)
	}
	tx.done = true

	err := tx.conn.Exec("commit")
	if err != nil {
		rbErr := tx.conn.Exec("rollback")
		tx.backend.release(tx.conn, rbErr != nil)
		return classify(err)
	}

	tx.backend.release(tx.conn, false)
	return nil
}

func (tx *sqliteTx) Rollback() error {
	if tx.done {
		return classify(errTxDone)
	}
	tx.done = true

	err := tx.conn.Exec("rollback")
	tx.backend.release(tx.conn, err != nil)
	return classify(err)
}

// WithTx runs fn inside a write transaction. It commits when fn returns nil
// and rolls back when fn returns an error or panics; the connection is
// released on every path.
func WithTx(b Backend, fn func(tx Tx) error) error {
	return withTx(b.Begin, fn)
}

// WithReadTx is WithTx for statements that only read.
func WithReadTx(b Backend, fn func(tx Tx) error) error {
	return withTx(b.BeginRead, fn)
}

func withTx(begin func() (Tx, error), fn func(tx Tx) error) (err error) {
	tx, err := begin()
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			_ = tx.Rollback()
			return
		}

		err = tx.Commit()
	}()

	return fn(tx)
}
