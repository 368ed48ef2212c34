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
	"strings"

	"github.com/bvinc/go-sqlite-lite/sqlite3"
	"github.com/pkg/errors"
)

// ErrorKind classifies a backend failure so that callers can switch on it
// instead of matching driver errors.
type ErrorKind int

const (
	Unclassified ErrorKind = iota
	CheckViolation
	NotNullViolation
	UniqueViolation
	ForeignKeyViolation
	ConnectionInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case CheckViolation:
		return "CheckViolation"
	case NotNullViolation:
		return "NotNullViolation"
	case UniqueViolation:
		return "UniqueViolation"
	case ForeignKeyViolation:
		return "ForeignKeyViolation"
	case ConnectionInvalid:
		return "ConnectionInvalid"
	default:
		return "Unclassified"
	}
}

// SQLite extended result codes, see https://www.sqlite.org/rescode.html
const (
	sqliteConstraint           = 19
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
	sqliteCantOpen             = 14
	sqliteMisuse               = 21
	sqliteNotADB               = 26
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// ErrClosed is reported when a transaction is requested from a closed backend.
var ErrClosed = errors.New("backend is closed")

// KindOf digs through any wrapping and reports the kind of a backend error.
// Errors that did not come from the backend are Unclassified.
func KindOf(err error) ErrorKind {
	if err == nil {
		return Unclassified
	}
	if de, ok := errors.Cause(err).(*Error); ok {
		return de.Kind
	}
	return Unclassified
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Kind: kindFromDriver(err), Err: err}
}

func kindFromDriver(err error) ErrorKind {
	if err == ErrClosed {
		return ConnectionInvalid
	}

	sqlErr, ok := err.(*sqlite3.Error)
	if !ok {
		return Unclassified
	}
	return kindFromCode(sqlErr.Code(), sqlErr.Error())
}

func kindFromCode(code int, msg string) ErrorKind {
	switch code {
	case sqliteConstraintCheck:
		return CheckViolation
	case sqliteConstraintNotNull:
		return NotNullViolation
	case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
		return UniqueViolation
	case sqliteConstraintForeignKey:
		return ForeignKeyViolation
	case sqliteCantOpen, sqliteMisuse, sqliteNotADB:
		return ConnectionInvalid
	}

	if code&0xff != sqliteConstraint {
		return Unclassified
	}

	// primary result codes only carry the constraint type in the message
	switch {
	case strings.Contains(msg, "CHECK constraint failed"):
		return CheckViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return NotNullViolation
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return UniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ForeignKeyViolation
	}
	return Unclassified
}
