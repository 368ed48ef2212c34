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

import "fmt"

// ReturnValue is the outcome of a mutating allocator operation.
type ReturnValue int

const (
	Ok ReturnValue = iota
	NotExists
	AlreadyExists
	BadParameters
	OperationError
)

var returnValueNames = map[ReturnValue]string{
	Ok:             "OK",
	NotExists:      "NOT_EXISTS",
	AlreadyExists:  "ALREADY_EXISTS",
	BadParameters:  "BAD_PARAMS",
	OperationError: "ERROR",
}

func (rv ReturnValue) String() string {
	if name, ok := returnValueNames[rv]; ok {
		return name
	}
	return fmt.Sprintf("ReturnValue(%d)", int(rv))
}

func (rv ReturnValue) MarshalText() ([]byte, error) {
	return []byte(rv.String()), nil
}
