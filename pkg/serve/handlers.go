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

package serve

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"diskalloc/pkg/allocator"
	"diskalloc/pkg/model"
)

type handlers struct {
	alloc  allocator.Allocator
	logger *zap.SugaredLogger
}

type resultBody struct {
	Result model.ReturnValue `json:"result"`
}

type diskAndQuery struct {
	Disk  model.Disk  `json:"disk"`
	Query model.Query `json:"query"`
}

var statusFor = map[model.ReturnValue]int{
	model.Ok:             http.StatusOK,
	model.NotExists:      http.StatusNotFound,
	model.AlreadyExists:  http.StatusConflict,
	model.BadParameters:  http.StatusBadRequest,
	model.OperationError: http.StatusInternalServerError,
}

// NewRouter exposes every allocator operation as a JSON endpoint.
func NewRouter(alloc allocator.Allocator, logger *zap.SugaredLogger) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &handlers{alloc: alloc, logger: logger}

	r := chi.NewRouter()

	r.Post("/queries", h.addQuery)
	r.Get("/queries/{queryID}", h.getQuery)
	r.Delete("/queries/{queryID}", h.deleteQuery)
	r.Get("/queries/{queryID}/close-queries", h.closeQueries)

	r.Post("/disks", h.addDisk)
	r.Post("/disks-with-query", h.addDiskAndQuery)
	r.Get("/disks/{diskID}", h.getDisk)
	r.Delete("/disks/{diskID}", h.deleteDisk)
	r.Put("/disks/{diskID}/queries/{queryID}", h.addQueryToDisk)
	r.Delete("/disks/{diskID}/queries/{queryID}", h.removeQueryFromDisk)
	r.Put("/disks/{diskID}/rams/{ramID}", h.addRAMToDisk)
	r.Delete("/disks/{diskID}/rams/{ramID}", h.removeRAMFromDisk)
	r.Get("/disks/{diskID}/average-query-size", h.averageQuerySize)
	r.Get("/disks/{diskID}/total-ram", h.totalRAM)
	r.Get("/disks/{diskID}/exclusive", h.exclusive)
	r.Get("/disks/{diskID}/runnable-queries", h.runnableQueries)
	r.Get("/disks/{diskID}/runnable-queries-with-ram", h.runnableQueriesWithRAM)

	r.Post("/rams", h.addRAM)
	r.Get("/rams/{ramID}", h.getRAM)
	r.Delete("/rams/{ramID}", h.deleteRAM)

	r.Get("/purposes/{purpose}/cost", h.costForPurpose)
	r.Get("/conflicting-disks", h.conflictingDisks)
	r.Get("/most-available-disks", h.mostAvailableDisks)

	return r
}

func (h *handlers) addQuery(w http.ResponseWriter, r *http.Request) {
	var q model.Query
	if !h.decode(w, r, &q) {
		return
	}
	h.result(w, h.alloc.AddQuery(q), http.StatusCreated)
}

func (h *handlers) addDisk(w http.ResponseWriter, r *http.Request) {
	var d model.Disk
	if !h.decode(w, r, &d) {
		return
	}
	h.result(w, h.alloc.AddDisk(d), http.StatusCreated)
}

func (h *handlers) addRAM(w http.ResponseWriter, r *http.Request) {
	var ram model.RAM
	if !h.decode(w, r, &ram) {
		return
	}
	h.result(w, h.alloc.AddRAM(ram), http.StatusCreated)
}

func (h *handlers) addDiskAndQuery(w http.ResponseWriter, r *http.Request) {
	var body diskAndQuery
	if !h.decode(w, r, &body) {
		return
	}
	h.result(w, h.alloc.AddDiskAndQuery(body.Disk, body.Query), http.StatusCreated)
}

func (h *handlers) getQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "queryID")
	if !ok {
		return
	}
	q := h.alloc.GetQueryProfile(id)
	if !q.Valid() {
		h.result(w, model.NotExists, http.StatusOK)
		return
	}
	h.json(w, http.StatusOK, q)
}

func (h *handlers) getDisk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	d := h.alloc.GetDiskProfile(id)
	if !d.Valid() {
		h.result(w, model.NotExists, http.StatusOK)
		return
	}
	h.json(w, http.StatusOK, d)
}

func (h *handlers) getRAM(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "ramID")
	if !ok {
		return
	}
	ram := h.alloc.GetRAMProfile(id)
	if !ram.Valid() {
		h.result(w, model.NotExists, http.StatusOK)
		return
	}
	h.json(w, http.StatusOK, ram)
}

// deleteQuery needs the stored query, so an unknown id is NotExists here.
func (h *handlers) deleteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "queryID")
	if !ok {
		return
	}
	q := h.alloc.GetQueryProfile(id)
	if !q.Valid() {
		h.result(w, model.NotExists, http.StatusOK)
		return
	}
	h.result(w, h.alloc.DeleteQuery(q), http.StatusOK)
}

func (h *handlers) deleteDisk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	h.result(w, h.alloc.DeleteDisk(id), http.StatusOK)
}

func (h *handlers) deleteRAM(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "ramID")
	if !ok {
		return
	}
	h.result(w, h.alloc.DeleteRAM(id), http.StatusOK)
}

func (h *handlers) addQueryToDisk(w http.ResponseWriter, r *http.Request) {
	diskID, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	queryID, ok := h.id(w, r, "queryID")
	if !ok {
		return
	}
	q := h.alloc.GetQueryProfile(queryID)
	if !q.Valid() {
		h.result(w, model.NotExists, http.StatusOK)
		return
	}
	h.result(w, h.alloc.AddQueryToDisk(q, diskID), http.StatusOK)
}

func (h *handlers) removeQueryFromDisk(w http.ResponseWriter, r *http.Request) {
	diskID, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	queryID, ok := h.id(w, r, "queryID")
	if !ok {
		return
	}
	h.result(w, h.alloc.RemoveQueryFromDisk(model.Query{ID: queryID}, diskID), http.StatusOK)
}

func (h *handlers) addRAMToDisk(w http.ResponseWriter, r *http.Request) {
	diskID, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	ramID, ok := h.id(w, r, "ramID")
	if !ok {
		return
	}
	h.result(w, h.alloc.AddRAMToDisk(ramID, diskID), http.StatusOK)
}

func (h *handlers) removeRAMFromDisk(w http.ResponseWriter, r *http.Request) {
	diskID, ok := h.id(w, r, "diskID")
	if !ok {
		return
	}
	ramID, ok := h.id(w, r, "ramID")
	if !ok {
		return
	}
	h.result(w, h.alloc.RemoveRAMFromDisk(ramID, diskID), http.StatusOK)
}

func (h *handlers) averageQuerySize(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "diskID"); ok {
		h.json(w, http.StatusOK, map[string]float64{"average_query_size": h.alloc.AverageSizeQueriesOnDisk(id)})
	}
}

func (h *handlers) totalRAM(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "diskID"); ok {
		h.json(w, http.StatusOK, map[string]int{"total_ram": h.alloc.DiskTotalRAM(id)})
	}
}

func (h *handlers) exclusive(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "diskID"); ok {
		h.json(w, http.StatusOK, map[string]bool{"exclusive": h.alloc.IsCompanyExclusive(id)})
	}
}

func (h *handlers) runnableQueries(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "diskID"); ok {
		h.json(w, http.StatusOK, map[string][]int{"query_ids": h.alloc.GetQueriesCanBeAddedToDisk(id)})
	}
}

func (h *handlers) runnableQueriesWithRAM(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "diskID"); ok {
		h.json(w, http.StatusOK, map[string][]int{"query_ids": h.alloc.GetQueriesCanBeAddedToDiskAndRAM(id)})
	}
}

func (h *handlers) closeQueries(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r, "queryID"); ok {
		h.json(w, http.StatusOK, map[string][]int{"query_ids": h.alloc.GetCloseQueries(id)})
	}
}

func (h *handlers) costForPurpose(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]int{"cost": h.alloc.GetCostForPurpose(chi.URLParam(r, "purpose"))})
}

func (h *handlers) conflictingDisks(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string][]int{"disk_ids": h.alloc.GetConflictingDisks()})
}

func (h *handlers) mostAvailableDisks(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string][]int{"disk_ids": h.alloc.MostAvailableDisks()})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		h.logger.Debugw("could not decode request body", "path", r.URL.Path, "error", err)
		h.result(w, model.BadParameters, http.StatusOK)
		return false
	}
	return true
}

func (h *handlers) id(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		h.result(w, model.BadParameters, http.StatusOK)
		return 0, false
	}
	return id, true
}

// result writes rv with its mapped status; okStatus replaces 200 for Ok.
func (h *handlers) result(w http.ResponseWriter, rv model.ReturnValue, okStatus int) {
	status := statusFor[rv]
	if rv == model.Ok {
		status = okStatus
	}
	h.json(w, status, resultBody{Result: rv})
}

func (h *handlers) json(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		h.logger.Warnw("could not encode response", "error", err)
	}
}
