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
	"context"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"go.uber.org/zap"

	"diskalloc/pkg/allocator"
)

type AllocatorServer struct {
	srv    *http.Server
	logger *zap.SugaredLogger
}

func NewAllocatorServer(addr string, alloc allocator.Allocator, logger *zap.SugaredLogger) *AllocatorServer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &AllocatorServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: gziphandler.GzipHandler(NewRouter(alloc, logger)),
		},
		logger: logger,
	}
}

func (as *AllocatorServer) Handler() http.Handler {
	return as.srv.Handler
}

// Serve blocks until the server stops. A stop caused by Shutdown is not an error.
func (as *AllocatorServer) Serve() error {
	as.logger.Infow("listening", "addr", as.srv.Addr)

	err := as.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (as *AllocatorServer) Shutdown(ctx context.Context) error {
	as.logger.Infow("shutting down", "addr", as.srv.Addr)
	return as.srv.Shutdown(ctx)
}
