// Copyright 2021 TiKV Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil wraps the process-global zap logger, matching the
// logutil.BgLogger()/logutil.Logger(ctx) convention used throughout
// client-go (see internal/client/client.go).
package logutil

import (
	"context"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type ctxLogKeyType struct{}

var ctxLogKey = ctxLogKeyType{}

// SetLogger replaces the global logger, e.g. from a driver's bootstrap.
func SetLogger(logger *zap.Logger) {
	log.ReplaceGlobals(logger, nil)
}

// BgLogger returns the global background logger.
func BgLogger() *zap.Logger {
	return log.L()
}

// Logger returns a request-scoped logger if one was attached to ctx via
// WithLogger, otherwise the global logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return BgLogger()
	}
	if logger, ok := ctx.Value(ctxLogKey).(*zap.Logger); ok {
		return logger
	}
	return BgLogger()
}

// WithLogger attaches logger to ctx so a later Logger(ctx) call returns it.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLogKey, logger)
}
