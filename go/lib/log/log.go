// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps zap to provide the levelled, structured logging used
// throughout the control plane. The fast-path translators in
// pkg/gateway/dataplane count per-packet events and use this package
// only through RateLimited debug traces.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the configuration surface of translator.cfg's "log.level".
type Level string

const (
	Debug    Level = "debug"
	Info     Level = "info"
	WarnLvl  Level = "warn"
	ErrorLvl Level = "error"
	Crit     Level = "crit"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger = newDefault()
)

func newDefault() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-frills logger; this should never happen with a
		// static production config.
		l = zap.NewExample()
	}
	return l.Sugar()
}

// Setup reconfigures the package-level logger from a textual level, as
// loaded from the "log.level" config key.
func Setup(level Level) error {
	zl, err := zap.ParseAtomicLevel(mapLevel(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	mu.Lock()
	logger = built.Sugar()
	mu.Unlock()
	return nil
}

func mapLevel(level Level) string {
	switch level {
	case Crit:
		return "dpanic"
	case ErrorLvl:
		return "error"
	case WarnLvl:
		return "warn"
	case Debug:
		return "debug"
	default:
		return "info"
	}
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debugw(msg string, kv ...interface{})  { current().Debugw(msg, kv...) }
func Infow(msg string, kv ...interface{})   { current().Infow(msg, kv...) }
func Warnw(msg string, kv ...interface{})   { current().Warnw(msg, kv...) }
func Errorw(msg string, kv ...interface{})  { current().Errorw(msg, kv...) }

// CritAndExit logs msg at error severity, waits briefly for the log to
// flush, and exits the process with status 1. It is reserved for
// InitError-class failures; it runs no registered teardown itself.
func CritAndExit(msg string, kv ...interface{}) {
	current().Errorw(msg, kv...)
	time.Sleep(10 * time.Millisecond) // give the flush a chance
	os.Exit(1)
}

// RateLimited returns a logger func that drops calls more frequent than
// every, used for the fast-path-adjacent debug traces in §7
// (MtuExceeded, BufferGrowFailed, OutOfBoundsAfterAdjust) that must not
// flood when a single misbehaving flow retries rapidly.
func RateLimited(every time.Duration) func(msg string, kv ...interface{}) {
	var mu sync.Mutex
	var last time.Time
	return func(msg string, kv ...interface{}) {
		mu.Lock()
		now := time.Now()
		if now.Sub(last) < every {
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()
		current().Debugw(msg, kv...)
	}
}
