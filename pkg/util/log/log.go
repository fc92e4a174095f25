// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log provides leveled, structured logging for the driver. It is a
// thin layer over zerolog; context log tags (via logtags) are rendered on
// every line so per-connection tags survive into the output. Output is
// discarded unless the embedding application installs a sink with SetOutput.
package log

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/pgdriver/pkg/util/syncutil"
	"github.com/rs/zerolog"
)

var state struct {
	syncutil.RWMutex
	logger zerolog.Logger
	// verbosity gates VEventf and V. Zero disables all verbose events.
	verbosity int
}

func init() {
	state.logger = zerolog.New(io.Discard).With().Timestamp().Logger()
}

// SetOutput directs driver logging to w. Passing io.Discard (the default)
// silences the driver.
func SetOutput(w io.Writer) {
	state.Lock()
	defer state.Unlock()
	state.logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetVerbosity sets the maximum verbose event level that will be emitted.
func SetVerbosity(level int) {
	state.Lock()
	defer state.Unlock()
	state.verbosity = level
}

// V returns true if the verbosity is at or above the requested level. Use it
// to avoid building expensive log arguments that would be discarded.
func V(level int) bool {
	state.RLock()
	defer state.RUnlock()
	return state.verbosity >= level
}

func current() zerolog.Logger {
	state.RLock()
	defer state.RUnlock()
	return state.logger
}

func eventf(ctx context.Context, ev *zerolog.Event, format string, args ...interface{}) {
	if tags := logtags.FromContext(ctx); tags != nil {
		ev = ev.Str("tags", tags.String())
	}
	ev.Msg(fmt.Sprintf(format, args...))
}

// Infof logs an informational message.
func Infof(ctx context.Context, format string, args ...interface{}) {
	l := current()
	eventf(ctx, l.Info(), format, args...)
}

// Warningf logs a warning message.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	l := current()
	eventf(ctx, l.Warn(), format, args...)
}

// Errorf logs an error message.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	l := current()
	eventf(ctx, l.Error(), format, args...)
}

// VEventf logs a message gated on the verbosity level.
func VEventf(ctx context.Context, level int, format string, args ...interface{}) {
	if !V(level) {
		return
	}
	l := current()
	eventf(ctx, l.Debug(), format, args...)
}
