// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"time"

	"github.com/cockroachdb/pgdriver/pkg/pgwire"
)

// DefaultStatementCacheSize is the prepared statement cache capacity used
// when the config leaves it zero.
const DefaultStatementCacheSize = 256

// Config describes how to reach and authenticate against a server.
type Config struct {
	// Addr is host:port for TCP, or an absolute path for a unix socket.
	Addr     string
	User     string
	Password string
	Database string

	// Params holds extra startup parameters, e.g. application_name.
	Params map[string]string

	// DialTimeout bounds connection establishment. Zero relies on the
	// caller's context alone.
	DialTimeout time.Duration

	// StatementCacheSize caps the per-connection prepared statement cache.
	// Zero means DefaultStatementCacheSize; negative disables caching.
	StatementCacheSize int
}

func (cfg Config) cacheSize() int {
	if cfg.StatementCacheSize == 0 {
		return DefaultStatementCacheSize
	}
	if cfg.StatementCacheSize < 0 {
		return 0
	}
	return cfg.StatementCacheSize
}

func (cfg Config) wireConfig() pgwire.Config {
	return pgwire.Config{
		Addr:        cfg.Addr,
		User:        cfg.User,
		Password:    cfg.Password,
		Database:    cfg.Database,
		Params:      cfg.Params,
		DialTimeout: cfg.DialTimeout,
	}
}
