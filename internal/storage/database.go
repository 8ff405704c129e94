/*
 * This file is part of MME (https://github.com/Sahilpatil2001/mme-fastapi).
 * Copyright (C) 2025 Sahil Patil
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package storage persists users, settings, form answers and merge jobs in SQLite.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/security"
)

//go:embed schema.sql
var schemaFiles embed.FS

// DefaultPath is used when DatabaseConfig.Path is empty
const DefaultPath = "./data/mme.db"

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Connection pragmas. They travel in the DSN so that every pooled connection
// applies them, not only the first one.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"temp_store(MEMORY)",
}

// Database owns the SQLite handle shared by the stores
type Database struct {
	db   *sql.DB
	path string
}

type DatabaseConfig struct {
	Path string
}

// NewDatabase opens (creating if needed) the database file and applies the
// embedded schema.
func NewDatabase(config DatabaseConfig) (*Database, error) {
	path := config.Path
	if path == "" {
		path = DefaultPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db, path: path}
	if err := d.applySchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("✅ Database connected", "path", security.SanitizeLogInput(path))
	}
	return d, nil
}

func dsn(path string) string {
	params := url.Values{}
	for _, p := range connectionPragmas {
		params.Add("_pragma", p)
	}
	return "file:" + path + "?" + params.Encode()
}

// applySchema runs schema.sql. Every statement in it is idempotent.
func (d *Database) applySchema() error {
	schema, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := d.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.LogDatabaseOperation("migrate", "schema")
	return nil
}

func (d *Database) DB() *sql.DB {
	return d.db
}

// Path reports the file backing the database
func (d *Database) Path() string {
	return d.path
}

// Ping backs the health check
func (d *Database) Ping() error {
	return d.db.Ping()
}

// Checkpoint folds the WAL back into the main file
func (d *Database) Checkpoint() error {
	if _, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}

	logging.LogDatabaseOperation("checkpoint", "all", zap.String("mode", "truncate"))
	return nil
}

// Close checkpoints the WAL and releases the handle. A failed checkpoint is
// logged and does not prevent the close.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.Checkpoint(); err != nil {
		logging.LogWarn("WAL checkpoint before close failed",
			zap.String("path", security.SanitizeLogInput(d.path)), zap.Error(err))
	}
	if logging.Sugar != nil {
		logging.Sugar.Infow("🔌 Closing database connection", "path", security.SanitizeLogInput(d.path))
	}
	return d.db.Close()
}
