/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"namedraft/internal/storage"
)

// PGStore keeps name projects in PostgreSQL. It implements storage.Store.
type PGStore struct {
	db *sql.DB
}

var _ storage.Store = (*PGStore)(nil)

// OpenPG connects through the pgx stdlib driver, pings the server and applies the embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Close releases the pool.
func (s *PGStore) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Save upserts the document and archives the version it replaces.
func (s *PGStore) Save(ctx context.Context, name string, doc []byte) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("project name is required")
	}
	if !json.Valid(doc) {
		return errors.New("document is not valid JSON")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	// dialect=PostgreSQL
	if _, err := tx.ExecContext(ctx, `INSERT INTO name_history(name, version, doc)
		SELECT name, version, doc FROM name_projects WHERE name = $1`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("archive %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO name_projects(name, doc) VALUES($1, $2::jsonb)
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, version = name_projects.version + 1, updated_at = now()`,
		name, string(doc)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load returns the stored document, or storage.ErrNotFound.
func (s *PGStore) Load(ctx context.Context, name string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc::text FROM name_projects WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return []byte(raw), nil
}

// List returns every stored project ordered by name.
func (s *PGStore) List(ctx context.Context) ([]storage.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, octet_length(doc::text), updated_at FROM name_projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Entry
	for rows.Next() {
		var e storage.Entry
		if err := rows.Scan(&e.Name, &e.Size, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Version returns the current version counter of name.
func (s *PGStore) Version(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM name_projects WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return v, err
}
