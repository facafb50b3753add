// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package index maintains the searchable catalogue of Maven coordinates: a
// packages table extracted from the Nexus index archive plus an FTS5
// projection kept in sync by triggers.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

// schemaDDL creates the base table, its B-tree indexes, the FTS projection
// and the triggers that keep the projection synchronous.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY,
		group_id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		coordinates TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(group_id, artifact_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_group_id ON packages(group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_artifact_id ON packages(artifact_id)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_coordinates ON packages(coordinates)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS packages_fts USING fts5(
		group_id, artifact_id, coordinates,
		content='packages', content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS packages_ai AFTER INSERT ON packages BEGIN
		INSERT INTO packages_fts(rowid, group_id, artifact_id, coordinates)
		VALUES (new.id, new.group_id, new.artifact_id, new.coordinates);
	END`,
	`CREATE TRIGGER IF NOT EXISTS packages_ad AFTER DELETE ON packages BEGIN
		INSERT INTO packages_fts(packages_fts, rowid, group_id, artifact_id, coordinates)
		VALUES ('delete', old.id, old.group_id, old.artifact_id, old.coordinates);
	END`,
	`CREATE TRIGGER IF NOT EXISTS packages_au AFTER UPDATE ON packages BEGIN
		INSERT INTO packages_fts(packages_fts, rowid, group_id, artifact_id, coordinates)
		VALUES ('delete', old.id, old.group_id, old.artifact_id, old.coordinates);
		INSERT INTO packages_fts(rowid, group_id, artifact_id, coordinates)
		VALUES (new.id, new.group_id, new.artifact_id, new.coordinates);
	END`,
}

// OpenWritable opens (creating if needed) the database with the full schema
// applied.
func OpenWritable(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return db, nil
}
