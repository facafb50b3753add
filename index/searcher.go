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

package index

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver
)

// Package is one catalogue row.
type Package struct {
	ID          int64  `json:"id"`
	GroupID     string `json:"groupId"`
	ArtifactID  string `json:"artifactId"`
	Coordinates string `json:"coordinates"`
}

// Query describes one catalogue search. Free text and equality constraints
// compose: every Exact entry narrows the result further.
type Query struct {
	Query     string
	Exact     map[string]string // attribute equality constraints, ANDed
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Result is the paged search envelope.
type Result struct {
	Results    []Package
	TotalCount int
	HasMore    bool
}

// Searcher runs read-only queries against the catalogue database. The live
// server never writes; the builder owns all mutations.
type Searcher struct {
	db *sql.DB
}

// OpenSearcher opens the database read-only.
func OpenSearcher(path string) (*Searcher, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database %s: %w", path, err)
	}
	return &Searcher{db: db}, nil
}

// Close releases the database handle.
func (s *Searcher) Close() error { return s.db.Close() }

// sortColumns is the whitelist of sortable attributes; anything else falls
// back to coordinates.
var sortColumns = map[string]string{
	"group_id":    "group_id",
	"artifact_id": "artifact_id",
	"coordinates": "coordinates",
}

var fieldColumns = map[string]string{
	"group_id":    "group_id",
	"groupId":     "group_id",
	"artifact_id": "artifact_id",
	"artifactId":  "artifact_id",
	"coordinates": "coordinates",
}

// ftsUnsafe strips characters that have meaning to the FTS query parser.
var ftsUnsafe = regexp.MustCompile(`[^\w\-_.:\s]`)

// ftsQuery translates a free-text query into an FTS5 match expression:
// coordinate queries ("g:a") become two ANDed phrases, plain terms become
// prefix matches.
func ftsQuery(q string) string {
	q = strings.TrimSpace(ftsUnsafe.ReplaceAllString(q, ""))
	if q == "" {
		return ""
	}
	if g, a, ok := strings.Cut(q, ":"); ok {
		return fmt.Sprintf("%q AND %q", g, a)
	}
	terms := strings.Fields(q)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, fmt.Sprintf("%q*", t))
	}
	return strings.Join(quoted, " AND ")
}

// Search runs one catalogue query. An empty query pages through the full
// table; free text goes through the FTS projection; Exact entries become
// case-insensitive equality clauses on their columns, all ANDed together. An
// Exact key that names no catalogue column matches nothing.
func (s *Searcher) Search(ctx context.Context, q Query) (Result, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	order := orderClause(q.SortBy, q.SortOrder)

	from := "packages"
	var conds []string
	var args []any
	if q.Query != "" {
		if match := ftsQuery(q.Query); match != "" {
			from = "packages JOIN packages_fts ON packages.id = packages_fts.rowid"
			conds = append(conds, "packages_fts MATCH ?")
			args = append(args, match)
		}
	}
	for key, val := range q.Exact {
		col, ok := fieldColumns[key]
		if !ok {
			conds = append(conds, "1=0")
			continue
		}
		conds = append(conds, "packages."+col+" = ? COLLATE NOCASE")
		args = append(args, val)
	}
	if len(conds) == 0 {
		conds = append(conds, "1=1")
	}
	where := strings.Join(conds, " AND ")

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", from, where)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return Result{}, fmt.Errorf("count query failed: %w", err)
	}

	querySQL := fmt.Sprintf(
		"SELECT packages.id, packages.group_id, packages.artifact_id, packages.coordinates FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		from, where, order)
	rows, err := s.db.QueryContext(ctx, querySQL, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return Result{}, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.GroupID, &p.ArtifactID, &p.Coordinates); err != nil {
			return Result{}, err
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		Results:    results,
		TotalCount: total,
		HasMore:    q.Offset+len(results) < total,
	}, nil
}

func orderClause(sortBy, sortOrder string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "coordinates"
	}
	dir := "ASC"
	if strings.EqualFold(sortOrder, "DESC") {
		dir = "DESC"
	}
	return "packages." + col + " " + dir
}

// Get looks up one package by coordinates.
func (s *Searcher) Get(ctx context.Context, coordinates string) (Package, bool, error) {
	var p Package
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, artifact_id, coordinates FROM packages WHERE coordinates = ?",
		coordinates).Scan(&p.ID, &p.GroupID, &p.ArtifactID, &p.Coordinates)
	if err == sql.ErrNoRows {
		return Package{}, false, nil
	}
	if err != nil {
		return Package{}, false, err
	}
	return p, true, nil
}

// Count returns the catalogue size.
func (s *Searcher) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages").Scan(&n)
	return n, err
}
