package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes a graph into a SQLite file. Several graphs may share a
// file; rows are keyed by (run_id, graph).
type SQLiteSink struct {
	Path  string
	RunID string
	Graph string
}

func (s *SQLiteSink) Accept(vertices []string, edges []EdgeLabel) error {
	if s.Path == "" {
		return fmt.Errorf("sqlite path is empty")
	}
	if s.RunID == "" || s.Graph == "" {
		return fmt.Errorf("sqlite sink needs run id and graph name")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, graph, created_ts_unix_ns, vertex_count, edge_count) VALUES (?, ?, ?, ?, ?)`,
		s.RunID, s.Graph, time.Now().UTC().UnixNano(), len(vertices), len(edges)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	vstmt, err := tx.PrepareContext(ctx, `INSERT INTO vertices (run_id, graph, vertex_id, label) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare vertices: %w", err)
	}
	defer vstmt.Close()
	for i, v := range vertices {
		if _, err := vstmt.ExecContext(ctx, s.RunID, s.Graph, i+1, v); err != nil {
			return fmt.Errorf("insert vertex %q: %w", v, err)
		}
	}

	estmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (run_id, graph, seq, event_index, source, target, label) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edges: %w", err)
	}
	defer estmt.Close()
	for i, e := range edges {
		if _, err := estmt.ExecContext(ctx, s.RunID, s.Graph, i, e.Index, e.Source, e.Target, e.Label); err != nil {
			return fmt.Errorf("insert edge %d: %w", e.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT NOT NULL,
			graph TEXT NOT NULL,
			created_ts_unix_ns INTEGER NOT NULL,
			vertex_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL,
			PRIMARY KEY (run_id, graph)
		);`,
		`CREATE TABLE IF NOT EXISTS vertices (
			run_id TEXT NOT NULL,
			graph TEXT NOT NULL,
			vertex_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			PRIMARY KEY (run_id, graph, vertex_id)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT NOT NULL,
			graph TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event_index INTEGER NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			label TEXT NOT NULL,
			PRIMARY KEY (run_id, graph, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_event ON edges(event_index);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}
