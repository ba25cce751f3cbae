package store

import (
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
)

// Index is a sqlite catalog of recorded runs and their steps, so artifact
// directories can be browsed without walking the filesystem.
type Index struct {
	DB *sql.DB
}

func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			base_dir TEXT,
			status TEXT DEFAULT 'active',
			steps INTEGER DEFAULT 0,
			aggregate_path TEXT,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			step_number INTEGER,
			dir TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &Index{DB: db}, nil
}

func (i *Index) Close() error {
	return i.DB.Close()
}

func (i *Index) AddRun(id string, baseDir string) error {
	query := `INSERT INTO runs (id, base_dir) VALUES (?, ?)`
	_, err := i.DB.Exec(query, id, baseDir)
	return err
}

func (i *Index) AddStep(runID string, stepNumber int, dir string) error {
	query := `INSERT INTO run_steps (run_id, step_number, dir) VALUES (?, ?, ?)`
	_, err := i.DB.Exec(query, runID, stepNumber, dir)
	return err
}

func (i *Index) FinishRun(id string, status string, steps int) error {
	query := `UPDATE runs SET status = ?, steps = ?, finished_at = datetime('now') WHERE id = ?`
	_, err := i.DB.Exec(query, status, steps, id)
	return err
}

func (i *Index) SetAggregate(id string, path string) error {
	query := `UPDATE runs SET aggregate_path = ? WHERE id = ?`
	_, err := i.DB.Exec(query, path, id)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (i *Index) ListRuns(limit int) ([]map[string]any, error) {
	query := `
		SELECT id, base_dir, status, steps, COALESCE(aggregate_path, ''), started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`
	rows, err := i.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]any
	for rows.Next() {
		var id, baseDir, status, aggregate, startedAt string
		var steps int
		if err := rows.Scan(&id, &baseDir, &status, &steps, &aggregate, &startedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]any{
			"id":             id,
			"base_dir":       baseDir,
			"status":         status,
			"steps":          steps,
			"aggregate_path": aggregate,
			"started_at":     startedAt,
		})
	}
	return runs, rows.Err()
}

// ListSteps returns a run's steps in step order.
func (i *Index) ListSteps(runID string) ([]map[string]any, error) {
	query := `SELECT step_number, dir FROM run_steps WHERE run_id = ? ORDER BY step_number`
	rows, err := i.DB.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []map[string]any
	for rows.Next() {
		var num int
		var dir string
		if err := rows.Scan(&num, &dir); err != nil {
			return nil, err
		}
		steps = append(steps, map[string]any{
			"step_number": num,
			"dir":         dir,
		})
	}
	return steps, rows.Err()
}
