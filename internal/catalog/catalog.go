// Package catalog persists the run history: one row per derivation run and
// one per generated product, in a local SQLite database. The catalog is an
// accounting surface only; the pipeline never reads from it.
package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Catalog wraps the run-history database.
type Catalog struct {
	db *sql.DB
}

// RunRecord is one derivation run.
type RunRecord struct {
	ID             string
	Input          string
	OutputDir      string
	Resolution     float64
	Method         string
	TerrainProfile string
	Advanced       bool
	TileCount      int
	Status         string
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// ProductRecord is one generated raster or report file.
type ProductRecord struct {
	RunID     string
	Name      string
	Path      string
	Kind      string
	SizeBytes int64
}

// Open opens (creating if needed) the catalog database and applies pending
// migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// StartRun inserts a new run in "running" state.
func (c *Catalog) StartRun(r RunRecord) error {
	_, err := c.db.Exec(`
		INSERT INTO runs (run_id, input, output_dir, resolution, method, terrain_profile,
			advanced, tile_count, status, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'running', ?)`,
		r.ID, r.Input, r.OutputDir, r.Resolution, r.Method, r.TerrainProfile,
		r.Advanced, r.TileCount, r.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun marks a run complete or failed. errMsg is empty on success.
func (c *Catalog) FinishRun(id, status, errMsg string) error {
	_, err := c.db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_unix_nanos = ? WHERE run_id = ?`,
		status, errMsg, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// AddProduct records one generated output file.
func (c *Catalog) AddProduct(p ProductRecord) error {
	_, err := c.db.Exec(`
		INSERT INTO products (run_id, name, path, kind, size_bytes)
		VALUES (?, ?, ?, ?, ?)`,
		p.RunID, p.Name, p.Path, p.Kind, p.SizeBytes)
	if err != nil {
		return fmt.Errorf("record product %s: %w", p.Name, err)
	}
	return nil
}

// Products lists the products of one run in insertion order.
func (c *Catalog) Products(runID string) ([]ProductRecord, error) {
	rows, err := c.db.Query(`
		SELECT run_id, name, path, kind, size_bytes
		FROM products WHERE run_id = ? ORDER BY product_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductRecord
	for rows.Next() {
		var p ProductRecord
		if err := rows.Scan(&p.RunID, &p.Name, &p.Path, &p.Kind, &p.SizeBytes); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentRuns lists runs newest-first, up to limit.
func (c *Catalog) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := c.db.Query(`
		SELECT run_id, input, output_dir, resolution, method, terrain_profile,
			advanced, tile_count, status, COALESCE(error, ''),
			started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Input, &r.OutputDir, &r.Resolution, &r.Method,
			&r.TerrainProfile, &r.Advanced, &r.TileCount, &r.Status, &r.Error,
			&started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run fetches one run by ID.
func (c *Catalog) Run(id string) (*RunRecord, error) {
	row := c.db.QueryRow(`
		SELECT run_id, input, output_dir, resolution, method, terrain_profile,
			advanced, tile_count, status, COALESCE(error, ''),
			started_unix_nanos, finished_unix_nanos
		FROM runs WHERE run_id = ?`, id)

	var r RunRecord
	var started int64
	var finished sql.NullInt64
	err := row.Scan(&r.ID, &r.Input, &r.OutputDir, &r.Resolution, &r.Method,
		&r.TerrainProfile, &r.Advanced, &r.TileCount, &r.Status, &r.Error,
		&started, &finished)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}
