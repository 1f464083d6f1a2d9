package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/pkg/types"
)

// SQLCatalog stores memories in SQLite or PostgreSQL. Tags are kept as a
// JSON array in a text column so both drivers share one schema.
type SQLCatalog struct {
	db     *sql.DB
	driver string
}

// NewSQLCatalog opens the configured database and ensures the schema exists.
func NewSQLCatalog(cfg *config.DatabaseConfig) (*SQLCatalog, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	c := &SQLCatalog{db: db, driver: cfg.Driver}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLCatalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		project    TEXT NOT NULL,
		content    TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create memories schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (c *SQLCatalog) rebind(query string) string {
	if c.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *SQLCatalog) Put(ctx context.Context, mem *types.Memory) error {
	tags, err := json.Marshal(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := c.rebind(`INSERT INTO memories (id, project, content, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = c.db.ExecContext(ctx, query,
		mem.ID, mem.Project, mem.Content, string(tags),
		mem.CreatedAt.UTC(), mem.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert memory %s: %w", mem.ID, err)
	}
	return nil
}

func (c *SQLCatalog) Get(ctx context.Context, project, id string) (*types.Memory, error) {
	query := c.rebind(`SELECT id, project, content, tags, created_at, updated_at
		FROM memories WHERE project = ? AND id = ?`)
	row := c.db.QueryRowContext(ctx, query, project, id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %s: %w", id, err)
	}
	return mem, nil
}

func (c *SQLCatalog) Update(ctx context.Context, mem *types.Memory) error {
	tags, err := json.Marshal(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := c.rebind(`UPDATE memories SET content = ?, tags = ?, updated_at = ?
		WHERE project = ? AND id = ?`)
	res, err := c.db.ExecContext(ctx, query,
		mem.Content, string(tags), mem.UpdatedAt.UTC(), mem.Project, mem.ID)
	if err != nil {
		return fmt.Errorf("failed to update memory %s: %w", mem.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *SQLCatalog) Delete(ctx context.Context, project, id string) error {
	query := c.rebind(`DELETE FROM memories WHERE project = ? AND id = ?`)
	res, err := c.db.ExecContext(ctx, query, project, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *SQLCatalog) ListByProject(ctx context.Context, project string) ([]types.Memory, error) {
	query := c.rebind(`SELECT id, project, content, tags, created_at, updated_at
		FROM memories WHERE project = ? ORDER BY created_at ASC, id ASC`)
	rows, err := c.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories for %s: %w", project, err)
	}
	defer rows.Close()

	var memories []types.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		memories = append(memories, *mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory rows: %w", err)
	}
	return memories, nil
}

func (c *SQLCatalog) CountByProject(ctx context.Context, project string) (int, error) {
	query := c.rebind(`SELECT COUNT(*) FROM memories WHERE project = ?`)
	var count int
	if err := c.db.QueryRowContext(ctx, query, project).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count memories for %s: %w", project, err)
	}
	return count, nil
}

func (c *SQLCatalog) Projects(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT project FROM memories ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return projects, nil
}

func (c *SQLCatalog) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog database unreachable: %w", err)
	}
	return nil
}

func (c *SQLCatalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var mem types.Memory
	var tags string
	if err := row.Scan(&mem.ID, &mem.Project, &mem.Content, &tags,
		&mem.CreatedAt, &mem.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &mem.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags for %s: %w", mem.ID, err)
	}
	return &mem, nil
}
