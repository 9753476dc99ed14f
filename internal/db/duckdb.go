package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key   VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transcript (
		id         VARCHAR PRIMARY KEY,
		seq        BIGINT NOT NULL,
		role       VARCHAR NOT NULL,
		content    VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// Open opens (creating if needed) the DuckDB file at path and applies the schema
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}
