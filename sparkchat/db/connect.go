package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// Connect opens an embedded libsql database at path, creating the file and
// its directory when missing.
func Connect(path string, logger zerolog.Logger) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info().Str("path", path).Msg("database not found, creating a new one")
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("could not create db at path %s: %w", path, err)
		}
		file.Close()
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000&_temp_store=memory", path)

	database, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := verify(database); err != nil {
		database.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("connected to embedded libsql")
	return database, nil
}

// verify runs a basic connectivity check before the connection is handed out.
func verify(database *sql.DB) error {
	var result int
	if err := database.QueryRowContext(context.Background(), "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("connectivity test failed: unexpected result %d", result)
	}
	return nil
}
