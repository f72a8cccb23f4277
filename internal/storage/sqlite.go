package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/storage/migrations"
)

// SQLitePartition implements Partition on top of a shared kv table, one row
// per (partition, key). It backs the persisted local/sync/settings
// partitions when the engine runs outside a browser.
type SQLitePartition struct {
	db   *sql.DB
	name string
}

// NewSQLitePartition binds a named partition to the given database. The
// database must have been prepared with RunMigrations.
func NewSQLitePartition(db *sql.DB, name string) *SQLitePartition {
	return &SQLitePartition{db: db, name: name}
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens (or creates) the database at dsn and applies migrations.
// The caller imports the sqlite driver.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *SQLitePartition) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	query := `SELECT value FROM kv WHERE partition=? AND key=?`
	err := p.db.QueryRowContext(ctx, query, p.name, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select value: %w", err)
	}
	return v, nil
}

func (p *SQLitePartition) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv (partition, key, value) VALUES (?, ?, ?)
			ON CONFLICT(partition, key) DO UPDATE SET value = excluded.value`
	if _, err := p.db.ExecContext(ctx, query, p.name, key, value); err != nil {
		return fmt.Errorf("failed to upsert value: %w", err)
	}
	return nil
}

func (p *SQLitePartition) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv WHERE partition=? AND key=?`
	if _, err := p.db.ExecContext(ctx, query, p.name, key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

func (p *SQLitePartition) Keys(ctx context.Context) ([]string, error) {
	query := `SELECT key FROM kv WHERE partition=?`
	rows, err := p.db.QueryContext(ctx, query, p.name)
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *SQLitePartition) Clear(ctx context.Context) error {
	query := `DELETE FROM kv WHERE partition=?`
	if _, err := p.db.ExecContext(ctx, query, p.name); err != nil {
		return fmt.Errorf("failed to clear partition: %w", err)
	}
	return nil
}
