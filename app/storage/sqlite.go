package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	e "filmcode-tg-bot/pkg/entities"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the sqlite database at filePath and prepares
// the movies table. In ephemeral mode the table is dropped first, so the
// registry starts empty and is rebuilt from a channel scan.
func NewSQLite(ctx context.Context, filePath string, mode e.StorageMode) (*SQLite, error) {
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	client := &SQLite{
		db: db,
	}

	err = client.init(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("initializing sqlite3 database: %w", err)
	}

	return client, nil
}

func (c *SQLite) Close() error {
	return c.db.Close()
}

func (c *SQLite) Add(ctx context.Context, entry e.MovieEntry) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO movies (code, message_id, chat_id, link) VALUES (?, ?, ?, ?)`,
		entry.Code, entry.MessageID, entry.ChatID, entry.Link,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return e.ErrDuplicateCode
		}

		return fmt.Errorf("inserting movie: %w", err)
	}

	return nil
}

func (c *SQLite) Find(ctx context.Context, code string) (*e.MovieEntry, error) {
	var entry e.MovieEntry
	err := c.db.QueryRowContext(
		ctx,
		`SELECT code, message_id, chat_id, link FROM movies WHERE code = ?`,
		code,
	).Scan(&entry.Code, &entry.MessageID, &entry.ChatID, &entry.Link)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("selecting movie: %w", err)
	}

	return &entry, nil
}

func (c *SQLite) Delete(ctx context.Context, code string) (bool, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM movies WHERE code = ?`, code)
	if err != nil {
		return false, fmt.Errorf("deleting movie: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting affected rows: %w", err)
	}

	return affected > 0, nil
}

func (c *SQLite) ListAll(ctx context.Context) ([]e.MovieEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT code, message_id, chat_id, link FROM movies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("selecting movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []e.MovieEntry
	for rows.Next() {
		var entry e.MovieEntry
		if err := rows.Scan(&entry.Code, &entry.MessageID, &entry.ChatID, &entry.Link); err != nil {
			return nil, fmt.Errorf("scanning movie row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movie rows: %w", err)
	}

	return entries, nil
}

//go:embed init.sql
var initQuery string

func (c *SQLite) init(ctx context.Context, mode e.StorageMode) error {
	if mode == e.ModeEphemeral {
		if _, err := c.db.ExecContext(ctx, `DROP TABLE IF EXISTS movies`); err != nil {
			return fmt.Errorf("dropping movies table: %w", err)
		}
	}

	_, err := c.db.ExecContext(ctx, initQuery)
	return err
}
