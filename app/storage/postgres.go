package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	e "filmcode-tg-bot/pkg/entities"
)

const pgUniqueViolation = "23505"

type Postgres struct {
	db *sql.DB
}

// NewPostgres connects to the database behind databaseURL and prepares the
// movies table. Durable mode is the expected one for Postgres: the table is
// created if absent and existing entries survive restarts.
func NewPostgres(ctx context.Context, databaseURL string, mode e.StorageMode) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	client := &Postgres{
		db: db,
	}

	err = client.init(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("initializing postgres database: %w", err)
	}

	return client, nil
}

func (c *Postgres) Close() error {
	return c.db.Close()
}

func (c *Postgres) Add(ctx context.Context, entry e.MovieEntry) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO movies (code, message_id, chat_id, link) VALUES ($1, $2, $3, $4)`,
		entry.Code, entry.MessageID, entry.ChatID, entry.Link,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return e.ErrDuplicateCode
		}

		return fmt.Errorf("inserting movie: %w", err)
	}

	return nil
}

func (c *Postgres) Find(ctx context.Context, code string) (*e.MovieEntry, error) {
	var entry e.MovieEntry
	err := c.db.QueryRowContext(
		ctx,
		`SELECT code, message_id, chat_id, link FROM movies WHERE code = $1`,
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

func (c *Postgres) Delete(ctx context.Context, code string) (bool, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM movies WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("deleting movie: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting affected rows: %w", err)
	}

	return affected > 0, nil
}

func (c *Postgres) ListAll(ctx context.Context) ([]e.MovieEntry, error) {
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

func (c *Postgres) init(ctx context.Context, mode e.StorageMode) error {
	if mode == e.ModeEphemeral {
		if _, err := c.db.ExecContext(ctx, `DROP TABLE IF EXISTS movies`); err != nil {
			return fmt.Errorf("dropping movies table: %w", err)
		}
	}

	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS movies (
			id SERIAL PRIMARY KEY,
			code VARCHAR(50) UNIQUE NOT NULL,
			message_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			link TEXT
		)`)
	return err
}
