package services

import (
	"context"
	"fmt"
	"strings"

	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
)

// MovieStore is the backing store of the code registry. Implementations must
// enforce code uniqueness on Add at the store level (unique constraint or
// index) and report a violation as entities.ErrDuplicateCode; there is no
// pre-check, so concurrent adds of the same code let exactly one through.
type MovieStore interface {
	Add(ctx context.Context, entry e.MovieEntry) error
	Find(ctx context.Context, code string) (*e.MovieEntry, error)
	Delete(ctx context.Context, code string) (bool, error)
	ListAll(ctx context.Context) ([]e.MovieEntry, error)
	Close() error
}

// Registry owns the code → channel post mapping. All codes are normalized
// (trimmed, uppercased) before touching the store, so lookups are exact
// matches over normalized codes.
type Registry struct {
	// Log is a logger
	Log logger.Logger

	// Store is the backing movie store
	Store MovieStore
}

// NormalizeCode brings a user- or post-supplied code to its canonical form.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (r *Registry) Add(ctx context.Context, entry e.MovieEntry) error {
	entry.Code = NormalizeCode(entry.Code)

	err := r.Store.Add(ctx, entry)
	if err != nil {
		return err
	}

	r.Log.Debug("registry entry added", "code", entry.Code, "tg_message_id", entry.MessageID)
	return nil
}

func (r *Registry) Find(ctx context.Context, code string) (*e.MovieEntry, error) {
	return r.Store.Find(ctx, NormalizeCode(code))
}

func (r *Registry) Delete(ctx context.Context, code string) (bool, error) {
	code = NormalizeCode(code)

	removed, err := r.Store.Delete(ctx, code)
	if err != nil {
		return false, fmt.Errorf("deleting code %s: %w", code, err)
	}

	if removed {
		r.Log.Info("registry entry deleted", "code", code)
	}

	return removed, nil
}

func (r *Registry) ListAll(ctx context.Context) ([]e.MovieEntry, error) {
	return r.Store.ListAll(ctx)
}
