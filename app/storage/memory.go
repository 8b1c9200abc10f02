package storage

import (
	"context"
	"sync"

	e "filmcode-tg-bot/pkg/entities"
)

// Memory is an in-process MovieStore. It backs tests and throwaway runs; the
// mutex gives Add the same exactly-one-wins guarantee the database unique
// constraints provide.
type Memory struct {
	mu      sync.Mutex
	entries map[string]e.MovieEntry
	order   []string
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]e.MovieEntry),
	}
}

func (c *Memory) Close() error {
	return nil
}

func (c *Memory) Add(_ context.Context, entry e.MovieEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[entry.Code]; exists {
		return e.ErrDuplicateCode
	}

	c.entries[entry.Code] = entry
	c.order = append(c.order, entry.Code)
	return nil
}

func (c *Memory) Find(_ context.Context, code string) (*e.MovieEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[code]
	if !exists {
		return nil, nil
	}

	return &entry, nil
}

func (c *Memory) Delete(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[code]; !exists {
		return false, nil
	}

	delete(c.entries, code)
	for i, stored := range c.order {
		if stored == code {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return true, nil
}

func (c *Memory) ListAll(_ context.Context) ([]e.MovieEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]e.MovieEntry, 0, len(c.order))
	for _, code := range c.order {
		entries = append(entries, c.entries[code])
	}

	return entries, nil
}
