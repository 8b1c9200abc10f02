package entities

// MovieEntry is one record of the code registry. It points at a post in the
// movies channel; the post itself (photo, description, everything) stays in
// Telegram, the registry only remembers where to find it.
type MovieEntry struct {
	Code      string
	MessageID int
	ChatID    int64
	Link      *string // external watch link, nil if the post had none
}

// HasLink reports whether the entry carries a non-empty external link.
func (m *MovieEntry) HasLink() bool {
	return m.Link != nil && *m.Link != ""
}

// StorageMode selects how a store initializes its schema.
type StorageMode string

const (
	// ModeEphemeral drops and recreates the movies table on startup. Meant
	// for local throwaway databases that get rebuilt from a channel scan.
	ModeEphemeral StorageMode = "ephemeral"

	// ModeDurable creates the movies table only if it does not exist yet.
	ModeDurable StorageMode = "durable"
)
