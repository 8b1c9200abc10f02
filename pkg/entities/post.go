package entities

// ChannelPost is one observed channel message, either live or from a history
// scan. Text holds whichever of text/caption the post had.
type ChannelPost struct {
	ChatID    int64
	MessageID int
	Text      string
}

// ParsedPost holds the fields extracted from a post's text. Absent fields are
// empty strings; extraction never fails.
type ParsedPost struct {
	Code        string // uppercased
	Title       string
	Year        string // four digits
	Description string
	Link        string
}

func (p *ParsedPost) HasCode() bool {
	return p.Code != ""
}
