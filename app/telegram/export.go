package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	e "filmcode-tg-bot/pkg/entities"
)

// ExportSource streams posts out of a Telegram Desktop chat-export file
// (result.json). The Bot API cannot page channel history, so backfilling the
// registry goes through an export instead. Messages are decoded one at a time
// off the "messages" array, the file is never loaded whole.
type ExportSource struct {
	// ChatID is the real channel id to stamp on yielded posts; the export
	// format stores ids without the -100 channel prefix.
	ChatID int64

	file *os.File
	dec  *json.Decoder
}

func NewExportSource(path string, chatID int64) (*ExportSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}

	dec := json.NewDecoder(file)
	if err := seekMessages(dec); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("locating messages array: %w", err)
	}

	return &ExportSource{
		ChatID: chatID,
		file:   file,
		dec:    dec,
	}, nil
}

func (s *ExportSource) Close() error {
	return s.file.Close()
}

// Next yields the next non-service message, io.EOF after the last one.
func (s *ExportSource) Next(_ context.Context) (*e.ChannelPost, error) {
	for s.dec.More() {
		var msg exportMessage
		if err := s.dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("decoding export message: %w", err)
		}

		if msg.Type != "message" {
			continue
		}

		return &e.ChannelPost{
			ChatID:    s.ChatID,
			MessageID: msg.ID,
			Text:      string(msg.Text),
		}, nil
	}

	return nil, io.EOF
}

// seekMessages advances the decoder to just inside the top-level "messages"
// array, skipping the export metadata fields before it.
func seekMessages(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("unexpected token %v, want object", tok)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v, want object key", tok)
		}

		if key == "messages" {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				return fmt.Errorf("unexpected token %v, want array", tok)
			}
			return nil
		}

		// skip the value of an uninteresting key
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
}

type exportMessage struct {
	ID   int        `json:"id"`
	Type string     `json:"type"`
	Text exportText `json:"text"`
}

// exportText flattens the export's text field, which is either a plain string
// or an array mixing strings and entity objects.
type exportText string

func (t *exportText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = exportText(plain)
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("text is neither string nor array: %w", err)
	}

	var out []byte
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			out = append(out, s...)
			continue
		}

		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &entity); err != nil {
			return fmt.Errorf("decoding text entity: %w", err)
		}
		out = append(out, entity.Text...)
	}

	*t = exportText(out)
	return nil
}
