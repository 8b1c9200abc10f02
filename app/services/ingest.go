package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
	"filmcode-tg-bot/pkg/parser"
)

// PostRenderer delivers a registered channel post to a user chat. A post that
// cannot be delivered anymore (deleted from the channel) is reported as
// entities.ErrPostUnreachable.
type PostRenderer interface {
	Render(ctx context.Context, userChatID int64, chatID int64, messageID int) error
}

// AdminNotifier sends a service message to the bot administrator. Delivery is
// best-effort; the coordinator logs failures and moves on.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// HistorySource yields historical channel posts one at a time. Next returns
// io.EOF when the history is exhausted and *entities.RateLimitError when the
// upstream asks to slow down.
type HistorySource interface {
	Next(ctx context.Context) (*e.ChannelPost, error)
}

// DeliverResult classifies the outcome of a code lookup for the caller, which
// turns it into user-facing wording.
type DeliverResult string

const (
	DeliverOK          DeliverResult = "ok"
	DeliverNotFound    DeliverResult = "not_found"
	DeliverUnreachable DeliverResult = "unreachable"
)

// Coordinator drives channel posts through the parser into the registry and
// resolves user lookups against it. Live posts and history scans share the
// same ingestion path, so duplicate handling behaves identically for both.
type Coordinator struct {
	// Log is a logger
	Log logger.Logger

	// Registry is the code registry
	Registry *Registry

	// Notifier delivers admin notifications, may be nil
	Notifier AdminNotifier

	// Renderer delivers registered posts to users
	Renderer PostRenderer
}

// IngestPost runs one channel post through the parser and commits the result.
// A post without a code is skipped; a post with an already-registered code is
// rejected and reported, the existing entry stays untouched.
func (c *Coordinator) IngestPost(ctx context.Context, post e.ChannelPost) (e.IngestOutcome, error) {
	log := c.Log.With("tg_chat_id", post.ChatID, "tg_message_id", post.MessageID)

	parsed := parser.Parse(post.Text)
	if !parsed.HasCode() {
		log.Debug("no movie code in post, skipping")
		return e.OutcomeSkipped, nil
	}

	entry := e.MovieEntry{
		Code:      parsed.Code,
		MessageID: post.MessageID,
		ChatID:    post.ChatID,
	}
	if parsed.Link != "" {
		entry.Link = &parsed.Link
	}

	err := c.Registry.Add(ctx, entry)
	if errors.Is(err, e.ErrDuplicateCode) {
		log.Warn("movie code already registered, post rejected", "code", parsed.Code)
		c.notifyAdmin(ctx, fmt.Sprintf(
			"Помилка! Код %s вже існує в базі.\n\nВиберіть інший код або видаліть старий: /delete %s",
			parsed.Code, parsed.Code,
		))
		return e.OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("adding movie %s: %w", parsed.Code, err)
	}

	title := parsed.Title
	if title == "" {
		title = "Невідома"
	}

	log.Info("movie added", "code", parsed.Code, "title", title)
	c.notifyAdmin(ctx, fmt.Sprintf(
		"Фільм успішно додано в базу!\n\nКод: %s\nНазва: %s\nMessage ID: %d\nПосилання: %s\n\nКористувачі тепер можуть знайти його за кодом %s",
		parsed.Code, title, post.MessageID, linkOrDash(parsed.Link), parsed.Code,
	))

	return e.OutcomeAdded, nil
}

// ScanHistory consumes posts from src one at a time and ingests each through
// the live path. One post's failure never aborts the scan; it is counted and
// the scan continues. Posts at or below afterMessageID were committed by a
// previous run and are not re-attempted, which makes a retried scan resume
// instead of restart.
func (c *Coordinator) ScanHistory(ctx context.Context, src HistorySource, afterMessageID int) (e.ScanSummary, error) {
	summary := e.ScanSummary{LastMessageID: afterMessageID}

	for {
		post, err := c.nextPost(ctx, src)
		if errors.Is(err, io.EOF) {
			c.Log.Info("history scan finished",
				"processed", summary.Processed,
				"added", summary.Added,
				"duplicates", summary.Duplicates,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
			)
			return summary, nil
		}
		if err != nil {
			return summary, fmt.Errorf("fetching history post: %w", err)
		}

		if post.MessageID <= afterMessageID {
			continue
		}

		summary.Processed++

		outcome, err := c.IngestPost(ctx, *post)
		if err != nil {
			summary.Failed++
			c.Log.Error("ingesting history post", "tg_message_id", post.MessageID, "error", err)
		} else {
			switch outcome {
			case e.OutcomeAdded:
				summary.Added++
			case e.OutcomeDuplicate:
				summary.Duplicates++
			case e.OutcomeSkipped:
				summary.Skipped++
			}
		}

		summary.LastMessageID = post.MessageID
	}
}

// nextPost fetches the next history post, backing off and retrying the fetch
// when the source reports a rate limit. Registry writes are never retried.
func (c *Coordinator) nextPost(ctx context.Context, src HistorySource) (*e.ChannelPost, error) {
	for {
		post, err := src.Next(ctx)

		var rateLimit *e.RateLimitError
		if errors.As(err, &rateLimit) {
			c.Log.Warn("history source rate limited", "retry_after", rateLimit.RetryAfter)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(rateLimit.RetryAfter):
			}
			continue
		}

		return post, err
	}
}

// Deliver resolves a user-submitted code and renders the referenced post into
// the user's chat. When the post turns out to be unreachable the stale entry
// is deleted on the spot, so the next lookup reports a clean miss. That
// self-healing delete is the only removal that happens without an explicit
// admin action.
func (c *Coordinator) Deliver(ctx context.Context, userChatID int64, code string) (DeliverResult, *e.MovieEntry, error) {
	entry, err := c.Registry.Find(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("finding code %s: %w", code, err)
	}

	if entry == nil {
		return DeliverNotFound, nil, nil
	}

	err = c.Renderer.Render(ctx, userChatID, entry.ChatID, entry.MessageID)
	if errors.Is(err, e.ErrPostUnreachable) {
		c.Log.Warn("registered post unreachable, removing entry", "code", entry.Code, "tg_message_id", entry.MessageID)

		if _, delErr := c.Registry.Delete(ctx, entry.Code); delErr != nil {
			c.Log.Error("removing unreachable entry", "code", entry.Code, "error", delErr)
		}

		c.notifyAdmin(ctx, fmt.Sprintf(
			"Пост для коду %s більше недоступний в каналі, запис видалено з бази.\nОпублікуйте пост заново, щоб відновити код.",
			entry.Code,
		))

		return DeliverUnreachable, entry, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("rendering post for code %s: %w", entry.Code, err)
	}

	return DeliverOK, entry, nil
}

// AdminDelete removes an entry by code and reports whether one existed.
func (c *Coordinator) AdminDelete(ctx context.Context, code string) (bool, error) {
	return c.Registry.Delete(ctx, code)
}

// AdminList returns the full registry snapshot.
func (c *Coordinator) AdminList(ctx context.Context) ([]e.MovieEntry, error) {
	return c.Registry.ListAll(ctx)
}

func (c *Coordinator) notifyAdmin(ctx context.Context, text string) {
	if c.Notifier == nil {
		return
	}

	if err := c.Notifier.NotifyAdmin(ctx, text); err != nil {
		c.Log.Error("notifying admin", "error", err)
	}
}

func linkOrDash(link string) string {
	if link == "" {
		return "Не вказано"
	}
	return link
}
