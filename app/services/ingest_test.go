package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmcode-tg-bot/app/storage"
	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
)

type fakeNotifier struct {
	messages []string
	err      error
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return n.err
}

type fakeRenderer struct {
	unreachable map[int]bool
	rendered    []int
}

func (r *fakeRenderer) Render(_ context.Context, _ int64, _ int64, messageID int) error {
	if r.unreachable[messageID] {
		return e.ErrPostUnreachable
	}
	r.rendered = append(r.rendered, messageID)
	return nil
}

// slice-backed history source; errs holds injected fetch errors by position
type fakeSource struct {
	posts []e.ChannelPost
	errs  map[int]error
	pos   int
}

func (s *fakeSource) Next(_ context.Context) (*e.ChannelPost, error) {
	if err, ok := s.errs[s.pos]; ok {
		delete(s.errs, s.pos)
		return nil, err
	}
	if s.pos >= len(s.posts) {
		return nil, io.EOF
	}
	post := s.posts[s.pos]
	s.pos++
	return &post, nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *storage.Memory, *fakeNotifier, *fakeRenderer) {
	t.Helper()

	store := storage.NewMemory()
	notifier := &fakeNotifier{}
	renderer := &fakeRenderer{unreachable: map[int]bool{}}
	log := logger.NewLogger(true)

	coord := &Coordinator{
		Log:      log,
		Registry: &Registry{Log: log, Store: store},
		Notifier: notifier,
		Renderer: renderer,
	}

	return coord, store, notifier, renderer
}

func TestIngestPostAddsEntry(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, _ := newTestCoordinator(t)

	outcome, err := coord.IngestPost(ctx, e.ChannelPost{
		ChatID:    -100123,
		MessageID: 42,
		Text:      "Код: 001\nНазва: Ніхто2",
	})
	require.NoError(t, err)
	assert.Equal(t, e.OutcomeAdded, outcome)

	entry, err := store.Find(ctx, "001")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.MessageID)
	assert.Equal(t, int64(-100123), entry.ChatID)
	assert.Nil(t, entry.Link)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "001")
	assert.Contains(t, notifier.messages[0], "Ніхто2")
}

func TestIngestPostKeepsParsedLink(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{
		ChatID:    -1,
		MessageID: 7,
		Text:      "Код: F7\nПосилання: https://example.com/f7",
	})
	require.NoError(t, err)

	entry, err := store.Find(ctx, "F7")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.Link)
	assert.Equal(t, "https://example.com/f7", *entry.Link)
}

func TestIngestPostWithoutCodeIsNoop(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, _ := newTestCoordinator(t)

	outcome, err := coord.IngestPost(ctx, e.ChannelPost{
		ChatID:    -1,
		MessageID: 1,
		Text:      "Анонс без коду",
	})
	require.NoError(t, err)
	assert.Equal(t, e.OutcomeSkipped, outcome)

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, notifier.messages)
}

func TestIngestPostDuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, _ := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 10, Text: "Код: 001\nНазва: Ніхто2"})
	require.NoError(t, err)

	outcome, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 11, Text: "Код: 001\nНазва: Інший фільм"})
	require.NoError(t, err)
	assert.Equal(t, e.OutcomeDuplicate, outcome)

	entry, err := store.Find(ctx, "001")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 10, entry.MessageID)

	require.Len(t, notifier.messages, 2)
	assert.Contains(t, notifier.messages[1], "вже існує")
}

func TestIngestPostNotifierFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	coord, _, notifier, _ := newTestCoordinator(t)
	notifier.err = errors.New("telegram down")

	outcome, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 1, Text: "Код: A1"})
	require.NoError(t, err)
	assert.Equal(t, e.OutcomeAdded, outcome)
}

func TestScanHistoryAccumulatesOutcomes(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator(t)

	src := &fakeSource{posts: []e.ChannelPost{
		{ChatID: -1, MessageID: 1, Text: "Код: A1\nНазва: Перший"},
		{ChatID: -1, MessageID: 2, Text: "Анонс без коду"},
		{ChatID: -1, MessageID: 3, Text: "Код: A1\nНазва: Дублікат"},
		{ChatID: -1, MessageID: 4, Text: "Код: B2"},
	}}

	summary, err := coord.ScanHistory(ctx, src, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 4, summary.LastMessageID)
}

func TestScanHistoryResumesAfterMessageID(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestCoordinator(t)

	src := &fakeSource{posts: []e.ChannelPost{
		{ChatID: -1, MessageID: 1, Text: "Код: A1"},
		{ChatID: -1, MessageID: 2, Text: "Код: B2"},
		{ChatID: -1, MessageID: 3, Text: "Код: C3"},
	}}

	summary, err := coord.ScanHistory(ctx, src, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 3, summary.LastMessageID)

	// posts at or below the resume position were not committed
	entry, err := store.Find(ctx, "A1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestScanHistoryRetriesRateLimitedFetch(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestCoordinator(t)

	src := &fakeSource{
		posts: []e.ChannelPost{{ChatID: -1, MessageID: 1, Text: "Код: A1"}},
		errs:  map[int]error{0: &e.RateLimitError{RetryAfter: time.Millisecond}},
	}

	summary, err := coord.ScanHistory(ctx, src, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)

	entry, err := store.Find(ctx, "A1")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestScanHistoryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	coord, _, _, _ := newTestCoordinator(t)

	src := &fakeSource{
		posts: []e.ChannelPost{{ChatID: -1, MessageID: 1, Text: "Код: A1"}},
		errs:  map[int]error{0: &e.RateLimitError{RetryAfter: time.Minute}},
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := coord.ScanHistory(ctx, src, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeliverFoundAndMissing(t *testing.T) {
	ctx := context.Background()
	coord, _, _, renderer := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 5, Text: "Код: 001"})
	require.NoError(t, err)

	result, entry, err := coord.Deliver(ctx, 777, "001")
	require.NoError(t, err)
	assert.Equal(t, DeliverOK, result)
	require.NotNil(t, entry)
	assert.Equal(t, []int{5}, renderer.rendered)

	result, entry, err = coord.Deliver(ctx, 777, "999")
	require.NoError(t, err)
	assert.Equal(t, DeliverNotFound, result)
	assert.Nil(t, entry)
}

func TestDeliverNormalizesUserInput(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 5, Text: "кОд: a1"})
	require.NoError(t, err)

	result, _, err := coord.Deliver(ctx, 777, " a1 ")
	require.NoError(t, err)
	assert.Equal(t, DeliverOK, result)
}

func TestDeliverSelfHealsUnreachablePost(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, renderer := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 5, Text: "Код: 001"})
	require.NoError(t, err)
	renderer.unreachable[5] = true

	result, entry, err := coord.Deliver(ctx, 777, "001")
	require.NoError(t, err)
	assert.Equal(t, DeliverUnreachable, result)
	require.NotNil(t, entry)

	// the stale entry is gone, the next lookup is a clean miss
	stored, err := store.Find(ctx, "001")
	require.NoError(t, err)
	assert.Nil(t, stored)

	result, _, err = coord.Deliver(ctx, 777, "001")
	require.NoError(t, err)
	assert.Equal(t, DeliverNotFound, result)

	require.NotEmpty(t, notifier.messages)
	assert.Contains(t, notifier.messages[len(notifier.messages)-1], "недоступний")
}

func TestAdminDeleteAndList(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 1, Text: "Код: A1"})
	require.NoError(t, err)
	_, err = coord.IngestPost(ctx, e.ChannelPost{ChatID: -1, MessageID: 2, Text: "Код: B2"})
	require.NoError(t, err)

	entries, err := coord.AdminList(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	removed, err := coord.AdminDelete(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = coord.AdminDelete(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err = coord.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B2", entries[0].Code)
}
