package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"filmcode-tg-bot/app/services"
	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
)

// MovieService is the domain surface the transport drives: channel posts go
// in, code lookups and admin operations come out.
type MovieService interface {
	IngestPost(ctx context.Context, post e.ChannelPost) (e.IngestOutcome, error)
	Deliver(ctx context.Context, userChatID int64, code string) (services.DeliverResult, *e.MovieEntry, error)
	AdminDelete(ctx context.Context, code string) (bool, error)
	AdminList(ctx context.Context) ([]e.MovieEntry, error)
}

type Client struct {
	Log        logger.Logger
	APIToken   string
	WorkersNum int

	// ChannelUsername is the movies channel, with the @ prefix
	ChannelUsername string

	// AdminID receives notifications and may run admin commands
	AdminID int64

	// Service is set after construction because the coordinator needs the
	// client as renderer and notifier
	Service MovieService

	bot *tgbotapi.BotAPI
	wg  sync.WaitGroup
}

func (c *Client) Start(ctx context.Context) (err error) {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}

	log := c.Log

	c.bot, err = tgbotapi.NewBotAPI(c.APIToken)
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}

	log.Info("bot api created", "username", c.bot.Self.UserName)

	updatesConf := tgbotapi.NewUpdate(0)
	updatesConf.Timeout = 60

	updatesChan := c.bot.GetUpdatesChan(updatesConf)

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updatesChan)
		}()
	}

	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// Render delivers a registered channel post into a user chat via copyMessage.
// Any API failure means the post cannot be delivered anymore, which the
// coordinator treats as a trigger for self-healing deletion.
func (c *Client) Render(_ context.Context, userChatID int64, chatID int64, messageID int) error {
	conf := tgbotapi.NewCopyMessage(userChatID, chatID, messageID)
	_, err := c.bot.CopyMessage(conf)
	if err != nil {
		return fmt.Errorf("%w: %s", e.ErrPostUnreachable, err)
	}

	return nil
}

// NotifyAdmin sends a service message to the administrator.
func (c *Client) NotifyAdmin(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.AdminID, text)
	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updatesChan tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updatesChan:
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	log := c.Log.With("tg_update_id", update.UpdateID)

	defer func() {
		if err := recover(); err != nil {
			sentry.CurrentHub().Recover(err)
			log.Error("panic", "error", err)
		}
	}()

	switch {
	case update.ChannelPost != nil:
		return c.handleChannelPost(ctx, update.ChannelPost)
	case update.CallbackQuery != nil:
		return c.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return c.handleMessage(ctx, update.Message)
	default:
		log.Debug("update without message, skipping")
		return nil
	}
}

func (c *Client) handleChannelPost(ctx context.Context, post *tgbotapi.Message) error {
	log := c.Log.With("tg_chat_id", post.Chat.ID, "tg_message_id", post.MessageID)

	if !strings.EqualFold(post.Chat.UserName, strings.TrimPrefix(c.ChannelUsername, "@")) {
		log.Info("post from foreign channel, ignoring", "tg_chat_username", post.Chat.UserName)
		return nil
	}

	text := post.Text
	if text == "" {
		text = post.Caption
	}
	if text == "" {
		log.Debug("post without text, skipping")
		return nil
	}

	outcome, err := c.Service.IngestPost(ctx, e.ChannelPost{
		ChatID:    post.Chat.ID,
		MessageID: post.MessageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("ingesting channel post: %w", err)
	}

	log.Info("channel post processed", "outcome", outcome)
	return nil
}

func (c *Client) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil || message.Chat == nil {
		c.Log.Warn("message without sender or chat")
		return nil
	}

	if !message.Chat.IsPrivate() {
		return nil
	}

	if message.IsCommand() {
		return c.handleCommand(ctx, message)
	}

	return c.handleSearch(ctx, message)
}

func (c *Client) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start", "help":
		return c.handleStart(ctx, message)
	case "list":
		return c.handleList(ctx, message)
	case "delete":
		return c.handleDelete(ctx, message)
	case "database":
		return c.handleDatabase(ctx, message)
	default:
		return c.sendText(message.Chat.ID, "Невідома команда. Надішліть код фільму або /help.")
	}
}

func (c *Client) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if !c.isSubscribed(ctx, message.From.ID) {
		return c.sendSubscribePrompt(message.Chat.ID)
	}

	text := fmt.Sprintf(
		"Привіт, %s!\n\n"+
			"Ласкаво просимо до бота пошуку фільмів!\n\n"+
			"Як користуватись:\n"+
			"1. Знайдіть код фільму у відео\n"+
			"2. Надішліть мені цей код (наприклад: F001)\n"+
			"3. Я надішлю вам пост з фільмом\n\n"+
			"Просто надішліть код фільму!",
		message.From.FirstName,
	)
	return c.sendText(message.Chat.ID, text)
}

func (c *Client) handleSearch(ctx context.Context, message *tgbotapi.Message) error {
	log := c.Log.With("tg_user_id", message.From.ID)

	if !c.isSubscribed(ctx, message.From.ID) {
		return c.sendSubscribePrompt(message.Chat.ID)
	}

	code := strings.TrimSpace(message.Text)
	result, entry, err := c.Service.Deliver(ctx, message.Chat.ID, code)
	if err != nil {
		_ = c.sendText(message.Chat.ID, "Сталася помилка, спробуйте ще раз трохи пізніше.")
		return fmt.Errorf("delivering code %q: %w", code, err)
	}

	switch result {
	case services.DeliverOK:
		log.Info("movie delivered", "code", entry.Code)

		if entry.HasLink() {
			msg := tgbotapi.NewMessage(message.Chat.ID, "Натисніть кнопку, щоб перейти до фільму:")
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonURL("Дивитись фільм", *entry.Link),
				),
			)
			if _, err := c.bot.Send(msg); err != nil {
				return fmt.Errorf("sending link button: %w", err)
			}
		}

		return nil

	case services.DeliverUnreachable:
		log.Warn("movie post unreachable", "code", entry.Code)
		return c.sendText(
			message.Chat.ID,
			"Не вдалося знайти пост у каналі — можливо, його було видалено.\nЗверніться до адміністратора, щоб пост опублікували заново.",
		)

	default:
		return c.sendText(
			message.Chat.ID,
			fmt.Sprintf(
				"Фільм з кодом \"%s\" не знайдено.\n\n"+
					"Можливі причини:\n"+
					"- Код введено неправильно\n"+
					"- Фільм ще не додано в базу\n\n"+
					"Перевірте код та спробуйте ще раз!",
				strings.ToUpper(code),
			),
		)
	}
}

func (c *Client) handleList(ctx context.Context, message *tgbotapi.Message) error {
	if message.From.ID != c.AdminID {
		return c.sendText(message.Chat.ID, "Ця команда доступна тільки адміністратору!")
	}

	movies, err := c.Service.AdminList(ctx)
	if err != nil {
		_ = c.sendText(message.Chat.ID, "Не вдалося отримати список, спробуйте ще раз.")
		return fmt.Errorf("listing movies: %w", err)
	}

	if len(movies) == 0 {
		return c.sendText(message.Chat.ID, "База даних порожня!\n\nПублікуйте пости в канал з текстом 'Код: F001'")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Всього фільмів в базі: %d\n\nКоди:\n", len(movies))
	for _, movie := range movies {
		fmt.Fprintf(&sb, "• %s (message_id: %d)\n", movie.Code, movie.MessageID)
	}

	// Telegram caps messages at 4096 chars
	text := sb.String()
	if len(text) > 4000 {
		text = text[:4000]
	}

	return c.sendText(message.Chat.ID, text)
}

func (c *Client) handleDelete(ctx context.Context, message *tgbotapi.Message) error {
	if message.From.ID != c.AdminID {
		return c.sendText(message.Chat.ID, "Ця команда доступна тільки адміністратору!")
	}

	code := strings.TrimSpace(message.CommandArguments())
	if code == "" {
		return c.sendText(message.Chat.ID, "Вкажіть код фільму!\n\nПриклад: /delete F001")
	}

	removed, err := c.Service.AdminDelete(ctx, code)
	if err != nil {
		_ = c.sendText(message.Chat.ID, "Не вдалося видалити, спробуйте ще раз.")
		return fmt.Errorf("deleting code %q: %w", code, err)
	}

	code = strings.ToUpper(code)
	if removed {
		return c.sendText(message.Chat.ID, fmt.Sprintf("Фільм з кодом %s видалено!", code))
	}
	return c.sendText(message.Chat.ID, fmt.Sprintf("Фільм з кодом %s не знайдено!", code))
}

func (c *Client) handleDatabase(ctx context.Context, message *tgbotapi.Message) error {
	if message.From.ID != c.AdminID {
		return c.sendText(message.Chat.ID, "Ця команда доступна тільки адміністратору!")
	}

	text, keyboard, err := c.buildDatabasePanel(ctx)
	if err != nil {
		_ = c.sendText(message.Chat.ID, "Не вдалося отримати список, спробуйте ще раз.")
		return fmt.Errorf("building database panel: %w", err)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	_, err = c.bot.Send(msg)
	return err
}

func (c *Client) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if _, err := c.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		c.Log.Error("answering callback query", "error", err)
	}

	if query.Message == nil {
		return nil
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	switch {
	case query.Data == "check_subscription":
		if c.isSubscribed(ctx, query.From.ID) {
			return c.editText(chatID, messageID, fmt.Sprintf(
				"Дякую за підписку, %s!\n\nТепер ви можете користуватись ботом.\nНадішліть мені код фільму (наприклад: F001)",
				query.From.FirstName,
			))
		}
		return c.editText(chatID, messageID,
			"Здається, ви ще не підписались на канал.\n\n"+
				"1. Натисніть кнопку \"Підписатись на канал\"\n"+
				"2. Підпишіться на канал\n"+
				"3. Поверніться сюди та натисніть \"Я підписався\"")

	case query.Data == "refresh_database":
		if query.From.ID != c.AdminID {
			return c.editText(chatID, messageID, "Ця функція доступна тільки адміністратору!")
		}

		text, keyboard, err := c.buildDatabasePanel(ctx)
		if err != nil {
			return fmt.Errorf("building database panel: %w", err)
		}

		if keyboard == nil {
			return c.editText(chatID, messageID, text)
		}

		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		_, err = c.bot.Send(edit)
		return err

	case strings.HasPrefix(query.Data, "delete_"):
		if query.From.ID != c.AdminID {
			return c.editText(chatID, messageID, "Ця функція доступна тільки адміністратору!")
		}

		code := strings.TrimPrefix(query.Data, "delete_")
		removed, err := c.Service.AdminDelete(ctx, code)
		if err != nil {
			return fmt.Errorf("deleting code %q: %w", code, err)
		}

		if removed {
			return c.editText(chatID, messageID, fmt.Sprintf("Фільм з кодом %s видалено!", code))
		}
		return c.editText(chatID, messageID, fmt.Sprintf("Фільм з кодом %s не знайдено!", code))

	default:
		c.Log.Debug("unknown callback data", "data", query.Data)
		return nil
	}
}

func (c *Client) buildDatabasePanel(ctx context.Context) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	movies, err := c.Service.AdminList(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("listing movies: %w", err)
	}

	if len(movies) == 0 {
		return "База даних порожня!\n\nПублікуйте пости в канал з текстом 'Код: F001'", nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "База даних фільмів (%d)\n\n", len(movies))
	for i, movie := range movies {
		fmt.Fprintf(&sb, "%d. %s — message_id: %d\n", i+1, movie.Code, movie.MessageID)
	}

	// delete buttons in rows of two, refresh row at the bottom
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(movies); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+movies[i].Code, "delete_"+movies[i].Code),
		}
		if i+1 < len(movies) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑 "+movies[i+1].Code, "delete_"+movies[i+1].Code))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Оновити", "refresh_database"),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &keyboard, nil
}

// isSubscribed checks channel membership via getChatMember. Errors count as
// not subscribed: the user can always retry through the button.
func (c *Client) isSubscribed(_ context.Context, userID int64) bool {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: c.ChannelUsername,
			UserID:             userID,
		},
	})
	if err != nil {
		c.Log.Error("checking subscription", "tg_user_id", userID, "error", err)
		return false
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true
	default:
		return false
	}
}

func (c *Client) sendSubscribePrompt(chatID int64) error {
	channel := strings.TrimPrefix(c.ChannelUsername, "@")

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Щоб користуватись ботом, потрібно підписатись на наш канал!\n\n"+
			"Канал: %s\n\n"+
			"Там ви знайдете:\n"+
			"- Коди фільмів\n"+
			"- Цікаві підбірки\n"+
			"- Новинки кіно\n\n"+
			"Після підписки натисніть \"Я підписався\"",
		c.ChannelUsername,
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Підписатись на канал", "https://t.me/"+channel),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Я підписався ✓", "check_subscription"),
		),
	)

	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := c.bot.Send(edit)
	return err
}
