package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fintrack/internal/log"
)

const pollTimeout = 60

// Runner long-polls Telegram and answers each message through a
// Conversation.
type Runner struct {
	api    *tgbotapi.BotAPI
	conv   *Conversation
	logger *log.Logger
}

// NewRunner authenticates with token. debug enables the library's request
// logging.
func NewRunner(token string, debug bool, conv *Conversation, logger *log.Logger) (*Runner, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = debug

	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentBot)
	logger.Info("Telegram bot authorized", "username", api.Self.UserName)

	return &Runner{api: api, conv: conv, logger: logger}, nil
}

// Run handles updates until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := r.api.GetUpdatesChan(u)
	defer r.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Telegram bot stopping", log.FieldOperation, log.OpShutdown)
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			r.handle(ctx, update.Message)
		}
	}
}

func (r *Runner) handle(ctx context.Context, m *tgbotapi.Message) {
	msg := Message{ChatID: m.Chat.ID, Text: m.Text}
	if m.From != nil {
		msg.UserID = m.From.ID
		msg.Username = m.From.UserName
	}
	if msg.UserID == 0 {
		msg.UserID = m.Chat.ID
	}
	if m.Chat.IsGroup() || m.Chat.IsSuperGroup() {
		msg.Text = strings.TrimSpace(strings.ReplaceAll(msg.Text, "@"+r.api.Self.UserName, ""))
	}

	reply := r.conv.Handle(ctx, msg)
	if reply.Text == "" {
		return
	}

	out := tgbotapi.NewMessage(msg.ChatID, reply.Text)
	if reply.Keyboard != nil {
		out.ReplyMarkup = replyKeyboard(reply.Keyboard)
	}
	if _, err := r.api.Send(out); err != nil {
		r.logger.Error("Telegram send failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldChatID, msg.ChatID)
	}
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			line = append(line, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, line)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}
