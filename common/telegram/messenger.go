package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/abevier/tsk/ratelimiter"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ceramicnetwork/go-pulse/models"
)

// Telegram allows about 30 messages per second across chats.
const DefaultSendRateLimit = 30
const DefaultSendBurstLimit = 30
const DefaultSendLimiterMaxQueueDepth = 1000

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type sendTask struct {
	ChatId int64
	Text   string
}

var _ models.Messenger = &Messenger{}

type Messenger struct {
	bot     sender
	logger  models.Logger
	limiter *ratelimiter.RateLimiter[sendTask, tgbotapi.Message]
}

func NewMessenger(logger models.Logger, bot sender) *Messenger {
	m := Messenger{bot: bot, logger: logger}
	limiterOpts := ratelimiter.Opts{
		Limit:             DefaultSendRateLimit,
		Burst:             DefaultSendBurstLimit,
		MaxQueueDepth:     DefaultSendLimiterMaxQueueDepth,
		FullQueueStrategy: ratelimiter.BlockWhenFull,
	}
	m.limiter = ratelimiter.New(limiterOpts, m.limiterRunFunction)
	return &m
}

// SendMessage delivers text to a user or chat id. A user's private chat shares the user's id.
func (m *Messenger) SendMessage(ctx context.Context, recipientId, text string) error {
	chatId, err := strconv.ParseInt(recipientId, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid recipient %s: %w", recipientId, err)
	}
	if _, err = m.limiter.Submit(ctx, sendTask{ChatId: chatId, Text: text}); err != nil {
		return classifyError(recipientId, err)
	}
	return nil
}

func (m *Messenger) limiterRunFunction(ctx context.Context, task sendTask) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}
	m.logger.Debugf("telegram: sending message to %d", task.ChatId)
	return m.bot.Send(tgbotapi.NewMessage(task.ChatId, task.Text))
}

// classifyError maps Telegram's "cannot message this user" responses onto ErrUnreachable.
func classifyError(recipientId string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusForbidden || strings.Contains(strings.ToLower(apiErr.Message), "chat not found") {
			return fmt.Errorf("telegram: %s: %w: %s", recipientId, models.ErrUnreachable, apiErr.Message)
		}
	}
	return fmt.Errorf("telegram: %s: %w", recipientId, err)
}

// BotApi connects to the Bot API, verifying the token.
func BotApi(logger models.Logger, token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorizing bot: %w", err)
	}
	logger.Infof("telegram: authorized as @%s", bot.Self.UserName)
	return bot, nil
}
