package telegram

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ceramicnetwork/go-pulse/models"
)

const updateTimeoutSec = 60

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Listener struct {
	bot     updateSource
	botName string
	handler models.MessageHandler
	logger  models.Logger
	mention *regexp.Regexp
}

func NewListener(logger models.Logger, bot updateSource, botName string, handler models.MessageHandler) *Listener {
	return &Listener{
		bot:     bot,
		botName: botName,
		handler: handler,
		logger:  logger,
		mention: regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(botName) + `\b[,:]?`),
	}
}

// Run long-polls for updates until the context is cancelled or the update channel closes.
func (l *Listener) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = updateTimeoutSec
	updateConfig.AllowedUpdates = []string{"message"}
	updates := l.bot.GetUpdatesChan(updateConfig)
	l.logger.Infof("listener: receiving updates as @%s", l.botName)

	for {
		select {
		case <-ctx.Done():
			l.bot.StopReceivingUpdates()
			l.logger.Infof("listener: stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, ok := l.toMessage(update); ok {
				l.handler.HandleMessage(ctx, msg)
			}
		}
	}
}

func (l *Listener) toMessage(update tgbotapi.Update) (models.Message, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return models.Message{}, false
	}
	msg := models.Message{
		Chat:    models.Channel{Id: strconv.FormatInt(m.Chat.ID, 10), Name: chatName(m.Chat)},
		User:    toUser(m.From),
		Text:    strings.TrimSpace(m.Text),
		Private: m.Chat.IsPrivate(),
	}
	if !msg.Private {
		if l.mention.MatchString(msg.Text) {
			msg.Addressed = true
			msg.Text = strings.TrimSpace(l.mention.ReplaceAllString(msg.Text, ""))
		} else if m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && strings.EqualFold(m.ReplyToMessage.From.UserName, l.botName) {
			msg.Addressed = true
		}
	}
	for i := range m.NewChatMembers {
		msg.Joined = append(msg.Joined, toUser(&m.NewChatMembers[i]))
	}
	if m.LeftChatMember != nil {
		left := toUser(m.LeftChatMember)
		msg.Left = &left
	}
	return msg, true
}

func toUser(u *tgbotapi.User) models.User {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if len(name) == 0 {
		name = u.UserName
	}
	return models.User{Id: strconv.FormatInt(u.ID, 10), Name: name, Handle: u.UserName, IsBot: u.IsBot}
}

func chatName(c *tgbotapi.Chat) string {
	if len(c.Title) > 0 {
		return c.Title
	}
	return c.UserName
}
