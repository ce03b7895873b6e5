package notifs

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

type DiscordColor int

const (
	DiscordColor_None    = iota
	DiscordColor_Info    = 3447003
	DiscordColor_Ok      = 3581519
	DiscordColor_Warning = 16776960
	DiscordColor_Alert   = 16711712
)

const DiscordPacing = 2 * time.Second

var _ models.Notifier = &DiscordHandler{}

type DiscordHandler struct {
	alertWebhook   webhook.Client
	warningWebhook webhook.Client
	testWebhook    webhook.Client
	logger         models.Logger
}

func NewDiscordHandler(logger models.Logger) (*DiscordHandler, error) {
	if a, err := parseDiscordWebhookUrl(common.Env_DiscordAlert); err != nil {
		return nil, err
	} else if w, err := parseDiscordWebhookUrl(common.Env_DiscordWarning); err != nil {
		return nil, err
	} else if t, err := parseDiscordWebhookUrl(common.Env_DiscordTest); err != nil {
		return nil, err
	} else {
		return &DiscordHandler{a, w, t, logger}, nil
	}
}

// parseDiscordWebhookUrl returns a nil client when the webhook isn't configured.
func parseDiscordWebhookUrl(urlEnv string) (webhook.Client, error) {
	webhookUrl := os.Getenv(urlEnv)
	if len(webhookUrl) > 0 {
		id, token, err := ParseWebhookUrl(webhookUrl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", urlEnv, err)
		}
		return webhook.New(id, token), nil
	}
	return nil, nil
}

// ParseWebhookUrl extracts the webhook id and token from a ".../webhooks/{id}/{token}" URL.
func ParseWebhookUrl(webhookUrl string) (snowflake.ID, string, error) {
	parsedUrl, err := url.Parse(webhookUrl)
	if err != nil {
		return 0, "", err
	}
	urlParts := strings.Split(strings.TrimSuffix(parsedUrl.Path, "/"), "/")
	if len(urlParts) < 2 || len(urlParts[len(urlParts)-1]) == 0 {
		return 0, "", fmt.Errorf("invalid discord webhook url path: %s", parsedUrl.Path)
	}
	id, err := snowflake.Parse(urlParts[len(urlParts)-2])
	if err != nil {
		return 0, "", err
	}
	return id, urlParts[len(urlParts)-1], nil
}

func (d DiscordHandler) SendAlert(title, desc, content string) error {
	return d.send(d.alertWebhook, title, desc, content, DiscordColor_Alert)
}

func (d DiscordHandler) SendWarning(title, desc, content string) error {
	return d.send(d.warningWebhook, title, desc, content, DiscordColor_Warning)
}

func (d DiscordHandler) send(wh webhook.Client, title, desc, content string, color DiscordColor) error {
	var err error
	if wh != nil {
		err = d.sendNotif(wh, title, desc, content, color)
	}
	// Always duplicate notifications to the test channel, if configured.
	if d.testWebhook != nil {
		if testErr := d.sendNotif(d.testWebhook, title, desc, content, color); err == nil {
			err = testErr
		}
	}
	return err
}

func (d DiscordHandler) sendNotif(wh webhook.Client, title, desc, content string, color DiscordColor) error {
	messageEmbed := discord.Embed{
		Title:       title,
		Description: desc,
		Type:        discord.EmbedTypeRich,
		Color:       int(color),
		Fields:      []discord.EmbedField{{Name: "Details", Value: content}},
	}
	_, err := wh.CreateMessage(discord.NewWebhookMessageCreateBuilder().
		SetEmbeds(messageEmbed).
		SetUsername(common.ServiceName).
		Build(),
		rest.WithDelay(DiscordPacing),
	)
	if err != nil {
		d.logger.Errorf("sendNotif: error sending discord notification: %v, %s, %s", err, title, desc)
		return err
	}
	return nil
}
