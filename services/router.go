package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ceramicnetwork/go-pulse/models"
)

type RouteName string

const (
	Route_Poll   RouteName = "poll"
	Route_Status RouteName = "status"
	Route_Export RouteName = "export"
	Route_Answer RouteName = "answer"
)

type access int

const (
	access_Anyone access = iota
	access_Instructors
	access_InstructorsOrStaff
)

type route struct {
	name    RouteName
	pattern *regexp.Regexp
	access  access
}

// Routes are tried in order and the first matching pattern decides.
var routes = []route{
	{Route_Poll, regexp.MustCompile(`(?i)how(?: i|'|’)s every\w+\s*(in #([\w-]+))?`), access_Instructors},
	{Route_Status, regexp.MustCompile(`(?i)panic (?:status )?of #?([\.\w-]+)`), access_Instructors},
	{Route_Export, regexp.MustCompile(`(?i)panic export\s*(#([\.\w-]+))?`), access_InstructorsOrStaff},
	{Route_Answer, regexp.MustCompile(`^\D*(\d)\D*$`), access_Anyone},
}

type Authorizer interface {
	IsInstructor(userId string) bool
	IsStaff(userId string) bool
}

var _ models.MessageHandler = &CommandRouter{}

// CommandRouter keeps the identity directory current from chat traffic and turns commands into poll operations.
type CommandRouter struct {
	commands   models.PollCommands
	identities *IdentityDirectory
	messenger  models.Messenger
	auth       Authorizer
	logger     models.Logger
}

func NewCommandRouter(commands models.PollCommands, identities *IdentityDirectory, messenger models.Messenger, auth Authorizer, logger models.Logger) *CommandRouter {
	return &CommandRouter{commands, identities, messenger, auth, logger}
}

func (r *CommandRouter) HandleMessage(ctx context.Context, msg models.Message) {
	if msg.User.IsBot {
		return
	}
	r.observe(ctx, msg)
	if len(msg.Text) == 0 || !(msg.Private || msg.Addressed) {
		return
	}
	name, matches, ok := Match(msg.Text)
	if !ok {
		return
	}
	if !r.authorized(name, msg.User.Id) {
		r.logger.Debugf("router: %s is not allowed to %s", msg.User.Id, name)
		return
	}
	if err := r.dispatch(ctx, name, matches, msg); err != nil {
		r.logger.Errorf("router: %s from %s failed: %v", name, msg.User.Id, err)
		if sendErr := r.messenger.SendMessage(ctx, msg.Chat.Id, fmt.Sprintf(models.MsgFmt_CommandFailed, err)); sendErr != nil {
			r.logger.Warnf("router: error replying to %s: %v", msg.Chat.Id, sendErr)
		}
	}
}

// Match returns the first route whose pattern matches text, with its submatches.
func Match(text string) (RouteName, []string, bool) {
	for _, rt := range routes {
		if matches := rt.pattern.FindStringSubmatch(text); matches != nil {
			return rt.name, matches, true
		}
	}
	return "", nil, false
}

func (r *CommandRouter) authorized(name RouteName, userId string) bool {
	for _, rt := range routes {
		if rt.name != name {
			continue
		}
		switch rt.access {
		case access_Instructors:
			return r.auth.IsInstructor(userId)
		case access_InstructorsOrStaff:
			return r.auth.IsInstructor(userId) || r.auth.IsStaff(userId)
		}
	}
	return true
}

func (r *CommandRouter) dispatch(ctx context.Context, name RouteName, matches []string, msg models.Message) error {
	switch name {
	case Route_Poll:
		channel, ok, err := r.channel(ctx, msg, matches[2])
		if !ok || err != nil {
			return err
		}
		return r.commands.StartPoll(ctx, msg.User, msg.Chat.Id, channel)
	case Route_Status:
		channel, ok, err := r.channel(ctx, msg, matches[1])
		if !ok || err != nil {
			return err
		}
		return r.commands.Status(ctx, msg.User, msg.Chat.Id, channel)
	case Route_Export:
		return r.commands.Export(ctx, msg.User, matches[2])
	case Route_Answer:
		score, err := strconv.Atoi(matches[1])
		if err != nil {
			return err
		}
		return r.commands.RecordAnswer(ctx, msg.User, msg.Text, score)
	}
	return nil
}

// channel resolves a named channel, falling back to the group the message came from. It replies and reports false
// when there is nothing to resolve.
func (r *CommandRouter) channel(ctx context.Context, msg models.Message, name string) (models.Channel, bool, error) {
	if len(name) == 0 {
		if msg.Private {
			r.reply(ctx, msg.Chat.Id, models.Msg_WhichChannel)
			return models.Channel{}, false, nil
		}
		return msg.Chat, true, nil
	}
	channel, found, err := r.identities.ChannelByName(ctx, name)
	if err != nil {
		return models.Channel{}, false, err
	} else if !found {
		r.reply(ctx, msg.Chat.Id, fmt.Sprintf(models.MsgFmt_UnknownChannel, name))
		return models.Channel{}, false, nil
	}
	return channel, true, nil
}

// observe records who is in which channel.
func (r *CommandRouter) observe(ctx context.Context, msg models.Message) {
	var err error
	if msg.Private {
		err = r.identities.RememberUser(ctx, msg.User)
	} else if err = r.identities.RememberChannel(ctx, msg.Chat); err == nil {
		err = r.identities.Remember(ctx, msg.Chat.Id, msg.User)
	}
	if err != nil {
		r.logger.Errorf("router: error recording %s in %s: %v", msg.User.Id, msg.Chat.Id, err)
	}
	for _, joined := range msg.Joined {
		if joined.IsBot {
			continue
		}
		if err = r.identities.Remember(ctx, msg.Chat.Id, joined); err != nil {
			r.logger.Errorf("router: error adding %s to %s: %v", joined.Id, msg.Chat.Id, err)
		}
	}
	if msg.Left != nil {
		if err = r.identities.Forget(ctx, msg.Chat.Id, msg.Left.Id); err != nil {
			r.logger.Errorf("router: error removing %s from %s: %v", msg.Left.Id, msg.Chat.Id, err)
		}
	}
}

func (r *CommandRouter) reply(ctx context.Context, recipientId, text string) {
	if err := r.messenger.SendMessage(ctx, recipientId, text); err != nil {
		r.logger.Warnf("router: error replying to %s: %v", recipientId, err)
	}
}
