package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ceramicnetwork/go-pulse/models"
)

type PulseConfig struct {
	HostnameUrl         string
	BotId               string
	Staff               []string
	EscalationThreshold int
}

// PollArchiveRecord is the archived form of a completed poll.
type PollArchiveRecord struct {
	Poll      string            `json:"poll"`
	Channel   string            `json:"channel,omitempty"`
	Poster    string            `json:"poster"`
	CreatedAt time.Time         `json:"createdAt"`
	Responses []models.Response `json:"responses"`
}

var _ models.PollCommands = &PulseService{}

// PulseService carries out the chat commands against the poll store.
type PulseService struct {
	polls         *PollStore
	reminders     *ReminderScheduler
	directory     *PollDirectory
	identities    *IdentityDirectory
	messenger     models.Messenger
	notif         models.Notifier
	events        *EventService
	archive       models.KeyValueRepository
	metricService models.MetricService
	logger        models.Logger
	config        PulseConfig
	staff         map[string]bool
}

func NewPulseService(
	polls *PollStore,
	reminders *ReminderScheduler,
	directory *PollDirectory,
	identities *IdentityDirectory,
	messenger models.Messenger,
	notif models.Notifier,
	events *EventService,
	archive models.KeyValueRepository,
	metricService models.MetricService,
	logger models.Logger,
	config PulseConfig,
) *PulseService {
	staff := make(map[string]bool, len(config.Staff))
	for _, id := range config.Staff {
		staff[id] = true
	}
	return &PulseService{
		polls:         polls,
		reminders:     reminders,
		directory:     directory,
		identities:    identities,
		messenger:     messenger,
		notif:         notif,
		events:        events,
		archive:       archive,
		metricService: metricService,
		logger:        logger,
		config:        config,
		staff:         staff,
	}
}

// StartPoll asks everyone in the channel, except staff and the bot, how they're doing. Reminder loops run under ctx.
func (s *PulseService) StartPoll(ctx context.Context, initiator models.User, replyTo string, channel models.Channel) error {
	members, err := s.identities.Roster(ctx, channel.Id)
	if err != nil {
		return err
	}
	responders := make([]models.User, 0, len(members))
	responderIds := make([]string, 0, len(members))
	for _, member := range members {
		if s.staff[member.Id] || member.Id == s.config.BotId {
			continue
		}
		responders = append(responders, member)
		responderIds = append(responderIds, member.Id)
	}
	if len(responders) == 0 {
		s.logger.Infof("pulse: %s asked about %s, which has nobody to poll", initiator.Id, channel.Id)
		s.reply(ctx, replyTo, fmt.Sprintf(models.MsgFmt_NobodyToAsk, channel.DisplayName()))
		return nil
	}
	s.reply(ctx, replyTo, models.Msg_PollAck)

	poll, err := s.polls.Create(ctx, initiator.Id, channel.Id, responderIds)
	if err != nil {
		return err
	}
	s.logger.Infof("pulse: %s started %s with %d responders", initiator.Id, poll.Key, len(responders))
	s.metricService.Count(ctx, models.MetricName_PollStarted, 1)
	s.metricService.Distribution(ctx, models.MetricName_RosterSize, len(responders))
	s.events.Publish(ctx, models.PollEventType_Started, poll.Key, "", 0)

	for _, responder := range responders {
		s.prompt(ctx, poll, initiator, responder)
		s.reminders.Start(ctx, poll.Key, responder.Id)
	}
	return nil
}

func (s *PulseService) prompt(ctx context.Context, poll *Poll, initiator, responder models.User) {
	err := s.messenger.SendMessage(ctx, responder.Id, models.Msg_Prompt)
	if err == nil {
		s.metricService.Count(ctx, models.MetricName_PromptSent, 1)
		return
	}
	if errors.Is(err, models.ErrUnreachable) {
		s.metricService.Count(ctx, models.MetricName_PromptUnreachable, 1)
		s.logger.Debugf("pulse: %s is unreachable: %v", responder.Id, err)
		return
	}
	s.metricService.Count(ctx, models.MetricName_PromptFailed, 1)
	s.logger.Errorf("pulse: error prompting %s for %s: %v", responder.Id, poll.Key, err)
	s.reply(ctx, initiator.Id, fmt.Sprintf(models.MsgFmt_Unreachable, mentionName(responder), err))
	if notifErr := s.notif.SendAlert(
		models.AlertTitle,
		models.AlertDesc_PromptFailed,
		fmt.Sprintf(models.AlertFmt_PromptFailed, responder.Id, poll.Key, err),
	); notifErr != nil {
		s.logger.Errorf("pulse: error sending prompt failure alert: %v", notifErr)
	}
}

// RecordAnswer stores the responder's answer to their open poll. Answers without an open poll are ignored.
func (s *PulseService) RecordAnswer(ctx context.Context, responder models.User, text string, score int) error {
	poll, err := s.polls.FindOpenFor(ctx, responder.Id)
	if err != nil {
		return err
	} else if poll == nil {
		s.metricService.Count(ctx, models.MetricName_AnswerIgnored, 1)
		s.logger.Debugf("pulse: no open poll for %s", responder.Id)
		return nil
	}
	if recorded, err := poll.Record(ctx, responder.Id, text); err != nil {
		return err
	} else if !recorded {
		s.metricService.Count(ctx, models.MetricName_AnswerIgnored, 1)
		return nil
	}
	s.metricService.Count(ctx, models.MetricName_AnswerRecorded, 1)
	s.events.Publish(ctx, models.PollEventType_Answered, poll.Key, responder.Id, score)
	s.reply(ctx, responder.Id, models.Msg_AnswerAck)

	if complete, err := poll.IsComplete(ctx); err != nil {
		return err
	} else if complete {
		if err = s.completed(ctx, poll); err != nil {
			return err
		}
	}
	if score > s.config.EscalationThreshold {
		s.metricService.Count(ctx, models.MetricName_PollEscalated, 1)
		s.events.Publish(ctx, models.PollEventType_Escalated, poll.Key, responder.Id, score)
		s.reply(ctx, poll.Key.PosterId(), fmt.Sprintf(models.MsgFmt_Escalation, responder.DisplayName(), score))
	}
	return nil
}

func (s *PulseService) completed(ctx context.Context, poll *Poll) error {
	s.logger.Infof("pulse: %s is complete", poll.Key)
	s.metricService.Count(ctx, models.MetricName_PollCompleted, 1)
	s.events.Publish(ctx, models.PollEventType_Completed, poll.Key, "", 0)

	responses, err := poll.Responses(ctx)
	if err != nil {
		return err
	}
	results, err := s.results(ctx, fmt.Sprintf(models.MsgFmt_ResultsIn, s.channelLabel(ctx, poll.Key)), responses)
	if err != nil {
		return err
	}
	s.reply(ctx, poll.Key.PosterId(), results)

	if s.archive != nil {
		record := PollArchiveRecord{
			Poll:      poll.Key.String(),
			Channel:   poll.Key.ChannelId(),
			Poster:    poll.Key.PosterId(),
			CreatedAt: poll.Key.CreatedAt(),
			Responses: responses,
		}
		if err = s.archive.Store(ctx, poll.Key.String(), record); err != nil {
			s.logger.Errorf("pulse: error archiving %s: %v", poll.Key, err)
		}
	}
	return nil
}

// Status shows the initiator the answers so far to their latest poll in the channel.
func (s *PulseService) Status(ctx context.Context, initiator models.User, replyTo string, channel models.Channel) error {
	poll, err := s.polls.FindMostRecentForPoster(ctx, channel.Id, initiator.Id)
	if err != nil {
		return err
	} else if poll == nil {
		s.reply(ctx, replyTo, fmt.Sprintf(models.MsgFmt_NoPoll, channel.DisplayName()))
		return nil
	}
	responses, err := poll.Responses(ctx)
	if err != nil {
		return err
	}
	results, err := s.results(ctx, fmt.Sprintf(models.MsgFmt_CurrentResults, channel.DisplayName()), responses)
	if err != nil {
		return err
	}
	s.reply(ctx, replyTo, results)
	return nil
}

// Export sends the initiator a private link to the CSV export, optionally scoped to one channel.
func (s *PulseService) Export(ctx context.Context, initiator models.User, channelName string) error {
	token, err := s.directory.ExportTokenFor(ctx, initiator.Id)
	if err != nil {
		return err
	}
	var pathComponent string
	if len(channelName) > 0 {
		pathComponent = "/" + url.PathEscape(channelName)
	}
	hostname := strings.TrimSuffix(s.config.HostnameUrl, "/")
	s.reply(ctx, initiator.Id, fmt.Sprintf(models.MsgFmt_ExportUrl, hostname, token, pathComponent))
	return nil
}

// ExportCsv serves an export request, reporting false when the token belongs to nobody. A channel name that
// doesn't resolve is used as the channel id.
func (s *PulseService) ExportCsv(ctx context.Context, token, channelName string) ([]byte, bool, error) {
	userId, found, err := s.directory.UserFromToken(ctx, token)
	if err != nil {
		return nil, false, err
	} else if !found {
		s.metricService.Count(ctx, models.MetricName_ExportForbidden, 1)
		return nil, false, nil
	}
	channelId := channelName
	if len(channelName) > 0 {
		if channel, known, err := s.identities.ChannelByName(ctx, channelName); err != nil {
			return nil, false, err
		} else if known {
			channelId = channel.Id
		}
	}
	body, err := s.directory.ToCsv(ctx, channelId)
	if err != nil {
		return nil, false, err
	}
	s.metricService.Count(ctx, models.MetricName_ExportServed, 1)
	s.logger.Infof("pulse: served export of %q to %s", channelName, userId)
	return body, true, nil
}

func (s *PulseService) results(ctx context.Context, title string, responses []models.Response) (string, error) {
	lines := make([]string, 0, len(responses)+1)
	lines = append(lines, title)
	for _, response := range responses {
		user, err := s.identities.User(ctx, response.Responder)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf(models.MsgFmt_ResponseLine, user.DisplayName(), response.Text))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *PulseService) channelLabel(ctx context.Context, key models.PollKey) string {
	if len(key.ChannelId()) == 0 {
		return "your poll"
	}
	channel, err := s.identities.Channel(ctx, key.ChannelId())
	if err != nil {
		s.logger.Warnf("pulse: error resolving channel %s: %v", key.ChannelId(), err)
		return key.ChannelId()
	}
	return channel.DisplayName()
}

// reply delivers a message whose loss shouldn't fail the command.
func (s *PulseService) reply(ctx context.Context, recipientId, text string) {
	if err := s.messenger.SendMessage(ctx, recipientId, text); err != nil {
		s.logger.Warnf("pulse: error messaging %s: %v", recipientId, err)
	}
}

func mentionName(user models.User) string {
	if len(user.Handle) > 0 {
		return "@" + user.Handle
	}
	return user.DisplayName()
}
