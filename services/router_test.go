package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ceramicnetwork/go-pulse/common/db"
	"github.com/ceramicnetwork/go-pulse/common/loggers"
	"github.com/ceramicnetwork/go-pulse/models"
)

type command struct {
	Route   RouteName
	User    string
	ReplyTo string
	Channel string
	Text    string
	Score   int
}

type MockCommands struct {
	calls []command
	err   error
}

func (m *MockCommands) StartPoll(_ context.Context, initiator models.User, replyTo string, channel models.Channel) error {
	m.calls = append(m.calls, command{Route: Route_Poll, User: initiator.Id, ReplyTo: replyTo, Channel: channel.Id})
	return m.err
}

func (m *MockCommands) RecordAnswer(_ context.Context, responder models.User, text string, score int) error {
	m.calls = append(m.calls, command{Route: Route_Answer, User: responder.Id, Text: text, Score: score})
	return m.err
}

func (m *MockCommands) Status(_ context.Context, initiator models.User, replyTo string, channel models.Channel) error {
	m.calls = append(m.calls, command{Route: Route_Status, User: initiator.Id, ReplyTo: replyTo, Channel: channel.Id})
	return m.err
}

func (m *MockCommands) Export(_ context.Context, initiator models.User, channelName string) error {
	m.calls = append(m.calls, command{Route: Route_Export, User: initiator.Id, Channel: channelName})
	return m.err
}

type MockAuthorizer struct {
	instructors []string
	staff       []string
}

func (a MockAuthorizer) IsInstructor(userId string) bool {
	return contains(a.instructors, userId)
}

func (a MockAuthorizer) IsStaff(userId string) bool {
	return contains(a.staff, userId)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type routerEnv struct {
	router     *CommandRouter
	commands   *MockCommands
	identities *IdentityDirectory
	messenger  *MockMessenger
}

func newRouterEnv(commandErr error) *routerEnv {
	store := db.NewMemoryStore()
	env := routerEnv{
		commands:   &MockCommands{err: commandErr},
		identities: NewIdentityDirectory(store),
		messenger:  &MockMessenger{},
	}
	env.router = NewCommandRouter(
		env.commands,
		env.identities,
		env.messenger,
		MockAuthorizer{instructors: []string{lilly.Id}, staff: []string{staff.Id}},
		loggers.NewTestLogger(),
	)
	return &env
}

func TestMatch(t *testing.T) {
	tests := map[string]struct {
		expectedRoute RouteName
		expectedMatch bool
	}{
		"how is everyone doing?":               {Route_Poll, true},
		"how's everybody in #channel?":         {Route_Poll, true},
		"how’s everybody in #channel?":         {Route_Poll, true},
		"panic status of #channel?":            {Route_Status, true},
		"panic status of channel?":             {Route_Status, true},
		"panic of #channel?":                   {Route_Status, true},
		"panic export":                         {Route_Export, true},
		"panic export #week.one":               {Route_Export, true},
		"1":                                    {Route_Answer, true},
		"Today was awful. Definitely a 6.":     {Route_Answer, true},
		"panic status #channel?":               {"", false},
		"This is a response with no numbers":   {"", false},
		"Here's a PR for marvin issue 4 and 5": {"", false},
	}
	for text, test := range tests {
		t.Run(text, func(t *testing.T) {
			route, _, matched := Match(text)
			if matched != test.expectedMatch || route != test.expectedRoute {
				t.Errorf("expected (%q, %v), got (%q, %v)", test.expectedRoute, test.expectedMatch, route, matched)
			}
		})
	}
}

func TestMatchCaptures(t *testing.T) {
	tests := map[string]struct {
		capture  int
		expected string
	}{
		"how's everyone in #week-1?": {2, "week-1"},
		"how is everyone doing?":     {2, ""},
		"panic status of #week.one":  {1, "week.one"},
		"panic export #cohort":       {2, "cohort"},
		"panic export":               {2, ""},
		"a 5, I guess":               {1, "5"},
	}
	for text, test := range tests {
		t.Run(text, func(t *testing.T) {
			_, matches, matched := Match(text)
			if !matched {
				t.Fatalf("expected %q to match", text)
			}
			if matches[test.capture] != test.expected {
				t.Errorf("expected capture %q, got %q", test.expected, matches[test.capture])
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	group := models.Channel{Id: "g1", Name: "Cohort"}
	dm := func(user models.User) models.Channel { return models.Channel{Id: user.Id} }

	tests := map[string]struct {
		msg             models.Message
		expectedCalls   []command
		expectedReplies []string
		expectedReplyTo string
	}{
		"poll in the current group": {
			msg:           models.Message{Chat: group, User: lilly, Text: "how is everyone doing?", Addressed: true},
			expectedCalls: []command{{Route: Route_Poll, User: lilly.Id, ReplyTo: group.Id, Channel: group.Id}},
		},
		"poll of a named channel from a dm": {
			msg:           models.Message{Chat: dm(lilly), User: lilly, Text: "how's everyone in #cohort?", Private: true},
			expectedCalls: []command{{Route: Route_Poll, User: lilly.Id, ReplyTo: lilly.Id, Channel: group.Id}},
		},
		"poll from a dm without a channel": {
			msg:             models.Message{Chat: dm(lilly), User: lilly, Text: "how is everyone doing?", Private: true},
			expectedReplyTo: lilly.Id,
			expectedReplies: []string{models.Msg_WhichChannel},
		},
		"poll of an unknown channel": {
			msg:             models.Message{Chat: dm(lilly), User: lilly, Text: "how's everyone in #nowhere?", Private: true},
			expectedReplyTo: lilly.Id,
			expectedReplies: []string{"I don't know a channel called #nowhere."},
		},
		"poll by a student": {
			msg: models.Message{Chat: group, User: bob, Text: "how is everyone doing?", Addressed: true},
		},
		"poll by staff": {
			msg: models.Message{Chat: group, User: staff, Text: "how is everyone doing?", Addressed: true},
		},
		"status": {
			msg:           models.Message{Chat: dm(lilly), User: lilly, Text: "panic status of #cohort", Private: true},
			expectedCalls: []command{{Route: Route_Status, User: lilly.Id, ReplyTo: lilly.Id, Channel: group.Id}},
		},
		"export by staff": {
			msg:           models.Message{Chat: dm(staff), User: staff, Text: "panic export #cohort", Private: true},
			expectedCalls: []command{{Route: Route_Export, User: staff.Id, Channel: "cohort"}},
		},
		"export by a student": {
			msg: models.Message{Chat: dm(bob), User: bob, Text: "panic export", Private: true},
		},
		"answer": {
			msg:           models.Message{Chat: dm(bob), User: bob, Text: "I'm okay. About a 4.", Private: true},
			expectedCalls: []command{{Route: Route_Answer, User: bob.Id, Text: "I'm okay. About a 4.", Score: 4}},
		},
		"unaddressed group chatter": {
			msg: models.Message{Chat: group, User: bob, Text: "Here's a PR for marvin issue 4"},
		},
		"bots": {
			msg: models.Message{Chat: dm(bot), User: bot, Text: "3", Private: true},
		},
		"no command": {
			msg: models.Message{Chat: dm(bob), User: bob, Text: "hello there", Private: true},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newRouterEnv(nil)
			ctx := context.Background()
			if err := env.identities.RememberChannel(ctx, group); err != nil {
				t.Fatalf("RememberChannel: %v", err)
			}

			env.router.HandleMessage(ctx, test.msg)

			if !reflect.DeepEqual(env.commands.calls, test.expectedCalls) {
				t.Errorf("expected calls %+v, got %+v", test.expectedCalls, env.commands.calls)
			}
			if len(test.expectedReplies) > 0 {
				if replies := env.messenger.messagesTo(test.expectedReplyTo); !reflect.DeepEqual(replies, test.expectedReplies) {
					t.Errorf("expected replies %q, got %q", test.expectedReplies, replies)
				}
			}
		})
	}
}

func TestHandleMessageCommandFailure(t *testing.T) {
	env := newRouterEnv(errors.New("store unavailable"))
	ctx := context.Background()

	env.router.HandleMessage(ctx, models.Message{Chat: models.Channel{Id: bob.Id}, User: bob, Text: "2", Private: true})

	expected := []string{fmt.Sprintf(models.MsgFmt_CommandFailed, "store unavailable")}
	if replies := env.messenger.messagesTo(bob.Id); !reflect.DeepEqual(replies, expected) {
		t.Errorf("expected %q, got %q", expected, replies)
	}
}

func TestObserve(t *testing.T) {
	env := newRouterEnv(nil)
	ctx := context.Background()
	group := models.Channel{Id: "g1", Name: "Week 1"}

	env.router.HandleMessage(ctx, models.Message{Chat: group, User: bob, Text: "morning"})
	env.router.HandleMessage(ctx, models.Message{Chat: group, User: lilly, Joined: []models.User{joe, bot}})
	env.router.HandleMessage(ctx, models.Message{Chat: group, User: lilly, Left: &bob})
	env.router.HandleMessage(ctx, models.Message{Chat: models.Channel{Id: "sue"}, User: models.User{Id: "sue", Name: "Sue"}, Text: "hi", Private: true})

	roster, err := env.identities.Roster(ctx, group.Id)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	expected := []models.User{{Id: joe.Id, Name: joe.Name}, {Id: lilly.Id, Name: lilly.Name}}
	if !reflect.DeepEqual(roster, expected) {
		t.Errorf("expected roster %v, got %v", expected, roster)
	}
	if channel, found, _ := env.identities.ChannelByName(ctx, "#week-1"); !found || channel.Id != group.Id {
		t.Errorf("expected week-1 to resolve to %s, got %v", group.Id, channel)
	}
	if user, _ := env.identities.User(ctx, "sue"); user.Name != "Sue" {
		t.Errorf("expected sue to be remembered from a dm, got %v", user)
	}
	if roster, _ := env.identities.Roster(ctx, "sue"); len(roster) != 0 {
		t.Errorf("expected a dm not to build a roster, got %v", roster)
	}
	if len(env.commands.calls) != 0 {
		t.Errorf("expected no commands, got %v", env.commands.calls)
	}
}
