package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ceramicnetwork/go-pulse/models"
)

func TestExportTokenFor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil, slowReminders)

	lillyToken, err := env.directory.ExportTokenFor(ctx, "lilly")
	if err != nil {
		t.Fatalf("ExportTokenFor: %v", err)
	}
	if _, err = uuid.Parse(lillyToken); err != nil {
		t.Errorf("expected a uuid token, got %q", lillyToken)
	}
	if again, _ := env.directory.ExportTokenFor(ctx, "lilly"); again != lillyToken {
		t.Errorf("expected a stable token %s, got %s", lillyToken, again)
	}
	joeToken, _ := env.directory.ExportTokenFor(ctx, "joe")
	if joeToken == lillyToken {
		t.Errorf("expected distinct tokens per user")
	}

	tests := map[string]struct {
		token         string
		expectedUser  string
		expectedFound bool
	}{
		"lilly's token": {
			token:         lillyToken,
			expectedUser:  "lilly",
			expectedFound: true,
		},
		"joe's token": {
			token:         joeToken,
			expectedUser:  "joe",
			expectedFound: true,
		},
		"unknown token": {
			token: uuid.New().String(),
		},
		"empty token": {
			token: "",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			userId, found, err := env.directory.UserFromToken(ctx, test.token)
			if err != nil {
				t.Fatalf("UserFromToken: %v", err)
			}
			if found != test.expectedFound || userId != test.expectedUser {
				t.Errorf("expected (%q, %v), got (%q, %v)", test.expectedUser, test.expectedFound, userId, found)
			}
		})
	}
}

func TestPollsForChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil, slowReminders)
	first, _ := env.polls.Create(ctx, "lilly", "c1", []string{"bob"})
	other, _ := env.polls.Create(ctx, "lilly", "c2", []string{"bob"})
	second, _ := env.polls.Create(ctx, "joe", "c1", []string{"bob"})
	legacy := models.LegacyPollKey{Poster: "lilly", Timestamp: 1_600_000_000.5}
	if err := env.store.HSetAll(ctx, legacy.String(), map[string]string{"bob": "2"}); err != nil {
		t.Fatalf("HSetAll: %v", err)
	}
	// shares the c1 prefix without belonging to c1
	if err := env.store.HSetAll(ctx, "poll:c1:1600000001", map[string]string{"bob": "5"}); err != nil {
		t.Fatalf("HSetAll: %v", err)
	}

	tests := map[string]struct {
		channelId    string
		expectedKeys []string
	}{
		"one channel": {
			channelId:    "c1",
			expectedKeys: []string{first.Key.String(), second.Key.String()},
		},
		"other channel": {
			channelId:    "c2",
			expectedKeys: []string{other.Key.String()},
		},
		"unknown channel": {
			channelId:    "c3",
			expectedKeys: []string{},
		},
		"all channels": {
			channelId:    "",
			expectedKeys: []string{legacy.String(), "poll:c1:1600000001", first.Key.String(), other.Key.String(), second.Key.String()},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			polls, err := env.directory.PollsForChannel(ctx, test.channelId)
			if err != nil {
				t.Fatalf("PollsForChannel: %v", err)
			}
			if len(polls) != len(test.expectedKeys) {
				t.Fatalf("expected %d polls, got %d", len(test.expectedKeys), len(polls))
			}
			for i, poll := range polls {
				if poll.Key.String() != test.expectedKeys[i] {
					t.Errorf("poll %d: expected %s, got %s", i, test.expectedKeys[i], poll.Key)
				}
			}
		})
	}
}

func TestToCsv(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil, slowReminders)
	env.joinChannel(ctx, models.Channel{Id: "c1", Name: "cohort"}, models.User{Id: "bob", Name: "Bob"})

	first, _ := env.polls.Create(ctx, "lilly", "c1", []string{"bob"})
	if _, err := first.Record(ctx, "bob", "3"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, _ := env.polls.Create(ctx, "lilly", "c1", []string{"bob", "joe"})
	if _, err := second.Record(ctx, "joe", "5, send help"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	env.polls.Create(ctx, "lilly", "c2", []string{"sue"})

	tests := map[string]struct {
		channelId string
		expected  string
	}{
		"one channel": {
			channelId: "c1",
			expected: "User,2023-11-14T22:13:20Z,2023-11-14T22:13:21Z\n" +
				"Bob,3,\n" +
				"joe,,\"5, send help\"\n",
		},
		"no polls": {
			channelId: "c9",
			expected:  "User\n",
		},
		"all channels": {
			channelId: "",
			expected: "User,2023-11-14T22:13:20Z,2023-11-14T22:13:21Z,2023-11-14T22:13:22Z\n" +
				"Bob,3,,\n" +
				"joe,,\"5, send help\",\n" +
				"sue,,,\n",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			body, err := env.directory.ToCsv(ctx, test.channelId)
			if err != nil {
				t.Fatalf("ToCsv: %v", err)
			}
			if string(body) != test.expected {
				t.Errorf("expected\n%s\ngot\n%s", test.expected, body)
			}
		})
	}
}

func TestToCsvInvalidKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil, slowReminders)
	env.polls.Create(ctx, "lilly", "c1", []string{"bob"})
	if err := env.store.HSetAll(ctx, "poll:c1:lilly:soon", map[string]string{"bob": ""}); err != nil {
		t.Fatalf("HSetAll: %v", err)
	}
	if _, err := env.directory.ToCsv(ctx, "c1"); err == nil {
		t.Errorf("expected an invalid key to fail the export")
	}
}
