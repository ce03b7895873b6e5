package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/ceramicnetwork/go-pulse/common/db"
	"github.com/ceramicnetwork/go-pulse/models"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"cohort":        "cohort",
		"#Cohort":       "cohort",
		"@lilly":        "lilly",
		"Week 1  Prep ": "week-1-prep",
		"week.one":      "week.one",
	}
	for name, expected := range tests {
		t.Run(name, func(t *testing.T) {
			if slug := Slug(name); slug != expected {
				t.Errorf("expected %q, got %q", expected, slug)
			}
		})
	}
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	identities := NewIdentityDirectory(db.NewMemoryStore())
	for _, user := range []models.User{joe, bob, lilly} {
		if err := identities.Remember(ctx, "c1", user); err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}
	if err := identities.Remember(ctx, "c2", bob); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := identities.Forget(ctx, "c1", bob.Id); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if err := identities.Forget(ctx, "c1", "nobody"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	tests := map[string]struct {
		channelId string
		expected  []models.User
	}{
		"after a departure": {
			channelId: "c1",
			expected:  []models.User{{Id: joe.Id, Name: joe.Name}, {Id: lilly.Id, Name: lilly.Name}},
		},
		"other channel": {
			channelId: "c2",
			expected:  []models.User{{Id: bob.Id, Name: bob.Name}},
		},
		"unknown channel": {
			channelId: "c3",
			expected:  []models.User{},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			roster, err := identities.Roster(ctx, test.channelId)
			if err != nil {
				t.Fatalf("Roster: %v", err)
			}
			if !reflect.DeepEqual(roster, test.expected) {
				t.Errorf("expected %v, got %v", test.expected, roster)
			}
		})
	}
	if user, _ := identities.User(ctx, bob.Id); user.Name != bob.Name {
		t.Errorf("expected bob to stay known after leaving, got %v", user)
	}
}

func TestChannelByName(t *testing.T) {
	ctx := context.Background()
	identities := NewIdentityDirectory(db.NewMemoryStore())
	if err := identities.RememberChannel(ctx, models.Channel{Id: "c1", Name: "Week 1"}); err != nil {
		t.Fatalf("RememberChannel: %v", err)
	}
	if err := identities.RememberChannel(ctx, models.Channel{Id: "c2"}); err != nil {
		t.Fatalf("RememberChannel: %v", err)
	}

	tests := map[string]struct {
		expectedId    string
		expectedFound bool
	}{
		"week-1":  {"c1", true},
		"#WEEK-1": {"c1", true},
		"week 1":  {"c1", true},
		"week-2":  {"", false},
		"c2":      {"", false},
		"":        {"", false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			channel, found, err := identities.ChannelByName(ctx, name)
			if err != nil {
				t.Fatalf("ChannelByName: %v", err)
			}
			if found != test.expectedFound || channel.Id != test.expectedId {
				t.Errorf("expected (%q, %v), got (%q, %v)", test.expectedId, test.expectedFound, channel.Id, found)
			}
		})
	}
	if channel, _ := identities.Channel(ctx, "c1"); channel.DisplayName() != "Week 1" {
		t.Errorf("expected the display name to be kept, got %q", channel.DisplayName())
	}
	if channel, _ := identities.Channel(ctx, "c2"); channel.DisplayName() != "c2" {
		t.Errorf("expected an unnamed channel to fall back to its id, got %q", channel.DisplayName())
	}
}
