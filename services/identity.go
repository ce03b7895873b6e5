package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ceramicnetwork/go-pulse/models"
)

// IdentityDirectory remembers the users and channels the bot has seen, and who is in each channel.
type IdentityDirectory struct {
	store models.KeyValueStore
}

func NewIdentityDirectory(store models.KeyValueStore) *IdentityDirectory {
	return &IdentityDirectory{store}
}

// Slug normalizes a channel name for lookup: lowercase, spaces as dashes, no leading '#' or '@'.
func Slug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.TrimLeft(slug, "#@")
	return strings.Join(strings.Fields(slug), "-")
}

func (d *IdentityDirectory) RememberUser(ctx context.Context, user models.User) error {
	if len(user.Name) == 0 {
		return nil
	}
	if err := d.store.HSet(ctx, models.Key_Users, user.Id, user.Name); err != nil {
		return fmt.Errorf("identity: remember user %s: %w", user.Id, err)
	}
	return nil
}

func (d *IdentityDirectory) RememberChannel(ctx context.Context, channel models.Channel) error {
	if len(channel.Name) == 0 {
		return nil
	}
	if err := d.store.HSet(ctx, models.Key_Channels, Slug(channel.Name), channel.Id); err != nil {
		return fmt.Errorf("identity: remember channel %s: %w", channel.Id, err)
	}
	if err := d.store.HSet(ctx, models.Key_ChannelNames, channel.Id, channel.Name); err != nil {
		return fmt.Errorf("identity: remember channel %s: %w", channel.Id, err)
	}
	return nil
}

// Remember records the user and adds them to the channel's roster.
func (d *IdentityDirectory) Remember(ctx context.Context, channelId string, user models.User) error {
	if err := d.RememberUser(ctx, user); err != nil {
		return err
	}
	if err := d.store.HSet(ctx, models.RosterKey(channelId), user.Id, user.Name); err != nil {
		return fmt.Errorf("identity: add %s to %s: %w", user.Id, channelId, err)
	}
	return nil
}

func (d *IdentityDirectory) Forget(ctx context.Context, channelId, userId string) error {
	if err := d.store.HDel(ctx, models.RosterKey(channelId), userId); err != nil {
		return fmt.Errorf("identity: remove %s from %s: %w", userId, channelId, err)
	}
	return nil
}

// Roster returns the channel's known members ordered by id.
func (d *IdentityDirectory) Roster(ctx context.Context, channelId string) ([]models.User, error) {
	members, err := d.store.HGetAll(ctx, models.RosterKey(channelId))
	if err != nil {
		return nil, fmt.Errorf("identity: roster %s: %w", channelId, err)
	}
	roster := make([]models.User, 0, len(members))
	for id, name := range members {
		roster = append(roster, models.User{Id: id, Name: name})
	}
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].Id < roster[j].Id
	})
	return roster, nil
}

// User resolves a user id, leaving the name empty for users never seen.
func (d *IdentityDirectory) User(ctx context.Context, id string) (models.User, error) {
	name, _, err := d.store.HGet(ctx, models.Key_Users, id)
	if err != nil {
		return models.User{}, fmt.Errorf("identity: user %s: %w", id, err)
	}
	return models.User{Id: id, Name: name}, nil
}

func (d *IdentityDirectory) Channel(ctx context.Context, id string) (models.Channel, error) {
	name, _, err := d.store.HGet(ctx, models.Key_ChannelNames, id)
	if err != nil {
		return models.Channel{}, fmt.Errorf("identity: channel %s: %w", id, err)
	}
	return models.Channel{Id: id, Name: name}, nil
}

// ChannelByName resolves a channel by its (slugged) name.
func (d *IdentityDirectory) ChannelByName(ctx context.Context, name string) (models.Channel, bool, error) {
	id, found, err := d.store.HGet(ctx, models.Key_Channels, Slug(name))
	if err != nil {
		return models.Channel{}, false, fmt.Errorf("identity: channel %s: %w", name, err)
	} else if !found {
		return models.Channel{}, false, nil
	}
	channel, err := d.Channel(ctx, id)
	if err != nil {
		return models.Channel{}, false, err
	}
	return channel, true, nil
}
