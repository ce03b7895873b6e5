package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ceramicnetwork/go-pulse/models"
)

const csvUserHeader = "User"

// PollDirectory lists stored polls for status and export, and issues the tokens that guard export.
type PollDirectory struct {
	store      models.KeyValueStore
	polls      *PollStore
	identities *IdentityDirectory
}

func NewPollDirectory(store models.KeyValueStore, polls *PollStore, identities *IdentityDirectory) *PollDirectory {
	return &PollDirectory{store, polls, identities}
}

// ExportTokenFor returns the user's export token, creating it on first use.
func (d *PollDirectory) ExportTokenFor(ctx context.Context, userId string) (string, error) {
	token, found, err := d.store.HGet(ctx, models.Key_ExportTokens, userId)
	if err != nil {
		return "", fmt.Errorf("directory: token lookup for %s: %w", userId, err)
	} else if found && len(token) > 0 {
		return token, nil
	}
	token = uuid.New().String()
	if err = d.store.HSet(ctx, models.Key_ExportTokens, userId, token); err != nil {
		return "", fmt.Errorf("directory: token issue for %s: %w", userId, err)
	}
	return token, nil
}

// UserFromToken returns the id of the user holding token.
func (d *PollDirectory) UserFromToken(ctx context.Context, token string) (string, bool, error) {
	if len(token) == 0 {
		return "", false, nil
	}
	tokens, err := d.store.HGetAll(ctx, models.Key_ExportTokens)
	if err != nil {
		return "", false, fmt.Errorf("directory: token scan: %w", err)
	}
	for userId, userToken := range tokens {
		if subtle.ConstantTimeCompare([]byte(userToken), []byte(token)) == 1 {
			return userId, true, nil
		}
	}
	return "", false, nil
}

// PollsForChannel returns the channel's polls oldest first. An empty channel selects every poll, legacy ones
// included.
func (d *PollDirectory) PollsForChannel(ctx context.Context, channelId string) ([]*Poll, error) {
	prefix := models.KeyPrefix_Poll + ":"
	if len(channelId) > 0 {
		prefix += channelId + ":"
	}
	keys, err := d.polls.keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	matched := make([]models.PollKey, 0, len(keys))
	for _, key := range keys {
		if len(channelId) == 0 || key.ChannelId() == channelId {
			matched = append(matched, key)
		}
	}
	models.SortPollKeys(matched)

	polls := make([]*Poll, len(matched))
	for i, key := range matched {
		polls[i] = &Poll{key, d.store}
	}
	return polls, nil
}

// ToCsv renders one column per poll and one row per responder seen in any of them.
func (d *PollDirectory) ToCsv(ctx context.Context, channelId string) ([]byte, error) {
	polls, err := d.PollsForChannel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	header := make([]string, 0, len(polls)+1)
	header = append(header, csvUserHeader)
	answers := make([]map[string]string, len(polls))
	responderIds := make([]string, 0)
	seen := make(map[string]bool)
	for i, poll := range polls {
		header = append(header, poll.Key.CreatedAt().UTC().Format(time.RFC3339))
		responses, err := poll.Responses(ctx)
		if err != nil {
			return nil, err
		}
		answers[i] = make(map[string]string, len(responses))
		for _, response := range responses {
			answers[i][response.Responder] = response.Text
			if !seen[response.Responder] {
				seen[response.Responder] = true
				responderIds = append(responderIds, response.Responder)
			}
		}
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err = w.Write(header); err != nil {
		return nil, err
	}
	for _, responderId := range responderIds {
		user, err := d.identities.User(ctx, responderId)
		if err != nil {
			return nil, err
		}
		row := make([]string, 0, len(polls)+1)
		row = append(row, user.DisplayName())
		for i := range polls {
			row = append(row, answers[i][responderId])
		}
		if err = w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
