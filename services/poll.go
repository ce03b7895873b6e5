package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ceramicnetwork/go-pulse/models"
)

type PollStore struct {
	store   models.KeyValueStore
	now     func() time.Time
	openTtl time.Duration
}

func NewPollStore(store models.KeyValueStore) *PollStore {
	return &PollStore{store: store, now: time.Now, openTtl: models.OpenPollTTL}
}

// Poll is a handle on one stored poll record. All reads go to the store so that other processes' writes are seen.
type Poll struct {
	Key   models.PollKey
	store models.KeyValueStore
}

// Create writes an empty response for every roster member and points each of them at the new poll.
func (ps *PollStore) Create(ctx context.Context, posterId, channelId string, roster []string) (*Poll, error) {
	key := models.NewPollKey(channelId, posterId, ps.now())
	responses := make(map[string]string, len(roster))
	for _, responderId := range roster {
		responses[responderId] = ""
	}
	if err := ps.store.HSetAll(ctx, key.String(), responses); err != nil {
		return nil, fmt.Errorf("poll: create %s: %w", key, err)
	}
	for i, responderId := range roster {
		if err := ps.store.SetEx(ctx, models.OpenKey(responderId), key.String(), ps.openTtl); err != nil {
			ps.abandon(ctx, key, roster[:i])
			return nil, fmt.Errorf("poll: open %s for %s: %w", key, responderId, err)
		}
	}
	return &Poll{key, ps.store}, nil
}

// abandon removes a partially created poll so that no responder is left open on a poll nobody was asked about.
// Cleanup is best-effort and the original error is what gets reported.
func (ps *PollStore) abandon(ctx context.Context, key models.PollKey, opened []string) {
	for _, responderId := range opened {
		ps.store.Del(ctx, models.OpenKey(responderId))
	}
	ps.store.Del(ctx, key.String())
}

func (ps *PollStore) Load(key string) (*Poll, error) {
	pollKey, err := models.ParsePollKey(key)
	if err != nil {
		return nil, err
	}
	return &Poll{pollKey, ps.store}, nil
}

// FindOpenFor returns the poll the responder still owes an answer to, or nil.
func (ps *PollStore) FindOpenFor(ctx context.Context, responderId string) (*Poll, error) {
	key, found, err := ps.store.Get(ctx, models.OpenKey(responderId))
	if err != nil {
		return nil, fmt.Errorf("poll: open lookup for %s: %w", responderId, err)
	} else if !found {
		return nil, nil
	}
	return ps.Load(key)
}

// FindMostRecentForPoster returns the newest poll the poster started in the channel, or nil. An empty channel selects
// the poster's legacy polls.
func (ps *PollStore) FindMostRecentForPoster(ctx context.Context, channelId, posterId string) (*Poll, error) {
	keys, err := ps.keys(ctx, models.PollKeyPrefix(channelId, posterId))
	if err != nil {
		return nil, err
	}
	var latest models.PollKey
	for _, key := range keys {
		if key.ChannelId() != channelId || key.PosterId() != posterId {
			continue
		}
		if latest == nil || key.At() > latest.At() {
			latest = key
		}
	}
	if latest == nil {
		return nil, nil
	}
	return &Poll{latest, ps.store}, nil
}

// keys parses every poll key under the prefix. A malformed key fails the whole read.
func (ps *PollStore) keys(ctx context.Context, prefix string) ([]models.PollKey, error) {
	rawKeys, err := ps.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("poll: listing %s: %w", prefix, err)
	}
	keys := make([]models.PollKey, 0, len(rawKeys))
	for _, rawKey := range rawKeys {
		key, err := models.ParsePollKey(rawKey)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Record stores the responder's answer verbatim and closes their open pointer. Responders outside the roster are
// ignored and reported as not recorded.
func (p *Poll) Record(ctx context.Context, responderId, text string) (bool, error) {
	if len(text) == 0 {
		return false, models.ErrEmptyResponse
	}
	if _, onRoster, err := p.store.HGet(ctx, p.Key.String(), responderId); err != nil {
		return false, fmt.Errorf("poll: roster lookup %s: %w", p.Key, err)
	} else if !onRoster {
		return false, nil
	}
	if err := p.store.HSet(ctx, p.Key.String(), responderId, text); err != nil {
		return false, fmt.Errorf("poll: record %s for %s: %w", p.Key, responderId, err)
	}
	if err := p.store.Del(ctx, models.OpenKey(responderId)); err != nil {
		return true, fmt.Errorf("poll: close %s for %s: %w", p.Key, responderId, err)
	}
	return true, nil
}

// IsComplete reports whether everyone but the poster has answered.
func (p *Poll) IsComplete(ctx context.Context) (bool, error) {
	responses, err := p.store.HGetAll(ctx, p.Key.String())
	if err != nil {
		return false, fmt.Errorf("poll: load %s: %w", p.Key, err)
	}
	for responderId, text := range responses {
		if len(text) == 0 && responderId != p.Key.PosterId() {
			return false, nil
		}
	}
	return true, nil
}

// Responses returns the current answers ordered by responder id. Unanswered entries have empty text.
func (p *Poll) Responses(ctx context.Context) ([]models.Response, error) {
	stored, err := p.store.HGetAll(ctx, p.Key.String())
	if err != nil {
		return nil, fmt.Errorf("poll: load %s: %w", p.Key, err)
	}
	responses := make([]models.Response, 0, len(stored))
	for responderId, text := range stored {
		responses = append(responses, models.Response{Responder: responderId, Text: text})
	}
	sort.Slice(responses, func(i, j int) bool {
		return responses[i].Responder < responses[j].Responder
	})
	return responses, nil
}
