package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PollKey identifies a poll record in the store. It is either a ChannelPollKey
// (poll:{channel}:{poster}:{at}) or a LegacyPollKey (poll:{poster}:{at}).
type PollKey interface {
	String() string
	PosterId() string
	ChannelId() string
	At() float64
	CreatedAt() time.Time
	pollKey()
}

type ChannelPollKey struct {
	Channel   string
	Poster    string
	Timestamp float64
}

type LegacyPollKey struct {
	Poster    string
	Timestamp float64
}

var _ PollKey = ChannelPollKey{}
var _ PollKey = LegacyPollKey{}

// NewPollKey builds the key for a poll created at createdAt. Polls without a channel use the legacy layout.
func NewPollKey(channelId, posterId string, createdAt time.Time) PollKey {
	at := float64(createdAt.UnixMicro()) / 1e6
	if len(channelId) == 0 {
		return LegacyPollKey{posterId, at}
	}
	return ChannelPollKey{channelId, posterId, at}
}

func (k ChannelPollKey) String() string {
	return strings.Join([]string{KeyPrefix_Poll, k.Channel, k.Poster, formatAt(k.Timestamp)}, ":")
}

func (k ChannelPollKey) PosterId() string     { return k.Poster }
func (k ChannelPollKey) ChannelId() string    { return k.Channel }
func (k ChannelPollKey) At() float64          { return k.Timestamp }
func (k ChannelPollKey) CreatedAt() time.Time { return atToTime(k.Timestamp) }
func (ChannelPollKey) pollKey()               {}

func (k LegacyPollKey) String() string {
	return strings.Join([]string{KeyPrefix_Poll, k.Poster, formatAt(k.Timestamp)}, ":")
}

func (k LegacyPollKey) PosterId() string     { return k.Poster }
func (k LegacyPollKey) ChannelId() string    { return "" }
func (k LegacyPollKey) At() float64          { return k.Timestamp }
func (k LegacyPollKey) CreatedAt() time.Time { return atToTime(k.Timestamp) }
func (LegacyPollKey) pollKey()               {}

// PollKeyPrefix is the key prefix shared by every poll the poster started in the channel.
func PollKeyPrefix(channelId, posterId string) string {
	if len(channelId) == 0 {
		return strings.Join([]string{KeyPrefix_Poll, posterId, ""}, ":")
	}
	return strings.Join([]string{KeyPrefix_Poll, channelId, posterId, ""}, ":")
}

// ParsePollKey parses either key layout. Anything else is reported as ErrInvalidPollKey.
func ParsePollKey(key string) (PollKey, error) {
	parts := strings.Split(key, ":")
	if parts[0] != KeyPrefix_Poll {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPollKey, key)
	}
	var channel, poster, at string
	switch len(parts) {
	case 4:
		channel, poster, at = parts[1], parts[2], parts[3]
	case 3:
		poster, at = parts[1], parts[2]
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPollKey, key)
	}
	if len(poster) == 0 {
		return nil, fmt.Errorf("%w: missing poster: %s", ErrInvalidPollKey, key)
	}
	ts, err := strconv.ParseFloat(at, 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return nil, fmt.Errorf("%w: bad timestamp: %s", ErrInvalidPollKey, key)
	}
	if len(parts) == 4 {
		return ChannelPollKey{channel, poster, ts}, nil
	}
	return LegacyPollKey{poster, ts}, nil
}

// SortPollKeys orders keys by creation time, oldest first, using the key text as a tie-break.
func SortPollKeys(keys []PollKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].At() != keys[j].At() {
			return keys[i].At() < keys[j].At()
		}
		return keys[i].String() < keys[j].String()
	})
}

func formatAt(at float64) string {
	return strconv.FormatFloat(at, 'f', -1, 64)
}

func atToTime(at float64) time.Time {
	sec := math.Floor(at)
	usec := math.Round((at - sec) * 1e6)
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond)).UTC()
}

type Response struct {
	Responder string `json:"responder"`
	Text      string `json:"text"`
}
