package models

import "time"

const DefaultHttpWaitTime = 30 * time.Second

// OpenPollTTL bounds how long a responder stays "open" on a poll.
const OpenPollTTL = 12 * time.Hour

const DefaultReminderBaseInterval = 30 * time.Minute
const DefaultReminderMaxAttempts = 3
const DefaultEscalationThreshold = 4

const (
	KeyPrefix_Poll   = "poll"
	KeyPrefix_Open   = "open"
	KeyPrefix_Roster = "roster"
)

const (
	Key_ExportTokens = "export_tokens"
	Key_Users        = "users"
	Key_Channels     = "channels"
	Key_ChannelNames = "channel_names"
)

func OpenKey(responderId string) string {
	return KeyPrefix_Open + ":" + responderId
}

func RosterKey(channelId string) string {
	return KeyPrefix_Roster + ":" + channelId
}
