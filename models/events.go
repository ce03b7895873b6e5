package models

import "time"

type PollEventType string

const (
	PollEventType_Started        PollEventType = "poll_started"
	PollEventType_Answered       PollEventType = "poll_answered"
	PollEventType_Completed      PollEventType = "poll_completed"
	PollEventType_Escalated      PollEventType = "poll_escalated"
	PollEventType_ReminderGaveUp PollEventType = "reminder_gave_up"
)

type PollEvent struct {
	Type      PollEventType `json:"type" validate:"required"`
	Poll      string        `json:"poll" validate:"required"`
	Channel   string        `json:"channel,omitempty"`
	Poster    string        `json:"poster" validate:"required"`
	Responder string        `json:"responder,omitempty"`
	Score     int           `json:"score,omitempty" validate:"min=0,max=9"`
	Timestamp time.Time     `json:"ts" validate:"required"`
}
