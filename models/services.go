package models

import (
	"context"
)

type Messenger interface {
	// SendMessage delivers text to a user or chat. Recipients that cannot be messaged yield an error wrapping
	// ErrUnreachable.
	SendMessage(ctx context.Context, recipientId, text string) error
}

// PollCommands are the operations reachable from chat.
type PollCommands interface {
	StartPoll(ctx context.Context, initiator User, replyTo string, channel Channel) error
	RecordAnswer(ctx context.Context, responder User, text string, score int) error
	Status(ctx context.Context, initiator User, replyTo string, channel Channel) error
	Export(ctx context.Context, initiator User, channelName string) error
}

// PollExporter serves CSV exports to token holders. It reports false when the token belongs to nobody.
type PollExporter interface {
	ExportCsv(ctx context.Context, token, channelName string) ([]byte, bool, error)
}

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
}

type KeyValueRepository interface {
	Store(ctx context.Context, key string, value interface{}) error
}

type QueuePublisher interface {
	GetUrl() string
	SendMessage(ctx context.Context, event any) (string, error)
}

type Notifier interface {
	SendAlert(title, desc, content string) error
	SendWarning(title, desc, content string) error
}

type MetricService interface {
	Count(ctx context.Context, name MetricName, val int) error
	Distribution(ctx context.Context, name MetricName, val int) error
	Shutdown(ctx context.Context)
}

type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, args ...interface{})
	Warnf(template string, args ...interface{})
	Sync() error
}
