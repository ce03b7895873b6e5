package models

import "time"

// ReminderConfig sets a responder's reminder schedule: the first wait is BaseInterval and the wait after attempt n is
// BaseInterval * n².
type ReminderConfig struct {
	BaseInterval time.Duration
	MaxAttempts  int
}
