package models

type MetricName string

// Counts
const (
	MetricName_AnswerIgnored      MetricName = "answer_ignored"
	MetricName_AnswerRecorded     MetricName = "answer_recorded"
	MetricName_EventPublishFailed MetricName = "event_publish_failed"
	MetricName_ExportForbidden    MetricName = "export_forbidden"
	MetricName_ExportServed       MetricName = "export_served"
	MetricName_PollCompleted      MetricName = "poll_completed"
	MetricName_PollEscalated      MetricName = "poll_escalated"
	MetricName_PollStarted        MetricName = "poll_started"
	MetricName_PromptFailed       MetricName = "prompt_failed"
	MetricName_PromptSent         MetricName = "prompt_sent"
	MetricName_PromptUnreachable  MetricName = "prompt_unreachable"
	MetricName_ReminderGaveUp     MetricName = "reminder_gave_up"
	MetricName_ReminderSent       MetricName = "reminder_sent"
	MetricName_ReminderTickFailed MetricName = "reminder_tick_failed"
)

// Distributions
const (
	MetricName_RosterSize MetricName = "roster_size"
)

const MetricsCallerName = "go-pulse"
