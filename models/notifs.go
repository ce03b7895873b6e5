package models

const AlertTitle = "Pulse Alert"

const (
	AlertDesc_PromptFailed   = "Prompt Failed"
	AlertDesc_ReminderGaveUp = "Reminder Gave Up"
)

const (
	AlertFmt_PromptFailed   string = "could not prompt %s for poll %s:\n%s"
	AlertFmt_ReminderGaveUp string = "no answer from %s after %d reminders for poll %s"
)
