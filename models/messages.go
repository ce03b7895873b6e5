package models

const (
	Msg_PollAck      = "I don't know. I'll ask them."
	Msg_Prompt       = "Hey, how are you doing (on a scale of 1 (boredom) to 6 (panic))?"
	Msg_Reminder     = "Hey, I haven't heard from you. How are you doing (on a scale of 1 (boredom) to 6 (panic))?"
	Msg_AnswerAck    = "Roger, thanks for the feedback"
	Msg_WhichChannel = "Which channel? Ask me \"how's everyone in #channel?\""
)

const (
	MsgFmt_Unreachable    string = "Shoot, I couldn't reach %s because we hit this bug `%s`"
	MsgFmt_Escalation     string = "FYI: %s is at a %d"
	MsgFmt_ResultsIn      string = "The results are in for %s"
	MsgFmt_CurrentResults string = "The current results for %s"
	MsgFmt_ResponseLine   string = "%s: %s"
	MsgFmt_NoPoll         string = "You haven't asked anyone in %s how they're doing yet."
	MsgFmt_UnknownChannel string = "I don't know a channel called #%s."
	MsgFmt_ExportUrl      string = "%s/panic/%s%s"
	MsgFmt_CommandFailed  string = "Sorry, that didn't work: %s"
	MsgFmt_NobodyToAsk    string = "There's nobody to ask in %s yet."
)

type User struct {
	Id     string
	Name   string
	Handle string
	IsBot  bool
}

// DisplayName falls back to the id for users we have never seen a name for.
func (u User) DisplayName() string {
	if len(u.Name) > 0 {
		return u.Name
	}
	return u.Id
}

type Channel struct {
	Id   string
	Name string
}

func (c Channel) DisplayName() string {
	if len(c.Name) > 0 {
		return c.Name
	}
	return c.Id
}

// Message is one inbound chat event as seen by the command router.
type Message struct {
	Chat      Channel
	User      User
	Text      string
	Private   bool
	Addressed bool
	Joined    []User
	Left      *User
}
