package event

import "time"

// Event is a typed conversation event with an occurrence timestamp.
type Event interface {
	Type() string
	Timestamp() time.Time
}

const (
	TypeConversationStarted = "conversation_started"
	TypeAgentReady          = "agent_ready"
	TypeInstructionsSent    = "instructions_sent"
	TypeMessagePosted       = "message_posted"
	TypeTurnSkipped         = "turn_skipped"
	TypePersonasReloaded    = "personas_reloaded"
	TypeConversationEnded   = "conversation_ended"
)

// Reasons carried by TurnSkipped.
const (
	SkipReplyFailed    = "reply_failed"
	SkipEmptyReply     = "empty_reply"
	SkipDuplicateReply = "duplicate_reply"
)

// Reasons carried by ConversationEnded.
const (
	EndInterrupted = "interrupted"
	EndMaxTurns    = "max_turns"
	EndStalled     = "stalled"
	EndFailed      = "failed"
)

// ConversationStarted opens a run.
type ConversationStarted struct {
	EventType    string    `json:"type"`
	Conversation string    `json:"conversation"`
	Scenario     string    `json:"scenario"`
	Transport    string    `json:"transport"`
	Agents       []string  `json:"agents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewConversationStarted(conversation, scenario, transport string, agents []string) ConversationStarted {
	return ConversationStarted{
		EventType:    TypeConversationStarted,
		Conversation: conversation,
		Scenario:     scenario,
		Transport:    transport,
		Agents:       agents,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e ConversationStarted) Type() string         { return e.EventType }
func (e ConversationStarted) Timestamp() time.Time { return e.OccurredAt }

// AgentReady fires once an agent's REPL shows its first prompt (or, on the
// API transport, once the endpoint answered the preflight).
type AgentReady struct {
	EventType    string    `json:"type"`
	Conversation string    `json:"conversation"`
	Agent        string    `json:"agent"`
	Model        string    `json:"model"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewAgentReady(conversation, agent, model string) AgentReady {
	return AgentReady{
		EventType:    TypeAgentReady,
		Conversation: conversation,
		Agent:        agent,
		Model:        model,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e AgentReady) Type() string         { return e.EventType }
func (e AgentReady) Timestamp() time.Time { return e.OccurredAt }

// InstructionsSent records delivery of a role prompt.
type InstructionsSent struct {
	EventType    string    `json:"type"`
	Conversation string    `json:"conversation"`
	Agent        string    `json:"agent"`
	Chars        int       `json:"chars"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewInstructionsSent(conversation, agent string, chars int) InstructionsSent {
	return InstructionsSent{
		EventType:    TypeInstructionsSent,
		Conversation: conversation,
		Agent:        agent,
		Chars:        chars,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e InstructionsSent) Type() string         { return e.EventType }
func (e InstructionsSent) Timestamp() time.Time { return e.OccurredAt }

// MessagePosted is one exchanged message.
type MessagePosted struct {
	EventType    string        `json:"type"`
	Conversation string        `json:"conversation"`
	Seq          int           `json:"seq"`
	Agent        string        `json:"agent"`
	Label        string        `json:"label"`
	Text         string        `json:"text"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

func NewMessagePosted(conversation string, seq int, agent, label, text string, elapsed time.Duration) MessagePosted {
	return MessagePosted{
		EventType:    TypeMessagePosted,
		Conversation: conversation,
		Seq:          seq,
		Agent:        agent,
		Label:        label,
		Text:         text,
		Elapsed:      elapsed,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e MessagePosted) Type() string         { return e.EventType }
func (e MessagePosted) Timestamp() time.Time { return e.OccurredAt }

// TurnSkipped records an empty or repeated reply that was not relayed.
type TurnSkipped struct {
	EventType    string    `json:"type"`
	Conversation string    `json:"conversation"`
	Agent        string    `json:"agent"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewTurnSkipped(conversation, agent, reason string) TurnSkipped {
	return TurnSkipped{
		EventType:    TypeTurnSkipped,
		Conversation: conversation,
		Agent:        agent,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e TurnSkipped) Type() string         { return e.EventType }
func (e TurnSkipped) Timestamp() time.Time { return e.OccurredAt }

// PersonasReloaded fires when the watched persona file changed on disk.
type PersonasReloaded struct {
	EventType    string    `json:"type"`
	Conversation string    `json:"conversation"`
	Path         string    `json:"path"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewPersonasReloaded(conversation, path string) PersonasReloaded {
	return PersonasReloaded{
		EventType:    TypePersonasReloaded,
		Conversation: conversation,
		Path:         path,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e PersonasReloaded) Type() string         { return e.EventType }
func (e PersonasReloaded) Timestamp() time.Time { return e.OccurredAt }

// ConversationEnded closes a run.
type ConversationEnded struct {
	EventType    string        `json:"type"`
	Conversation string        `json:"conversation"`
	Reason       string        `json:"reason"`
	Turns        int           `json:"turns"`
	Duration     time.Duration `json:"duration_ns"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

func NewConversationEnded(conversation, reason string, turns int, duration time.Duration) ConversationEnded {
	return ConversationEnded{
		EventType:    TypeConversationEnded,
		Conversation: conversation,
		Reason:       reason,
		Turns:        turns,
		Duration:     duration,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e ConversationEnded) Type() string         { return e.EventType }
func (e ConversationEnded) Timestamp() time.Time { return e.OccurredAt }
