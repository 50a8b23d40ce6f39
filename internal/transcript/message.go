// Package transcript persists the conversation as JSON lines and reads it
// back, live if needed, for the feed viewer.
package transcript

import "time"

// FileName is the transcript file inside a run directory.
const FileName = "transcript.jsonl"

// Message is one relayed reply.
type Message struct {
	Seq          int       `json:"seq"`
	Conversation string    `json:"conversation"`
	Agent        string    `json:"agent"`
	Label        string    `json:"label"`
	Text         string    `json:"text"`
	At           time.Time `json:"at"`
}
