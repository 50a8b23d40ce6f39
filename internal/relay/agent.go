// Package relay drives two model agents through a turn-taking
// conversation. An Agent is one endpoint: it can receive text, produce a
// reply, and be re-instructed mid-run. The Engine owns the loop that
// ferries each reply to the other side.
package relay

import (
	"context"
	"errors"
)

// Agent is one conversational endpoint. Implementations wrap a tmux
// pane, an embedded pty, or the HTTP API of an Ollama host.
type Agent interface {
	// Name returns the persona name the agent plays.
	Name() string

	// AwaitReady blocks until the agent can accept input. For REPL
	// transports that means the interactive prompt is visible, which
	// can take minutes on first model load.
	AwaitReady(ctx context.Context) error

	// Instruct installs the persona's role prompt. REPL transports send
	// it as input and consume the model's acknowledgment so it is never
	// relayed; the API transport swaps the system message.
	Instruct(ctx context.Context, instructions string) error

	// Deliver hands the agent a message from the other side.
	Deliver(ctx context.Context, text string) error

	// Reply waits for the agent's next message and returns it with
	// persona prefixes and terminal artifacts stripped.
	Reply(ctx context.Context) (string, error)

	// Close releases the agent's transport. It does not tear down
	// shared resources such as the tmux session.
	Close(ctx context.Context) error
}

var (
	// ErrSessionExists reports that the target tmux session is already
	// running and --force was not given.
	ErrSessionExists = errors.New("session already exists")

	// ErrEmptyReply reports that a turn produced no usable text.
	ErrEmptyReply = errors.New("empty reply")

	// ErrDuplicateReply reports that an agent repeated its own previous
	// message verbatim.
	ErrDuplicateReply = errors.New("duplicate reply")
)
