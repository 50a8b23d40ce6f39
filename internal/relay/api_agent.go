package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"duet/internal/logging"
	"duet/internal/persona"
)

// Oldest turns fall off past this many messages so an open-ended run
// cannot grow the completion request without bound.
const historyLimit = 64

// chatCompleter is the slice of the OpenAI client the agent needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// APIAgentOptions configures one persona on the HTTP transport.
type APIAgentOptions struct {
	Persona     persona.Persona
	Host        string
	Prefixes    []string
	ThinkMarker string
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// APIAgent plays a persona through Ollama's OpenAI-compatible endpoint
// instead of a REPL screen. Replies come from chat completions over an
// accumulated message history, so there is no prompt to watch and no
// terminal output to scrape.
type APIAgent struct {
	name     string
	model    string
	api      chatCompleter
	prefixes []string
	think    string
	log      *logging.Logger

	mu      sync.Mutex
	system  string
	history []openai.ChatCompletionMessage
}

// NewAPIAgent builds an agent against host's /v1 endpoint. Ollama
// ignores the bearer token, but the SDK wants one, so a placeholder is
// used.
func NewAPIAgent(opts APIAgentOptions) *APIAgent {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimSuffix(opts.Host, "/") + "/v1"
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &APIAgent{
		name:     opts.Persona.Name,
		model:    opts.Persona.Model,
		api:      openai.NewClientWithConfig(cfg),
		prefixes: opts.Prefixes,
		think:    opts.ThinkMarker,
		log:      opts.Logger.Component("agent"),
	}
}

func (a *APIAgent) Name() string {
	return a.name
}

// AwaitReady is immediate: the endpoint was already probed during
// preflight and completions need no warm prompt.
func (a *APIAgent) AwaitReady(ctx context.Context) error {
	return ctx.Err()
}

// Instruct swaps the system message. The conversation history is kept,
// so re-instructing mid-run changes the voice without losing context.
func (a *APIAgent) Instruct(ctx context.Context, instructions string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.system = instructions
	a.mu.Unlock()
	a.log.Debug("system prompt set", map[string]string{
		"agent": a.name,
		"chars": fmt.Sprintf("%d", len(instructions)),
	})
	return nil
}

func (a *APIAgent) Deliver(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.append(openai.ChatCompletionMessage{Role: "user", Content: text})
	return nil
}

func (a *APIAgent) Reply(ctx context.Context) (string, error) {
	a.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(a.history)+1)
	if a.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: "system", Content: a.system})
	}
	messages = append(messages, a.history...)
	a.mu.Unlock()

	resp, err := a.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: chat completion returned no choices", a.name)
	}

	content := resp.Choices[0].Message.Content
	a.mu.Lock()
	a.append(openai.ChatCompletionMessage{Role: "assistant", Content: content})
	a.mu.Unlock()

	text := a.clean(content)
	a.log.Debug("completion received", map[string]string{
		"agent": a.name,
		"chars": fmt.Sprintf("%d", len(text)),
	})
	return text, nil
}

func (a *APIAgent) Close(ctx context.Context) error {
	return nil
}

func (a *APIAgent) append(msg openai.ChatCompletionMessage) {
	a.history = append(a.history, msg)
	if len(a.history) > historyLimit {
		a.history = a.history[len(a.history)-historyLimit:]
	}
}

// clean strips a think block and the persona prefix from raw model
// output. Unlike screen extraction there are no line-wrap artifacts, so
// ellipses the model actually typed are left alone.
func (a *APIAgent) clean(content string) string {
	if a.think != "" {
		if idx := strings.LastIndex(content, a.think); idx >= 0 {
			content = content[idx+len(a.think):]
		}
	}
	for _, prefix := range a.prefixes {
		if idx := strings.Index(content, prefix); idx >= 0 {
			content = content[idx+len(prefix):]
			break
		}
	}
	return strings.TrimSpace(content)
}
