package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"duet/internal/persona"
)

// fakeCompleter replays scripted completion texts and records every
// request it saw.
type fakeCompleter struct {
	texts    []string
	idx      int
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.idx >= len(f.texts) {
		return openai.ChatCompletionResponse{}, nil
	}
	text := f.texts[f.idx]
	f.idx++
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: text}},
		},
	}, nil
}

func testAPIAgent(fake *fakeCompleter) *APIAgent {
	return &APIAgent{
		name:     "him",
		model:    "gemma3:4b",
		api:      fake,
		prefixes: []string{"👨 Him:", "👩 Her:"},
		think:    "</think>",
	}
}

func TestAPIAgentReplyBuildsHistory(t *testing.T) {
	fake := &fakeCompleter{texts: []string{"👨 Him: hey there 😄", "👨 Him: for sure"}}
	agent := testAPIAgent(fake)
	ctx := context.Background()

	if err := agent.Instruct(ctx, "be friendly"); err != nil {
		t.Fatalf("instruct: %v", err)
	}
	if err := agent.Deliver(ctx, "hi"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	text, err := agent.Reply(ctx)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if text != "hey there 😄" {
		t.Fatalf("reply = %q, want prefix stripped", text)
	}

	first := fake.requests[0]
	if first.Model != "gemma3:4b" {
		t.Fatalf("unexpected model: %q", first.Model)
	}
	wantFirst := []openai.ChatCompletionMessage{
		{Role: "system", Content: "be friendly"},
		{Role: "user", Content: "hi"},
	}
	if len(first.Messages) != len(wantFirst) {
		t.Fatalf("first request messages = %+v", first.Messages)
	}
	for i, want := range wantFirst {
		if first.Messages[i].Role != want.Role || first.Messages[i].Content != want.Content {
			t.Fatalf("first request message %d = %+v, want %+v", i, first.Messages[i], want)
		}
	}

	// The next request must carry the model's raw output, prefix and
	// all, so the model keeps seeing its own voice.
	if err := agent.Deliver(ctx, "cool"); err != nil {
		t.Fatalf("second deliver: %v", err)
	}
	if _, err := agent.Reply(ctx); err != nil {
		t.Fatalf("second reply: %v", err)
	}
	second := fake.requests[1]
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(second.Messages) != len(wantRoles) {
		t.Fatalf("second request messages = %+v", second.Messages)
	}
	for i, role := range wantRoles {
		if second.Messages[i].Role != role {
			t.Fatalf("second request message %d role = %q, want %q", i, second.Messages[i].Role, role)
		}
	}
	if second.Messages[2].Content != "👨 Him: hey there 😄" {
		t.Fatalf("assistant history = %q, want the raw output", second.Messages[2].Content)
	}
}

func TestAPIAgentInstructSwapsSystemPrompt(t *testing.T) {
	fake := &fakeCompleter{texts: []string{"👨 Him: aye", "👨 Him: arr"}}
	agent := testAPIAgent(fake)
	ctx := context.Background()

	if err := agent.Instruct(ctx, "old voice"); err != nil {
		t.Fatalf("instruct: %v", err)
	}
	if err := agent.Deliver(ctx, "hi"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := agent.Reply(ctx); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if err := agent.Instruct(ctx, "new voice"); err != nil {
		t.Fatalf("re-instruct: %v", err)
	}
	if err := agent.Deliver(ctx, "again"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := agent.Reply(ctx); err != nil {
		t.Fatalf("reply: %v", err)
	}

	second := fake.requests[1]
	if second.Messages[0].Role != "system" || second.Messages[0].Content != "new voice" {
		t.Fatalf("expected the swapped system prompt, got %+v", second.Messages[0])
	}
	if len(second.Messages) != 4 {
		t.Fatalf("history should survive a re-instruct, got %+v", second.Messages)
	}
}

func TestAPIAgentStripsThinkBlocks(t *testing.T) {
	fake := &fakeCompleter{texts: []string{"<think>👨 Him: decoy plan</think>\n👨 Him: the real text"}}
	agent := testAPIAgent(fake)
	ctx := context.Background()

	if err := agent.Deliver(ctx, "hi"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	text, err := agent.Reply(ctx)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if text != "the real text" {
		t.Fatalf("reply = %q, want the post-think text", text)
	}
}

func TestAPIAgentKeepsTypedEllipses(t *testing.T) {
	fake := &fakeCompleter{texts: []string{"👨 Him: well... maybe 😅"}}
	agent := testAPIAgent(fake)

	if err := agent.Deliver(context.Background(), "you sure"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	text, err := agent.Reply(context.Background())
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if text != "well... maybe 😅" {
		t.Fatalf("reply = %q, ellipses the model typed must survive", text)
	}
}

func TestAPIAgentRejectsEmptyChoices(t *testing.T) {
	fake := &fakeCompleter{}
	agent := testAPIAgent(fake)

	_, err := agent.Reply(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected a no-choices error, got %v", err)
	}
}

func TestAPIAgentPropagatesAPIError(t *testing.T) {
	boom := errors.New("endpoint down")
	fake := &fakeCompleter{err: boom}
	agent := testAPIAgent(fake)

	if _, err := agent.Reply(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the api error, got %v", err)
	}
}

func TestAPIAgentBoundsHistory(t *testing.T) {
	fake := &fakeCompleter{}
	for i := 0; i < 40; i++ {
		fake.texts = append(fake.texts, "👨 Him: turn")
	}
	agent := testAPIAgent(fake)
	ctx := context.Background()
	if err := agent.Instruct(ctx, "stay brief"); err != nil {
		t.Fatalf("instruct: %v", err)
	}

	for i := 0; i < 40; i++ {
		if err := agent.Deliver(ctx, "go"); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
		if _, err := agent.Reply(ctx); err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
	}

	if len(agent.history) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(agent.history), historyLimit)
	}
	last := fake.requests[len(fake.requests)-1]
	if len(last.Messages) != historyLimit+1 {
		t.Fatalf("request carried %d messages, want system plus %d", len(last.Messages), historyLimit)
	}
}

func requireLocalListener(t *testing.T) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("local listeners unavailable: %v", err)
	}
	listener.Close()
}

func TestNewAPIAgentTalksToOllamaEndpoint(t *testing.T) {
	requireLocalListener(t)

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"👨 Him: live wire"}}]}`))
	}))
	defer server.Close()

	agent := NewAPIAgent(APIAgentOptions{
		Persona:    persona.Persona{Name: "him", Model: "gemma3:4b", Prefix: "👨 Him:"},
		Host:       server.URL + "/",
		Prefixes:   []string{"👨 Him:"},
		HTTPClient: server.Client(),
	})

	if err := agent.Deliver(context.Background(), "hello"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	text, err := agent.Reply(context.Background())
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if text != "live wire" {
		t.Fatalf("reply = %q, want %q", text, "live wire")
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("request path = %q, want /v1/chat/completions", gotPath)
	}
}
