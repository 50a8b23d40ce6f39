package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"duet/internal/event"
	"duet/internal/persona"
	"duet/internal/transcript"
)

func TestRunRunVersionFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := runRun([]string{"--version"}, strings.NewReader(""), &out, &errOut); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "duet ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRunRunUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := runRun([]string{"--transport", "bogus"}, strings.NewReader(""), &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunRunRejectsBadConfig(t *testing.T) {
	path := writeTempFile(t, "duet.yaml", "personas:\n  - name: only-one\n    prefix: 'X:'\n")

	var out, errOut bytes.Buffer
	code := runRun([]string{"--config", path}, strings.NewReader(""), &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "two personas") {
		t.Fatalf("error should name the persona count: %s", errOut.String())
	}
}

func TestFlagOverlayOnlySetFields(t *testing.T) {
	base := persona.Default()
	merged := base.Merge(flagOverlay(runOptions{Model: "llama3", MaxTurns: 7}))

	if merged.Model != "llama3" {
		t.Fatalf("model overlay lost: %q", merged.Model)
	}
	if merged.Turns.Max != 7 {
		t.Fatalf("max turns overlay lost: %d", merged.Turns.Max)
	}
	if merged.Session != persona.DefaultSession {
		t.Fatalf("unset flag clobbered session: %q", merged.Session)
	}
	if merged.Turns.Timeout != base.Turns.Timeout {
		t.Fatalf("unset flag clobbered timeout: %v", merged.Turns.Timeout)
	}
}

func TestTranscriptSinkRecordsMessages(t *testing.T) {
	dir := t.TempDir()
	writer, err := transcript.NewWriter(dir+"/transcript.jsonl", transcript.WriterOptions{
		FlushInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("writer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := event.NewBus[event.Event](ctx, event.BusOptions{Name: "test"})
	sink := newTranscriptSink(bus, writer)

	bus.Publish(event.NewMessagePosted("conv", 1, "him", "👨 Him", "hey there", time.Second))
	bus.Publish(event.NewTurnSkipped("conv", "her", event.SkipEmptyReply))
	bus.Publish(event.NewMessagePosted("conv", 2, "her", "👩 Her", "hi 😊", time.Second))
	bus.Close()
	sink.Wait()
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	tail, err := transcript.OpenTail(writer.Path())
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer tail.Close()
	messages, err := tail.Next()
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Agent != "him" || messages[1].Text != "hi 😊" {
		t.Fatalf("unexpected transcript content: %+v", messages)
	}
}

func TestFeedCommandLine(t *testing.T) {
	got := feedCommandLine("her", "/tmp/run dir/transcript.jsonl")
	want := "duet-feed --follow --focus her '/tmp/run dir/transcript.jsonl'"
	if got != want {
		t.Fatalf("feedCommandLine = %q, want %q", got, want)
	}

	plain := feedCommandLine("him", "/tmp/run/transcript.jsonl")
	if strings.Contains(plain, "'") {
		t.Fatalf("plain path should not be quoted: %q", plain)
	}
}

func TestQuoteShellArg(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/plain/path.jsonl", "/plain/path.jsonl"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tc := range cases {
		if got := quoteShellArg(tc.in); got != tc.want {
			t.Errorf("quoteShellArg(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
