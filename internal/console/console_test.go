package console

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"duet/internal/event"
	"duet/internal/metrics"
	"duet/internal/persona"
)

var testTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func testPersonas() []persona.Persona {
	return []persona.Persona{
		{Name: "him", Label: "👨 Him", Prefix: "👨 Him:", Color: "blue", Opener: true},
		{Name: "her", Label: "👩 Her", Prefix: "👩 Her:", Color: "green"},
	}
}

func testRenderer(opts Options) (*Renderer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewRenderer(buf, testPersonas(), opts), buf
}

func posted(agent, label, text string) event.MessagePosted {
	return event.MessagePosted{
		EventType:    event.TypeMessagePosted,
		Conversation: "conv-1",
		Seq:          1,
		Agent:        agent,
		Label:        label,
		Text:         text,
		OccurredAt:   testTime,
	}
}

func TestRendererMessageLayout(t *testing.T) {
	r, buf := testRenderer(Options{})

	r.Handle(posted("him", "👨 Him", "hey you up 😄"))

	want := fmt.Sprintf("%s 👨 Him ➤\nhey you up 😄\n\n", stamp(testTime))
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestRendererFallsBackToAgentName(t *testing.T) {
	r, buf := testRenderer(Options{})

	r.Handle(posted("him", "", "morning"))

	if !strings.Contains(buf.String(), "him ➤") {
		t.Fatalf("output %q should use the agent name when the label is empty", buf.String())
	}
}

func TestRendererWrapsLongMessages(t *testing.T) {
	r, buf := testRenderer(Options{Width: 16})

	r.Handle(posted("her", "👩 Her", "alpha beta gamma delta epsilon zeta"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	body := lines[1:]
	if len(body) < 2 {
		t.Fatalf("body %q should wrap onto multiple lines", body)
	}
	for _, line := range body {
		if utf8.RuneCountInString(line) > 16 {
			t.Fatalf("line %q exceeds the wrap column", line)
		}
	}
}

func TestRendererWrapDisabled(t *testing.T) {
	r, buf := testRenderer(Options{Width: -1})

	text := strings.Repeat("word ", 40) + "end"
	r.Handle(posted("her", "👩 Her", text))

	if lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"); len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one unwrapped body line", len(lines))
	}
}

func TestRendererQuietHidesLifecycleDetail(t *testing.T) {
	r, buf := testRenderer(Options{})

	r.Handle(event.NewAgentReady("conv-1", "him", "gemma3:4b"))
	r.Handle(event.NewInstructionsSent("conv-1", "him", 812))
	r.Handle(event.NewTurnSkipped("conv-1", "her", event.SkipDuplicateReply))

	if buf.Len() != 0 {
		t.Fatalf("quiet mode printed %q", buf.String())
	}
}

func TestRendererVerboseLifecycle(t *testing.T) {
	cases := []struct {
		name string
		ev   event.Event
		want string
	}{
		{"started", event.NewConversationStarted("conv-1", "planning a picnic", "pane", []string{"him", "her"}), "💕 Setting up a conversation about: planning a picnic (pane)"},
		{"ready", event.NewAgentReady("conv-1", "him", "gemma3:4b"), "✅ him is ready (gemma3:4b)"},
		{"instructions", event.NewInstructionsSent("conv-1", "him", 812), "📨 Role instructions sent to him (812 chars)"},
		{"duplicate", event.NewTurnSkipped("conv-1", "her", event.SkipDuplicateReply), "🔄 Duplicate response from her, skipping"},
		{"empty", event.NewTurnSkipped("conv-1", "her", event.SkipEmptyReply), "⚠️ Empty response from her, skipping"},
		{"failed", event.NewTurnSkipped("conv-1", "her", event.SkipReplyFailed), "⚠️ No response from her, skipping"},
		{"reloaded", event.NewPersonasReloaded("conv-1", "duet.yaml"), "🔁 Personas reloaded from duet.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, buf := testRenderer(Options{Verbose: true})
			r.Handle(tc.ev)
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("output %q missing %q", buf.String(), tc.want)
			}
		})
	}
}

func TestRendererEndedReasons(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{event.EndMaxTurns, "👋 Conversation finished after 3 turns (44s)"},
		{event.EndInterrupted, "👋 Conversation interrupted after 3 turns (44s)"},
		{event.EndStalled, "⚠️ Conversation stalled after 3 turns (44s)"},
		{event.EndFailed, "❌ Conversation failed after 3 turns (44s)"},
		{"other", "👋 Conversation ended after 3 turns (44s)"},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			r, buf := testRenderer(Options{})
			r.Handle(event.NewConversationEnded("conv-1", tc.reason, 3, 44*time.Second+200*time.Millisecond))
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("output %q missing %q", buf.String(), tc.want)
			}
		})
	}
}

func TestRendererVerboseShowsElapsed(t *testing.T) {
	r, buf := testRenderer(Options{Verbose: true})

	ev := posted("him", "👨 Him", "hey")
	ev.Elapsed = 3800 * time.Millisecond
	r.Handle(ev)

	if !strings.Contains(buf.String(), "(3.8s)") {
		t.Fatalf("output %q missing the elapsed suffix", buf.String())
	}
}

func TestRendererColorStillCarriesText(t *testing.T) {
	r, buf := testRenderer(Options{Color: true})

	r.Handle(posted("him", "👨 Him", "hey you up"))

	if !strings.Contains(buf.String(), "hey you up") {
		t.Fatalf("colored output %q lost the message text", buf.String())
	}
}

func TestRendererBannerAndNotes(t *testing.T) {
	r, buf := testRenderer(Options{})

	r.Banner()
	r.Notef("No scenario provided, using default: %s", "coffee")
	r.Successf("Starting with: %s!", "coffee")

	want := "Welcome to AI text message conversation Simulator!\n" +
		"No scenario provided, using default: coffee\n" +
		"Starting with: coffee!\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestPersonaColorResolution(t *testing.T) {
	if got := personaColor("Blue", 1); got != blueColor {
		t.Fatalf("personaColor(Blue) = %v, want %v", got, blueColor)
	}
	if got := personaColor("no-such-color", 1); got != fallbackColors[1] {
		t.Fatalf("unknown color = %v, want slot fallback %v", got, fallbackColors[1])
	}
	if got := personaColor("", 0); got != fallbackColors[0] {
		t.Fatalf("empty color = %v, want slot fallback %v", got, fallbackColors[0])
	}
}

func TestSinkRendersPublishedEvents(t *testing.T) {
	bus := event.NewBus[event.Event](context.Background(), event.BusOptions{
		Registry: &metrics.Registry{},
	})
	t.Cleanup(bus.Close)
	r, buf := testRenderer(Options{})

	sink := NewSink(bus, r)
	bus.Publish(posted("him", "👨 Him", "hello there"))
	sink.Close()

	if !strings.Contains(buf.String(), "hello there") {
		t.Fatalf("sink output %q missing the published message", buf.String())
	}
}

func TestSinkNilBus(t *testing.T) {
	r, _ := testRenderer(Options{})

	sink := NewSink(nil, r)
	sink.Close()
}
