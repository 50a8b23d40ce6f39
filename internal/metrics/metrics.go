package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry is a process-local metrics store rendered in Prometheus text
// format by the /metrics endpoint.
type Registry struct {
	turns            atomic.Int64
	repliesEmpty     atomic.Int64
	repliesDuplicate atomic.Int64
	turnFailures     atomic.Int64
	agents           sync.Map // agent name -> *agentStats
	busPublished     sync.Map // bus|event -> *atomic.Int64
	busDropped       sync.Map // bus|event -> *atomic.Int64
	busSubscribers   sync.Map // bus -> *atomic.Int64
}

type agentStats struct {
	delivers      atomic.Int64
	replies       atomic.Int64
	replyFailures atomic.Int64
	replyNanos    atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncTurn() {
	if r == nil {
		return
	}
	r.turns.Add(1)
}

func (r *Registry) IncReplyEmpty() {
	if r == nil {
		return
	}
	r.repliesEmpty.Add(1)
}

func (r *Registry) IncReplyDuplicate() {
	if r == nil {
		return
	}
	r.repliesDuplicate.Add(1)
}

func (r *Registry) IncTurnFailure() {
	if r == nil {
		return
	}
	r.turnFailures.Add(1)
}

func (r *Registry) IncDeliver(agent string) {
	if r == nil {
		return
	}
	r.agentStats(agent).delivers.Add(1)
}

func (r *Registry) RecordReply(agent string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	stats := r.agentStats(agent)
	stats.replies.Add(1)
	stats.replyNanos.Add(duration.Nanoseconds())
	if err != nil {
		stats.replyFailures.Add(1)
	}
}

func (r *Registry) IncEventPublished(bus, eventType string) {
	if r == nil {
		return
	}
	counter(&r.busPublished, bus+"|"+eventType).Add(1)
}

func (r *Registry) IncEventDropped(bus, eventType string) {
	if r == nil {
		return
	}
	counter(&r.busDropped, bus+"|"+eventType).Add(1)
}

func (r *Registry) SetEventSubscribers(bus string, count int) {
	if r == nil {
		return
	}
	counter(&r.busSubscribers, bus).Store(int64(count))
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "duet_turns_total", "Messages relayed between the agents", r.turns.Load())
	writeCounter(writer, "duet_replies_empty_total", "Replies discarded because no text could be extracted", r.repliesEmpty.Load())
	writeCounter(writer, "duet_replies_duplicate_total", "Replies discarded as repeats of the previous message", r.repliesDuplicate.Load())
	writeCounter(writer, "duet_turn_failures_total", "Turns that errored or timed out", r.turnFailures.Load())

	agentNames := keys(&r.agents)
	sort.Strings(agentNames)

	writeHelp(writer, "duet_agent_reply_seconds", "Time from delivery to extracted reply")
	fmt.Fprintln(writer, "# TYPE duet_agent_reply_seconds summary")
	writeHelp(writer, "duet_agent_reply_failures_total", "Reply attempts that returned an error")
	fmt.Fprintln(writer, "# TYPE duet_agent_reply_failures_total counter")
	writeHelp(writer, "duet_agent_delivers_total", "Messages delivered to the agent")
	fmt.Fprintln(writer, "# TYPE duet_agent_delivers_total counter")

	for _, name := range agentNames {
		stats := r.agentStats(name)
		label := formatLabel(name)
		seconds := float64(stats.replyNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "duet_agent_reply_seconds_sum{agent=%s} %.6f\n", label, seconds)
		fmt.Fprintf(writer, "duet_agent_reply_seconds_count{agent=%s} %d\n", label, stats.replies.Load())
		fmt.Fprintf(writer, "duet_agent_reply_failures_total{agent=%s} %d\n", label, stats.replyFailures.Load())
		fmt.Fprintf(writer, "duet_agent_delivers_total{agent=%s} %d\n", label, stats.delivers.Load())
	}

	writeBusCounters(writer, "duet_events_published_total", "Events published per bus and type", &r.busPublished)
	writeBusCounters(writer, "duet_events_dropped_total", "Events dropped to slow subscribers per bus and type", &r.busDropped)

	writeHelp(writer, "duet_event_subscribers", "Current subscriber count per bus")
	fmt.Fprintln(writer, "# TYPE duet_event_subscribers gauge")
	busNames := keys(&r.busSubscribers)
	sort.Strings(busNames)
	for _, bus := range busNames {
		fmt.Fprintf(writer, "duet_event_subscribers{bus=%s} %d\n", formatLabel(bus), counter(&r.busSubscribers, bus).Load())
	}

	return nil
}

func (r *Registry) agentStats(name string) *agentStats {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	value, _ := r.agents.LoadOrStore(name, &agentStats{})
	return value.(*agentStats)
}

func counter(m *sync.Map, key string) *atomic.Int64 {
	value, _ := m.LoadOrStore(key, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func keys(m *sync.Map) []string {
	var out []string
	m.Range(func(key, _ interface{}) bool {
		if name, ok := key.(string); ok {
			out = append(out, name)
		}
		return true
	})
	return out
}

func writeBusCounters(writer io.Writer, metric, help string, m *sync.Map) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	entries := keys(m)
	sort.Strings(entries)
	for _, entry := range entries {
		bus, eventType, _ := strings.Cut(entry, "|")
		fmt.Fprintf(writer, "%s{bus=%s,event=%s} %d\n", metric, formatLabel(bus), formatLabel(eventType), counter(m, entry).Load())
	}
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
