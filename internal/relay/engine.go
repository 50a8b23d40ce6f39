package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"duet/internal/event"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/persona"
)

const (
	defaultTurnTimeout  = 3 * time.Minute
	defaultReadyTimeout = 5 * time.Minute

	// Unusable turns tolerated in a row before the conversation is
	// declared stalled.
	maxConsecutiveFailures = 3
)

// EngineOptions wires an Engine. Agents and Personas are aligned:
// index 0 is the opener, index 1 the responder.
type EngineOptions struct {
	Conversation string
	Scenario     string
	Transport    string
	Agents       [2]Agent
	Personas     [2]persona.Persona
	Bus          *event.Bus[event.Event]
	Logger       *logging.Logger
	Registry     *metrics.Registry
	MaxTurns     int           // 0 runs until interrupted
	TurnTimeout  time.Duration // per-reply budget
	MinInterval  time.Duration // pacing between relayed messages
	WarmupDelay  time.Duration // pause before the first readiness poll
	ReadyTimeout time.Duration // budget for a REPL's first prompt
}

// Engine ferries messages between two agents. Each reply is validated,
// published, and delivered to the other side until the run is stopped
// by the context, the turn limit, or the failure budget.
type Engine struct {
	opts     EngineOptions
	personas [2]persona.Persona
	limiter  *rate.Limiter
	registry *metrics.Registry
	log      *logging.Logger
	reloadCh chan reloadRequest

	seq       int
	failures  int
	lastReply [2]string
	started   time.Time
}

type reloadRequest struct {
	personas [2]persona.Persona
	path     string
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Agents[0] == nil || opts.Agents[1] == nil {
		return nil, errors.New("engine needs two agents")
	}
	if opts.Scenario == "" {
		return nil, errors.New("engine needs a scenario")
	}
	if opts.Conversation == "" {
		opts.Conversation = uuid.NewString()
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = defaultTurnTimeout
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	registry := opts.Registry
	if registry == nil {
		registry = metrics.Default
	}
	log := opts.Logger.Component("engine").With(map[string]string{
		"conversation": opts.Conversation,
	})
	return &Engine{
		opts:     opts,
		personas: opts.Personas,
		limiter:  rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		registry: registry,
		log:      log,
		reloadCh: make(chan reloadRequest, 1),
	}, nil
}

// Conversation returns the run's conversation id.
func (e *Engine) Conversation() string {
	return e.opts.Conversation
}

// QueueReload hands the engine a fresh persona pair, opener first. The
// swap happens between turns; queueing twice keeps only the newest.
func (e *Engine) QueueReload(personas [2]persona.Persona, path string) {
	req := reloadRequest{personas: personas, path: path}
	for {
		select {
		case e.reloadCh <- req:
			return
		default:
		}
		select {
		case <-e.reloadCh:
		default:
		}
	}
}

// Run drives the conversation until the context is canceled, the turn
// limit is reached, or an agent stops producing usable replies. A
// canceled context and a reached turn limit are normal endings.
func (e *Engine) Run(ctx context.Context) error {
	e.started = time.Now()
	names := []string{e.opts.Agents[0].Name(), e.opts.Agents[1].Name()}
	e.publish(event.NewConversationStarted(e.opts.Conversation, e.opts.Scenario, e.opts.Transport, names))
	e.log.Info("conversation started", map[string]string{
		"scenario":  e.opts.Scenario,
		"transport": e.opts.Transport,
		"opener":    names[0],
		"responder": names[1],
	})

	reason, err := e.run(ctx)

	duration := time.Since(e.started)
	e.publish(event.NewConversationEnded(e.opts.Conversation, reason, e.seq, duration))
	e.log.Info("conversation ended", map[string]string{
		"reason":   reason,
		"turns":    fmt.Sprintf("%d", e.seq),
		"duration": duration.Round(time.Second).String(),
	})
	return err
}

func (e *Engine) run(ctx context.Context) (string, error) {
	if err := e.sleep(ctx, e.opts.WarmupDelay); err != nil {
		return event.EndInterrupted, nil
	}

	if err := e.awaitAgents(ctx); err != nil {
		if ctx.Err() != nil {
			return event.EndInterrupted, nil
		}
		return event.EndFailed, err
	}
	if err := e.instructAgents(ctx); err != nil {
		if ctx.Err() != nil {
			return event.EndInterrupted, nil
		}
		return event.EndFailed, err
	}

	opener := e.opts.Agents[0]
	kickoff := e.personas[0].Kickoff(e.opts.Scenario)
	if err := opener.Deliver(ctx, kickoff); err != nil {
		if ctx.Err() != nil {
			return event.EndInterrupted, nil
		}
		return event.EndFailed, fmt.Errorf("kickoff: %w", err)
	}
	e.registry.IncDeliver(opener.Name())

	current := 0
	for {
		if err := e.applyReload(ctx); err != nil {
			return event.EndFailed, err
		}
		if ctx.Err() != nil {
			return event.EndInterrupted, nil
		}

		text, elapsed, err := e.awaitReply(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return event.EndInterrupted, nil
			}
			if terminal := e.skip(current, event.SkipReplyFailed, err); terminal != nil {
				return event.EndStalled, terminal
			}
			continue
		}
		if text == "" {
			if terminal := e.skip(current, event.SkipEmptyReply, ErrEmptyReply); terminal != nil {
				return event.EndStalled, terminal
			}
			continue
		}
		if text == e.lastReply[current] {
			if terminal := e.skip(current, event.SkipDuplicateReply, ErrDuplicateReply); terminal != nil {
				return event.EndStalled, terminal
			}
			continue
		}

		e.seq++
		e.failures = 0
		e.lastReply[current] = text
		e.registry.IncTurn()
		e.publish(event.NewMessagePosted(
			e.opts.Conversation,
			e.seq,
			e.opts.Agents[current].Name(),
			e.personas[current].DisplayLabel(),
			text,
			elapsed,
		))

		if e.opts.MaxTurns > 0 && e.seq >= e.opts.MaxTurns {
			return event.EndMaxTurns, nil
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return event.EndInterrupted, nil
		}

		other := 1 - current
		if err := e.opts.Agents[other].Deliver(ctx, text); err != nil {
			if ctx.Err() != nil {
				return event.EndInterrupted, nil
			}
			return event.EndFailed, fmt.Errorf("deliver to %s: %w", e.opts.Agents[other].Name(), err)
		}
		e.registry.IncDeliver(e.opts.Agents[other].Name())
		current = other
	}
}

func (e *Engine) awaitAgents(ctx context.Context) error {
	for i, agent := range e.opts.Agents {
		readyCtx, cancel := context.WithTimeout(ctx, e.opts.ReadyTimeout)
		err := agent.AwaitReady(readyCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("agent not ready: %w", err)
		}
		e.publish(event.NewAgentReady(e.opts.Conversation, agent.Name(), e.personas[i].Model))
	}
	return nil
}

func (e *Engine) instructAgents(ctx context.Context) error {
	for i, agent := range e.opts.Agents {
		instructions := e.personas[i].Instructions(e.opts.Scenario)
		instructCtx, cancel := context.WithTimeout(ctx, e.opts.TurnTimeout)
		err := agent.Instruct(instructCtx, instructions)
		cancel()
		if err != nil {
			return fmt.Errorf("instruct %s: %w", agent.Name(), err)
		}
		e.publish(event.NewInstructionsSent(e.opts.Conversation, agent.Name(), len(instructions)))
	}
	return nil
}

func (e *Engine) awaitReply(ctx context.Context, current int) (string, time.Duration, error) {
	turnCtx, cancel := context.WithTimeout(ctx, e.opts.TurnTimeout)
	defer cancel()

	start := time.Now()
	text, err := e.opts.Agents[current].Reply(turnCtx)
	elapsed := time.Since(start)
	e.registry.RecordReply(e.opts.Agents[current].Name(), elapsed, err)
	return text, elapsed, err
}

// skip records an unusable turn. The same agent is retried; after
// maxConsecutiveFailures in a row the returned error ends the run.
func (e *Engine) skip(current int, reason string, cause error) error {
	agent := e.opts.Agents[current].Name()
	e.failures++
	e.registry.IncTurnFailure()
	switch {
	case errors.Is(cause, ErrEmptyReply):
		e.registry.IncReplyEmpty()
	case errors.Is(cause, ErrDuplicateReply):
		e.registry.IncReplyDuplicate()
	}
	e.log.Warn("turn skipped", map[string]string{
		"agent":    agent,
		"reason":   reason,
		"failures": fmt.Sprintf("%d", e.failures),
	})
	e.publish(event.NewTurnSkipped(e.opts.Conversation, agent, reason))

	if e.failures >= maxConsecutiveFailures {
		return fmt.Errorf("%s produced %d unusable turns in a row: %w", agent, e.failures, cause)
	}
	return nil
}

func (e *Engine) applyReload(ctx context.Context) error {
	var req reloadRequest
	select {
	case req = <-e.reloadCh:
	default:
		return nil
	}

	for i, agent := range e.opts.Agents {
		instructions := req.personas[i].Instructions(e.opts.Scenario)
		instructCtx, cancel := context.WithTimeout(ctx, e.opts.TurnTimeout)
		err := agent.Instruct(instructCtx, instructions)
		cancel()
		if err != nil {
			return fmt.Errorf("re-instruct %s: %w", agent.Name(), err)
		}
	}
	e.personas = req.personas
	e.publish(event.NewPersonasReloaded(e.opts.Conversation, req.path))
	e.log.Info("personas reloaded", map[string]string{"path": req.path})
	return nil
}

func (e *Engine) publish(ev event.Event) {
	e.opts.Bus.Publish(ev)
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
