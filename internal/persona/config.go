package persona

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultScenario seeds the conversation when the operator provides none.
const DefaultScenario = "meeting for coffee after matching on a dating app"

const (
	DefaultSession     = "duet"
	DefaultModel       = "gemma3:4b"
	DefaultHost        = "http://localhost:11434"
	DefaultMarker      = ">>> Send a message"
	DefaultThinkMarker = "</think>"
	DefaultScrollback  = 300
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Duration decodes YAML durations in time.ParseDuration syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Turns carries the pacing knobs of the relay loop.
type Turns struct {
	Max          int      `yaml:"max"`
	Timeout      Duration `yaml:"timeout"`
	MinInterval  Duration `yaml:"min_interval"`
	PollInterval Duration `yaml:"poll_interval"`
	SettlePolls  int      `yaml:"settle_polls"`
	WarmupDelay  Duration `yaml:"warmup_delay"`
}

// Config is the fully layered run configuration: defaults, then the
// optional YAML file, then flags.
type Config struct {
	Session     string    `yaml:"session"`
	Model       string    `yaml:"model"`
	Host        string    `yaml:"host"`
	Scenario    string    `yaml:"scenario"`
	Marker      string    `yaml:"marker"`
	ThinkMarker string    `yaml:"think_marker"`
	Scrollback  int       `yaml:"scrollback"`
	Personas    []Persona `yaml:"personas"`
	Turns       Turns     `yaml:"turns"`
}

func Default() Config {
	return Config{
		Session:     DefaultSession,
		Model:       DefaultModel,
		Host:        DefaultHost,
		Scenario:    DefaultScenario,
		Marker:      DefaultMarker,
		ThinkMarker: DefaultThinkMarker,
		Scrollback:  DefaultScrollback,
		Personas:    DefaultPersonas(),
		Turns: Turns{
			Timeout:      Duration(180 * time.Second),
			MinInterval:  Duration(2 * time.Second),
			PollInterval: Duration(time.Second),
			SettlePolls:  3,
			WarmupDelay:  Duration(2 * time.Second),
		},
	}
}

// ParseFile reads and decodes a persona file. The result is an overlay;
// merge it over Default before validating.
func ParseFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read persona file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data with unknown keys rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid persona YAML: %w", err)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of other onto c. A personas list in the
// overlay replaces the pair wholesale.
func (c Config) Merge(other Config) Config {
	merged := c
	if other.Session != "" {
		merged.Session = other.Session
	}
	if other.Model != "" {
		merged.Model = other.Model
	}
	if other.Host != "" {
		merged.Host = other.Host
	}
	if other.Scenario != "" {
		merged.Scenario = other.Scenario
	}
	if other.Marker != "" {
		merged.Marker = other.Marker
	}
	if other.ThinkMarker != "" {
		merged.ThinkMarker = other.ThinkMarker
	}
	if other.Scrollback > 0 {
		merged.Scrollback = other.Scrollback
	}
	if len(other.Personas) > 0 {
		merged.Personas = other.Personas
	}
	if other.Turns.Max > 0 {
		merged.Turns.Max = other.Turns.Max
	}
	if other.Turns.Timeout > 0 {
		merged.Turns.Timeout = other.Turns.Timeout
	}
	if other.Turns.MinInterval > 0 {
		merged.Turns.MinInterval = other.Turns.MinInterval
	}
	if other.Turns.PollInterval > 0 {
		merged.Turns.PollInterval = other.Turns.PollInterval
	}
	if other.Turns.SettlePolls > 0 {
		merged.Turns.SettlePolls = other.Turns.SettlePolls
	}
	if other.Turns.WarmupDelay > 0 {
		merged.Turns.WarmupDelay = other.Turns.WarmupDelay
	}
	return merged
}

// Normalize fills derivable fields: persona labels, models, and a default
// opener when none is marked.
func (c *Config) Normalize() {
	hasOpener := false
	for i := range c.Personas {
		p := &c.Personas[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Prefix = strings.TrimSpace(p.Prefix)
		if p.Label == "" {
			p.Label = p.DisplayLabel()
		}
		if p.Model == "" {
			p.Model = c.Model
		}
		if p.Opener {
			hasOpener = true
		}
	}
	if !hasOpener && len(c.Personas) > 0 {
		c.Personas[0].Opener = true
	}
}

// Validate checks the layered, normalized configuration.
func (c Config) Validate() error {
	if c.Session == "" {
		return fmt.Errorf("session name is required")
	}
	if !sessionPattern.MatchString(c.Session) {
		return fmt.Errorf("session name %q is invalid: use letters, digits, - and _", c.Session)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if err := validateHost(c.Host); err != nil {
		return err
	}
	if strings.TrimSpace(c.Scenario) == "" {
		return fmt.Errorf("scenario is required")
	}
	if c.Marker == "" {
		return fmt.Errorf("prompt marker is required")
	}
	if c.Scrollback <= 0 {
		return fmt.Errorf("scrollback must be positive")
	}
	if err := c.validateTurns(); err != nil {
		return err
	}
	return c.validatePersonas()
}

func (c Config) validateTurns() error {
	if c.Turns.Max < 0 {
		return fmt.Errorf("turns.max cannot be negative")
	}
	if c.Turns.Timeout <= 0 {
		return fmt.Errorf("turns.timeout must be positive")
	}
	if c.Turns.MinInterval < 0 {
		return fmt.Errorf("turns.min_interval cannot be negative")
	}
	if c.Turns.PollInterval <= 0 {
		return fmt.Errorf("turns.poll_interval must be positive")
	}
	if c.Turns.SettlePolls <= 0 {
		return fmt.Errorf("turns.settle_polls must be positive")
	}
	return nil
}

func (c Config) validatePersonas() error {
	if len(c.Personas) != 2 {
		return fmt.Errorf("exactly two personas are required, got %d", len(c.Personas))
	}
	openers := 0
	names := make(map[string]bool, 2)
	prefixes := make(map[string]bool, 2)
	for _, p := range c.Personas {
		if p.Name == "" {
			return fmt.Errorf("persona name is required")
		}
		if !namePattern.MatchString(p.Name) {
			return fmt.Errorf("persona name %q is invalid: use lowercase kebab-case", p.Name)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate persona name %q", p.Name)
		}
		names[p.Name] = true
		if p.Prefix == "" {
			return fmt.Errorf("persona %s: prefix is required", p.Name)
		}
		if prefixes[p.Prefix] {
			return fmt.Errorf("personas share the prefix %q; reply extraction needs distinct prefixes", p.Prefix)
		}
		prefixes[p.Prefix] = true
		if p.Model == "" {
			return fmt.Errorf("persona %s: model is required", p.Name)
		}
		if p.Opener {
			openers++
		}
	}
	if openers != 1 {
		return fmt.Errorf("exactly one persona must open the conversation, got %d", openers)
	}
	return nil
}

// Opener returns the persona that sends the first message. Call only on a
// validated config.
func (c Config) Opener() Persona {
	for _, p := range c.Personas {
		if p.Opener {
			return p
		}
	}
	return c.Personas[0]
}

// Responder returns the persona that waits for the opener.
func (c Config) Responder() Persona {
	for _, p := range c.Personas {
		if !p.Opener {
			return p
		}
	}
	return c.Personas[len(c.Personas)-1]
}

// Prefixes lists the persona prefixes used by reply extraction.
func (c Config) Prefixes() []string {
	out := make([]string, 0, len(c.Personas))
	for _, p := range c.Personas {
		out = append(out, p.Prefix)
	}
	return out
}

func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host is required")
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", host, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid host %q: scheme must be http or https", host)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid host %q: missing address", host)
	}
	return nil
}
