package persona

import (
	"fmt"
	"strings"
)

// Persona is one side of the conversation: a model plus the texting style
// it is instructed to keep.
type Persona struct {
	Name   string   `yaml:"name"`
	Label  string   `yaml:"label"`
	Prefix string   `yaml:"prefix"`
	Color  string   `yaml:"color"`
	Model  string   `yaml:"model"`
	Opener bool     `yaml:"opener"`
	Voice  []string `yaml:"voice"`
}

// DefaultPersonas returns the built-in pair.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:   "him",
			Label:  "👨 Him",
			Prefix: "👨 Him:",
			Color:  "blue",
			Opener: true,
			Voice:  defaultVoice(),
		},
		{
			Name:   "her",
			Label:  "👩 Her",
			Prefix: "👩 Her:",
			Color:  "green",
			Voice:  defaultVoice(),
		},
	}
}

func defaultVoice() []string {
	return []string{
		"IMPORTANT: Keep your message around 2-4 SENTENCES. Be conversational and casual. Use more daily vocabulary and slangs.",
		"Use emojis to express your emotions and feelings.",
		"CRITICAL: ONLY output the exact words you are saying with NO PUNCTUATION AT ALL. Do NOT include any narration, description, formatting, character names, or dialogue tags. Don't use asterisks, quotes, periods, commas or any other formatting or punctuation. Just output plain text as if you're speaking.",
	}
}

// Instructions renders the role prompt delivered before the conversation
// starts.
func (p Persona) Instructions(scenario string) string {
	parts := make([]string, 0, len(p.Voice)+4)
	parts = append(parts, fmt.Sprintf("Role-play this scenario: %s.", scenario))
	if !p.Opener {
		parts = append(parts, "First, wait for the other person to start the conversation.")
	}
	for _, line := range p.Voice {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	parts = append(parts, fmt.Sprintf("Prepend a %q prefix to the full message before sending it.", p.Prefix))
	if p.Opener {
		parts = append(parts, "FIRST MESSAGE: You should start the conversation in a way that relates to the scenario.")
	}
	return strings.Join(parts, " ")
}

// Kickoff is the delivery that makes the opener send the first text.
func (p Persona) Kickoff(scenario string) string {
	return fmt.Sprintf("Start the text message conversation about this scenario: %s.", scenario)
}

// DisplayLabel falls back to the prefix or name when no label is set.
func (p Persona) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	if p.Prefix != "" {
		return strings.TrimSuffix(strings.TrimSpace(p.Prefix), ":")
	}
	return p.Name
}
