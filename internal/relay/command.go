package relay

import (
	"strings"

	"duet/internal/persona"
)

// CommandLine returns the shell line typed into a pane to launch the
// model REPL. The env prefix is added only when the host differs from
// the Ollama default, so the common case reads as a plain `ollama run`.
func CommandLine(host, model string) string {
	words := []string{"ollama", "run", escapeShellArg(model)}
	if hostOverride(host) {
		words = append([]string{"env", "OLLAMA_HOST=" + escapeShellArg(host)}, words...)
	}
	return strings.Join(words, " ")
}

// CommandArgv returns the exec form of the REPL command for transports
// that spawn the process directly.
func CommandArgv(model string) []string {
	return []string{"ollama", "run", model}
}

// CommandEnv returns the extra environment entries for the REPL
// process, or nil when the default host is in use.
func CommandEnv(host string) []string {
	if !hostOverride(host) {
		return nil
	}
	return []string{"OLLAMA_HOST=" + host}
}

func hostOverride(host string) bool {
	return host != "" && host != persona.DefaultHost
}

func escapeShellArg(value string) string {
	if value == "" {
		return "''"
	}
	if !needsQuoting(value) {
		return value
	}
	replacer := strings.NewReplacer("'", "'\"'\"'")
	return "'" + replacer.Replace(value) + "'"
}

func needsQuoting(value string) bool {
	for _, r := range value {
		switch r {
		case ' ', '\t', '\n', '\r', '\'', '"', '\\', '$', '&', ';', '|', '>', '<', '(', ')', '*', '?', '[', ']', '{', '}', '!', '#':
			return true
		}
	}
	return false
}
