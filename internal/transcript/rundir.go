package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateDir resolves the per-user state root, honoring XDG_STATE_HOME.
func StateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "duet"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".local", "state", "duet"), nil
}

// NewRunDir creates the directory holding one conversation's artifacts,
// named by start time plus a conversation id fragment.
func NewRunDir(base string, now time.Time, conversation string) (string, error) {
	short := conversation
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(base, now.Format("20060102-150405")+"-"+short)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}
