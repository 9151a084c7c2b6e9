package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the persisted CLI session: the login token, an in-flight
// password-reset token, and the deadline before which another OTP
// request will be refused locally.
type State struct {
	SessionToken  string    `json:"sessionToken,omitempty"`
	ResetToken    string    `json:"resetToken,omitempty"`
	ResetEmail    string    `json:"resetEmail,omitempty"`
	ResendAllowed time.Time `json:"resendAllowed,omitempty"`
}

// ResendCooldown reports how long the user has to wait before requesting
// another reset OTP. Zero means a request is allowed now.
func (s State) ResendCooldown(now time.Time) time.Duration {
	if now.After(s.ResendAllowed) {
		return 0
	}
	return s.ResendAllowed.Sub(now).Round(time.Second)
}

// DefaultStatePath returns the state file location in the user's home
// directory, falling back to the working directory when home is unknown.
func DefaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storecli.json"
	}
	return filepath.Join(home, ".storecli.json")
}

// LoadState reads the state file at path. A missing file yields an empty
// state so first runs need no setup.
func LoadState(path string) (State, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("parse state file: %w", err)
	}
	return st, nil
}

// SaveState writes the state file with owner-only permissions since it
// holds a live session token.
func SaveState(path string, st State) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
