package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Hint mirrors the small cache a browser client keeps in local storage:
// the languages last selected and whether someone was signed in. It is
// only a startup navigation hint and never authoritative — the session
// store's own check always wins.
type Hint struct {
	Languages     []string `json:"languages"`
	Authenticated bool     `json:"is_authenticated"`
}

// HintCache persists a Hint as a small JSON file.
type HintCache struct {
	mu   sync.Mutex
	path string
}

// NewHintCache returns a cache at path, or nil when path is empty.
func NewHintCache(path string) *HintCache {
	if path == "" {
		return nil
	}
	return &HintCache{path: path}
}

// Load reads the hint. A missing file yields a zero hint, not an error.
func (c *HintCache) Load() (Hint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Hint{}, nil
		}
		return Hint{}, err
	}

	var hint Hint
	if err := json.Unmarshal(data, &hint); err != nil {
		// A corrupt hint file is worthless; start over.
		return Hint{}, nil
	}
	return hint, nil
}

// Save writes the hint, creating parent directories as needed.
func (c *HintCache) Save(hint Hint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(hint, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
