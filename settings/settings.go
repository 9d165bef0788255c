package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Settings are the export preferences of the album consumer.
type Settings struct {
	GalWidth        int  `json:"galWidth"`
	GalHeight       int  `json:"galHeight"`
	GalLinks        bool `json:"galLinks"`
	MosaicMaxWidth  int  `json:"mosaicMaxWidth"`
	MosaicMaxHeight int  `json:"mosaicMaxHeight"`
	MosaicLinks     bool `json:"mosaicLinks"`
	GPWidth         int  `json:"gpWidth"`
	GPHeight        int  `json:"gpHeight"`
	PopupLinks      bool `json:"popupLinks"`
}

func Defaults() Settings {
	return Settings{
		GalWidth:        600,
		GalHeight:       400,
		GalLinks:        true,
		MosaicMaxWidth:  800,
		MosaicMaxHeight: 400,
		MosaicLinks:     true,
		GPWidth:         800,
		GPHeight:        600,
		PopupLinks:      true,
	}
}

// Normalize replaces zero or negative dimensions with their defaults.
func (s Settings) Normalize() Settings {
	d := Defaults()
	fix := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fix(&s.GalWidth, d.GalWidth)
	fix(&s.GalHeight, d.GalHeight)
	fix(&s.MosaicMaxWidth, d.MosaicMaxWidth)
	fix(&s.MosaicMaxHeight, d.MosaicMaxHeight)
	fix(&s.GPWidth, d.GPWidth)
	fix(&s.GPHeight, d.GPHeight)
	return s
}

// Merge applies a partial JSON document on top of s.
func (s Settings) Merge(patch []byte) (Settings, error) {
	if err := json.Unmarshal(patch, &s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Store persists settings as a JSON file. An empty path keeps them in
// memory only.
type Store struct {
	path string

	mu      sync.Mutex
	current *Settings
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored settings merged over the defaults. A missing
// file yields the defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Settings, error) {
	if s.current != nil {
		return *s.current, nil
	}

	loaded := Defaults()
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return loaded, fmt.Errorf("read settings: %w", err)
		default:
			if loaded, err = loaded.Merge(data); err != nil {
				return Defaults(), err
			}
		}
	}
	loaded = loaded.Normalize()
	s.current = &loaded
	return loaded, nil
}

// Save normalizes and persists settings.
func (s *Store) Save(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(next)
}

func (s *Store) saveLocked(next Settings) (Settings, error) {
	next = next.Normalize()
	if s.path != "" {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return next, fmt.Errorf("create settings dir: %w", err)
			}
		}
		data, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			return next, err
		}
		if err := os.WriteFile(s.path, data, 0644); err != nil {
			return next, fmt.Errorf("write settings: %w", err)
		}
	}
	s.current = &next
	return next, nil
}

// Update merges a partial JSON document into the current settings and
// saves the result.
func (s *Store) Update(patch []byte) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return current, err
	}
	next, err := current.Merge(patch)
	if err != nil {
		return current, err
	}
	return s.saveLocked(next)
}
