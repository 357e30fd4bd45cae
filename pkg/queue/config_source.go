package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/config"
)

// ConfigSource supplies the current delivery policy.
type ConfigSource interface {
	Current(ctx context.Context) (Config, error)
}

// StaticConfigSource always returns the same policy.
type StaticConfigSource Config

func (s StaticConfigSource) Current(context.Context) (Config, error) {
	return Config(s), nil
}

// MemoryConfigSource holds a policy that admins can replace at runtime.
type MemoryConfigSource struct {
	mu  sync.RWMutex
	cfg Config
}

// NewMemoryConfigSource starts from cfg.
func NewMemoryConfigSource(cfg Config) *MemoryConfigSource {
	return &MemoryConfigSource{cfg: cfg}
}

func (s *MemoryConfigSource) Current(context.Context) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

// Set validates and stores cfg with the version bumped past the current one.
func (s *MemoryConfigSource) Set(cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Version = s.cfg.Version + 1
	s.cfg = cfg
	return cfg, nil
}

// FileConfigSource reads a YAML policy file on top of a base config and
// re-reads it whenever the file modification time changes.
type FileConfigSource struct {
	path string
	base Config

	mu      sync.Mutex
	modTime time.Time
	cfg     Config
	loaded  bool
}

// NewFileConfigSource creates a source for path. base supplies the values
// the file omits, usually the env-loaded Config.
func NewFileConfigSource(path string, base Config) *FileConfigSource {
	return &FileConfigSource{path: path, base: base}
}

func (s *FileConfigSource) Current(context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if s.loaded {
			return s.cfg, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return s.base, nil
		}
		return Config{}, fmt.Errorf("queue: stat policy file: %w", err)
	}
	if s.loaded && info.ModTime().Equal(s.modTime) {
		return s.cfg, nil
	}

	cfg := s.base
	cfg.RequireApproval = nil
	if err := config.LoadYAML(s.path, &cfg); err != nil {
		if s.loaded {
			return s.cfg, nil
		}
		return Config{}, err
	}
	if cfg.RequireApproval == nil {
		cfg.RequireApproval = s.base.RequireApproval
	}
	if err := cfg.Validate(); err != nil {
		if s.loaded {
			return s.cfg, nil
		}
		return Config{}, err
	}
	prev := s.base.Version
	if s.loaded {
		prev = s.cfg.Version
	}
	if cfg.Version <= prev {
		cfg.Version = prev + 1
	}

	s.cfg, s.modTime, s.loaded = cfg, info.ModTime(), true
	return cfg, nil
}
