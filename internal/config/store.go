package config

import (
	"os"
	"sync"
)

// Store resolves the project configuration once and caches it.
type Store struct {
	loader Loader
	env    Environ

	mu  sync.Mutex
	cur *Config
}

// NewStore creates a store backed by the given loader and environment.
func NewStore(loader Loader, env Environ) *Store {
	if env == nil {
		env = OSEnviron
	}
	return &Store{loader: loader, env: env}
}

// Get returns the cached configuration, resolving it on first use or when
// reload is set. When no project configuration can be located a config with an
// empty app name is returned; callers that need a project check RequireAppName.
func (s *Store) Get(reload bool) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && !reload {
		return s.cur, nil
	}

	src, ok, err := s.loader.Locate()
	if err != nil {
		return nil, err
	}

	if !ok {
		log.Debugf("no project config located, using an uninitialized config")
		cfg, err := Resolve(map[string]any{"app_name": ""}, s.env)
		if err != nil {
			return nil, err
		}
		s.cur = cfg
		return cfg, nil
	}

	cfg, err := Resolve(src.Values(), s.env)
	if err != nil {
		return nil, err
	}
	cfg.source = src.Path()
	s.cur = cfg
	return cfg, nil
}

var (
	defaultStoreOnce sync.Once
	defaultStore     *Store
)

// Get returns the configuration of the project in the working directory.
func Get(reload bool) (*Config, error) {
	defaultStoreOnce.Do(func() {
		dir, err := os.Getwd()
		if err != nil {
			dir = "."
		}
		defaultStore = NewStore(NewFileLoader(dir, ""), OSEnviron)
	})
	return defaultStore.Get(reload)
}
