package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// typeCache keeps one parsed value per config type.
type typeCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	cache = &typeCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	dotenvOnce sync.Once
)

// Load fills v from environment variables using `env` struct tags.
// The .env file in the working directory is read once per process when present.
// Each config type is parsed only once; later calls return the cached copy,
// so process-level settings (DSNs, worker counts) stay stable after startup.
//
//	var cfg dispatcher.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	loadDotenv()
	if v == nil {
		return ErrNilPointer
	}

	name := typeName[T]()

	if cached, ok := cache.get(name); ok {
		*v = cached.(T)
		return nil
	}

	cache.mu.Lock()
	once, ok := cache.onces[name]
	if !ok {
		once = new(sync.Once)
		cache.onces[name] = once
	}
	cache.mu.Unlock()

	var err error
	once.Do(func() {
		if parseErr := env.Parse(v); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			return
		}
		cache.mu.Lock()
		cache.values[name] = *v
		cache.mu.Unlock()
	})
	if err != nil {
		// allow a later call to retry after the environment is fixed
		cache.mu.Lock()
		delete(cache.onces, name)
		cache.mu.Unlock()
		return err
	}

	if cached, ok := cache.get(name); ok {
		*v = cached.(T)
		return nil
	}

	return ErrConfigNotLoaded
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse fills v from environment variables without caching.
// Use it for values that may change while the process runs.
func Parse[T any](v *T) error {
	loadDotenv()
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

func loadDotenv() {
	dotenvOnce.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})
}

func (c *typeCache) get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.PkgPath() + "." + t.String()
}
