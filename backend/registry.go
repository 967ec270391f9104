// Package backend resolves pipeline stages to interchangeable engines.
//
// Each stage (speech recognition, reply generation, speech synthesis) owns a
// Registry that maps engine names to implementations. Adding an engine means
// registering another implementation; the dispatch code never changes.
package backend

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Stage identifies a step of the turn pipeline.
type Stage string

const (
	StageASR Stage = "asr"
	StageLLM Stage = "llm"
	StageTTS Stage = "tts"
)

// Registry maps engine names to implementations for a single stage.
// Names and aliases are matched case-insensitively. Safe for concurrent use.
type Registry[T any] struct {
	stage    Stage
	mu       sync.RWMutex
	engines  map[string]T
	aliases  map[string]string
	fallback string
}

// NewRegistry creates an empty Registry for the given stage.
func NewRegistry[T any](stage Stage) *Registry[T] {
	return &Registry[T]{
		stage:   stage,
		engines: make(map[string]T),
		aliases: make(map[string]string),
	}
}

// Stage returns the pipeline stage this registry serves.
func (r *Registry[T]) Stage() Stage {
	return r.stage
}

// Register adds a named engine plus optional alternative names for it.
func (r *Registry[T]) Register(name string, engine T, aliases ...string) error {
	key := normalize(name)
	if key == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.lookup(key); taken {
		return fmt.Errorf("%w: %s %s", ErrExists, r.stage, key)
	}
	for _, alias := range aliases {
		if _, taken := r.lookup(normalize(alias)); taken {
			return fmt.Errorf("%w: %s %s", ErrExists, r.stage, normalize(alias))
		}
	}

	r.engines[key] = engine
	for _, alias := range aliases {
		if a := normalize(alias); a != "" {
			r.aliases[a] = key
		}
	}
	return nil
}

// SetFallback names the engine used when a caller asks for no engine or for
// one that is not registered.
func (r *Registry[T]) SetFallback(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.lookup(normalize(name))
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, r.stage, normalize(name))
	}
	r.fallback = key
	return nil
}

// Fallback returns the canonical name of the fallback engine, if any.
func (r *Registry[T]) Fallback() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Get returns the engine registered under name or one of its aliases.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	key, ok := r.lookup(normalize(name))
	if !ok {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, r.stage, normalize(name))
	}
	return r.engines[key], nil
}

// Resolve returns the engine for name along with its canonical name. An empty
// or unknown name resolves to the fallback engine.
func (r *Registry[T]) Resolve(name string) (T, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requested := normalize(name)
	if key, ok := r.lookup(requested); ok {
		return r.engines[key], key, nil
	}

	var zero T
	if r.fallback == "" {
		return zero, "", fmt.Errorf("%w: %s %q", ErrNoFallback, r.stage, requested)
	}
	if requested != "" {
		log.Printf("[BACKEND] unknown %s engine %q, using %q", r.stage, requested, r.fallback)
	}
	return r.engines[r.fallback], r.fallback, nil
}

// Names returns the canonical engine names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup must be called with r.mu held.
func (r *Registry[T]) lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if _, ok := r.engines[key]; ok {
		return key, true
	}
	if canonical, ok := r.aliases[key]; ok {
		return canonical, true
	}
	return "", false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
