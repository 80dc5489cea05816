package exercise

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/c1advanced/c1prep/internal/domain"
)

// SpeakingFallbackKey names the built-in interview used when speaking
// generation fails.
const SpeakingFallbackKey = "speaking1_fallback"

// Topics are injected into Speaking Part 1 generation requests to force
// variety.
var Topics = []string{
	"Globalization & Cultural Identity",
	"The Impact of Artificial Intelligence",
	"Work-Life Balance & Remote Work",
	"Environmental Responsibility & Sustainability",
	"The Role of Arts in Society",
	"Education Systems & Future Skills",
	"Mass Tourism & Local Communities",
	"Privacy in the Digital Age",
	"Mental Health & Modern Lifestyle",
	"Consumerism & Ethics",
	"The Evolution of Communication",
	"Urban Planning & City Living",
}

// RandomTopic picks one of Topics.
func RandomTopic() string {
	return Topics[rand.IntN(len(Topics))]
}

// Registry serves built-in tasks that never need a network call.
type Registry struct {
	loader *Loader
	mu     sync.RWMutex
	tasks  map[string]*domain.Exercise
	loaded bool
}

// NewRegistry creates a registry over loader. Tasks load lazily.
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader: loader,
		tasks:  make(map[string]*domain.Exercise),
	}
}

// Load reads every task from the loader.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load built-in tasks: %w", err)
	}
	r.tasks = tasks
	r.loaded = true
	return nil
}

func (r *Registry) ensureLoaded() error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Load()
}

// Get returns a copy of the built-in task for key. Callers may mutate the
// result freely.
func (r *Registry) Get(key string) (*domain.Exercise, bool) {
	if err := r.ensureLoaded(); err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.tasks[key]
	if !ok {
		return nil, false
	}
	return clone(ex), true
}

func clone(ex *domain.Exercise) *domain.Exercise {
	out := *ex
	if ex.Content != nil {
		c := *ex.Content
		c.Notes = append([]string(nil), ex.Content.Notes...)
		c.Opinions = append([]string(nil), ex.Content.Opinions...)
		out.Content = &c
	}
	out.Options = append([]domain.TaskOption(nil), ex.Options...)
	out.Questions = append([]domain.Item(nil), ex.Questions...)
	return &out
}
