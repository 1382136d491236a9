package provider

import (
	"fmt"
	"sync"
)

// Registry resolves concrete adapters by configuration name. Adapters
// register at startup; resolution happens once during wiring, never per
// request.
type Registry struct {
	mu         sync.RWMutex
	document   map[string]DocumentProvider
	presence   map[string]PresenceProvider
	onboarding map[string]OnboardingAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		document:   make(map[string]DocumentProvider),
		presence:   make(map[string]PresenceProvider),
		onboarding: make(map[string]OnboardingAdapter),
	}
}

// RegisterDocument adds a document verification adapter under a name.
func (r *Registry) RegisterDocument(name string, p DocumentProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document[name] = p
}

// RegisterPresence adds a presence check adapter under a name.
func (r *Registry) RegisterPresence(name string, p PresenceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[name] = p
}

// RegisterOnboarding adds an onboarding adapter under a name.
func (r *Registry) RegisterOnboarding(name string, a OnboardingAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onboarding[name] = a
}

// Document resolves the named document adapter.
func (r *Registry) Document(name string) (DocumentProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.document[name]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// Presence resolves the named presence adapter.
func (r *Registry) Presence(name string) (PresenceProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presence[name]
	if !ok {
		return nil, fmt.Errorf("presence %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// Onboarding resolves the named onboarding adapter.
func (r *Registry) Onboarding(name string) (OnboardingAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.onboarding[name]
	if !ok {
		return nil, fmt.Errorf("onboarding %q: %w", name, ErrProviderNotFound)
	}
	return a, nil
}
