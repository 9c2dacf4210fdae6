package providers

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Set holds the provider clients known to the router, keyed by provider hint
type Set struct {
	mu      sync.RWMutex
	text    map[string]TextProvider
	image   map[string]ImageProvider
	probers map[string]Prober
	logger  *logrus.Logger
}

// NewSet creates an empty provider set
func NewSet(logger *logrus.Logger) *Set {
	return &Set{
		text:    make(map[string]TextProvider),
		image:   make(map[string]ImageProvider),
		probers: make(map[string]Prober),
		logger:  logger,
	}
}

// RegisterText adds a text provider; it is also probed when it implements Prober
func (s *Set) RegisterText(p TextProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.text[p.Name()] = p
	if prober, ok := p.(Prober); ok {
		s.probers[prober.Name()] = prober
	}
	s.logger.WithFields(logrus.Fields{"provider": p.Name(), "kind": "text"}).Info("Provider registered")
}

// RegisterImage adds an image provider
func (s *Set) RegisterImage(p ImageProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.image[p.Name()] = p
	s.logger.WithFields(logrus.Fields{"provider": p.Name(), "kind": "image"}).Info("Provider registered")
}

// Text returns a text provider by name
func (s *Set) Text(name string) (TextProvider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.text[name]
	return p, ok
}

// Image returns an image provider by name
func (s *Set) Image(name string) (ImageProvider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.image[name]
	return p, ok
}

// Probers returns every provider that can be probed
func (s *Set) Probers() []Prober {
	s.mu.RLock()
	defer s.mu.RUnlock()

	probers := make([]Prober, 0, len(s.probers))
	for _, p := range s.probers {
		probers = append(probers, p)
	}
	sort.Slice(probers, func(i, j int) bool { return probers[i].Name() < probers[j].Name() })
	return probers
}

// Names lists every registered provider name
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.text)+len(s.image))
	for name := range s.text {
		names = append(names, name)
	}
	for name := range s.image {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.text) + len(s.image)
}
