package breaker

import (
	"sort"
	"sync"
)

// Имена защищаемых зависимостей.
const (
	DepModelInference = "model-inference"
	DepObjectStorage  = "object-storage"
	DepPayments       = "payments"
	DepNotifications  = "notifications"
)

// Set — именованный набор breaker'ов, по одному на зависимость.
//
// Конструируется один раз при старте процесса и внедряется по ссылке
// в потребителей — глобальных синглтонов нет, в тестах подставляются
// fake-наборы.
type Set struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewSet создаёт пустой набор.
func NewSet() *Set {
	return &Set{breakers: make(map[string]*Breaker)}
}

// DefaultSet создаёт набор breaker'ов для стандартных зависимостей
// с дефолтными порогами.
func DefaultSet(cfg Config) *Set {
	s := NewSet()
	for _, name := range []string{DepModelInference, DepObjectStorage, DepPayments, DepNotifications} {
		s.Add(New(name, cfg))
	}
	return s
}

// Add добавляет breaker в набор.
func (s *Set) Add(b *Breaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers[b.Name()] = b
}

// Get возвращает breaker по имени зависимости, nil если нет.
func (s *Set) Get(name string) *Breaker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.breakers[name]
}

// Names возвращает отсортированный список имён.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots возвращает срезы состояния всех breaker'ов.
func (s *Set) Snapshots() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	snaps := make([]Snapshot, 0, len(names))
	for _, name := range names {
		snaps = append(snaps, s.breakers[name].Snapshot())
	}
	return snaps
}
