package unit

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр task unit'ов по имени.
//
// Конструируется один раз при старте процесса и внедряется по ссылке
// в оркестратор и в plan.Registry. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Unit)}
}

// DefaultRegistry создаёт реестр со всеми встроенными unit'ами.
func DefaultRegistry(clients *Clients) *Registry {
	r := NewRegistry()

	r.Register(NewDocumentExtractUnit(clients.Inference))
	r.Register(NewFieldValidateUnit())
	r.Register(NewClassifyUnit(clients.Inference))
	r.Register(NewSummarizeUnit(clients.Inference))
	r.Register(NewArchiveUnit(clients.Storage))
	r.Register(NewPaymentCaptureUnit(clients.Payments))
	r.Register(NewNotifyUnit(clients.Notifier))

	return r
}

// Register регистрирует unit в реестре.
// Unit с тем же именем перезаписывается.
func (r *Registry) Register(u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.Name()] = u
}

// Get возвращает unit по имени.
// Возвращает ErrUnitNotFound, если unit не зарегистрирован.
func (r *Registry) Get(name string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.units[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
	}
	return u, nil
}

// Has проверяет, зарегистрирован ли unit.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.units[name]
	return exists
}

// Names возвращает отсортированный список имён unit'ов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество зарегистрированных unit'ов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}
