package zones

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry holds named zones: declared requirement sets the presentation
// layer looks up by route name instead of constructing inline.
type Registry struct {
	lock  sync.RWMutex
	zones map[string]Requirement
}

func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]Requirement)}
}

// Register declares or replaces a named zone.
func (r *Registry) Register(name string, req Requirement) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.zones[name] = req
}

// Get returns the requirement for a named zone.
func (r *Registry) Get(name string) (Requirement, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	req, ok := r.zones[name]
	return req, ok
}

// Evaluate checks a named zone against the given state.
func (r *Registry) Evaluate(evaluator *Evaluator, name string, state State) (Decision, error) {
	req, ok := r.Get(name)
	if !ok {
		return Decision{}, errors.Errorf("[Registry.Evaluate] unknown zone %q", name)
	}
	return evaluator.Evaluate(req, state), nil
}
