package appointment

import (
	"context"
	"sync"
)

type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
}

func NewMemoryRepository(seed ...Appointment) *MemoryRepository {
	r := &MemoryRepository{appointments: make(map[string]*Appointment, len(seed))}
	for i := range seed {
		r.appointments[seed[i].ID] = seed[i].clone()
	}
	return r
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a.clone()
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, fn func(a *Appointment) error) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	draft := current.clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	r.appointments[id] = draft
	return draft.clone(), nil
}
