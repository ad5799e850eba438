package team

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps team state in process memory. Codes are held
// most-recent-first and members in join order.
type MemoryRepository struct {
	mu      sync.RWMutex
	codes   []*JoinCode
	members []Member
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func matches(c *JoinCode, idOrCode string) bool {
	return c.ID == idOrCode || strings.EqualFold(c.Code, idOrCode)
}

func (r *MemoryRepository) find(idOrCode string) *JoinCode {
	for _, c := range r.codes {
		if matches(c, idOrCode) {
			return c
		}
	}
	return nil
}

func (r *MemoryRepository) CreateCode(_ context.Context, c *JoinCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.codes {
		if existing.Code == c.Code {
			return ErrCodeTaken
		}
	}
	r.codes = append([]*JoinCode{c.clone()}, r.codes...)
	return nil
}

func (r *MemoryRepository) GetCode(_ context.Context, idOrCode string) (*JoinCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.find(idOrCode)
	if c == nil {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

func (r *MemoryRepository) ListCodes(_ context.Context) ([]JoinCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JoinCode, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, *c.clone())
	}
	return out, nil
}

func (r *MemoryRepository) RevokeCode(_ context.Context, idOrCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.find(idOrCode); c != nil {
		c.Status = StatusRevoked
		c.UsesLeft = 0
	}
	return nil
}

func (r *MemoryRepository) ListMembers(_ context.Context) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out, nil
}

func (r *MemoryRepository) RemoveMember(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.members[:0]
	for _, m := range r.members {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	r.members = kept
	return nil
}

func (r *MemoryRepository) Redeem(_ context.Context, code string, m Member, now time.Time) (*JoinCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(code)
	if c == nil {
		return nil, ErrNotFound
	}
	if err := redeemError(c, now); err != nil {
		return nil, err
	}
	c.UsesLeft--
	if c.UsesLeft == 0 {
		c.Status = StatusExhausted
	}
	r.members = append(r.members, m)
	return c.clone(), nil
}

func (r *MemoryRepository) MarkExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.codes {
		if eff := c.EffectiveStatus(now); eff != c.Status {
			c.Status = eff
			n++
		}
	}
	return n, nil
}
