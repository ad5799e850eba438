package appointment

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("appointment not found")

// Repository stores appointments. Reads return copies.
type Repository interface {
	Get(ctx context.Context, id string) (*Appointment, error)
	// Save inserts or replaces a.
	Save(ctx context.Context, a *Appointment) error
	// Update applies fn to a copy of the appointment while holding it
	// exclusively. The change is stored only when fn returns nil.
	Update(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error)
}
