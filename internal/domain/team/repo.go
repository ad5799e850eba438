package team

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("join code not found")
	ErrCodeTaken     = errors.New("join code already exists")
	ErrCodeRevoked   = errors.New("join code revoked")
	ErrCodeExpired   = errors.New("join code expired")
	ErrCodeExhausted = errors.New("join code has no uses left")
)

// Repository stores team members and join codes. Reads return copies.
type Repository interface {
	// CreateCode stores c, returning ErrCodeTaken when c.Code is in use.
	CreateCode(ctx context.Context, c *JoinCode) error
	GetCode(ctx context.Context, idOrCode string) (*JoinCode, error)
	// ListCodes returns codes most-recent-first.
	ListCodes(ctx context.Context) ([]JoinCode, error)
	// RevokeCode is a no-op when the code does not exist.
	RevokeCode(ctx context.Context, idOrCode string) error
	ListMembers(ctx context.Context) ([]Member, error)
	// RemoveMember is a no-op when the member does not exist.
	RemoveMember(ctx context.Context, id string) error
	// Redeem consumes one use of code and adds m to the team in one step.
	Redeem(ctx context.Context, code string, m Member, now time.Time) (*JoinCode, error)
	// MarkExpired persists the effective status of codes that are no longer
	// active and returns how many changed.
	MarkExpired(ctx context.Context, now time.Time) (int, error)
}

// redeemError maps a code that cannot be redeemed to its sentinel.
func redeemError(c *JoinCode, now time.Time) error {
	switch c.EffectiveStatus(now) {
	case StatusRevoked:
		return ErrCodeRevoked
	case StatusExhausted:
		return ErrCodeExhausted
	case StatusExpired:
		return ErrCodeExpired
	}
	return nil
}
