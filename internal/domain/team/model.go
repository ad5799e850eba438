package team

import (
	"strings"
	"time"
)

type CodeStatus string

const (
	StatusActive    CodeStatus = "active"
	StatusExpired   CodeStatus = "expired"
	StatusExhausted CodeStatus = "exhausted"
	StatusRevoked   CodeStatus = "revoked"
)

type CodeKind string

const (
	KindJoin   CodeKind = "join"
	KindInvite CodeKind = "invite"
)

// Member is a secretary admitted to the team by redeeming a join code.
type Member struct {
	ID       string    `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// JoinCode grants team access to whoever redeems it while it is active.
type JoinCode struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	UsesLeft     int        `json:"usesLeft"`
	Status       CodeStatus `json:"status"`
	InviteeName  string     `json:"secretaryName,omitempty"`
	InviteeEmail string     `json:"secretaryEmail,omitempty"`
	Kind         CodeKind   `json:"-"`
	MaxUses      int        `json:"-"`
	CreatedAt    time.Time  `json:"-"`
}

// EffectiveStatus derives the status at now. Revocation wins, then
// exhaustion, then expiry.
func (c *JoinCode) EffectiveStatus(now time.Time) CodeStatus {
	switch {
	case c.Status == StatusRevoked:
		return StatusRevoked
	case c.UsesLeft <= 0:
		return StatusExhausted
	case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
		return StatusExpired
	}
	return c.Status
}

// clone returns a deep copy so callers never alias stored state.
func (c *JoinCode) clone() *JoinCode {
	out := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// Invite is the response shape of the invite-flavored create.
type Invite struct {
	InviteID                string     `json:"inviteId"`
	Code                    string     `json:"code"`
	Status                  string     `json:"status"`
	UsesRemaining           int        `json:"usesRemaining"`
	ExpiresAt               *time.Time `json:"expiresAt"`
	SecretaryFullName       string     `json:"secretaryFullName"`
	SecretaryCorporateEmail string     `json:"secretaryCorporateEmail"`
}

func inviteFromCode(c *JoinCode, now time.Time) *Invite {
	return &Invite{
		InviteID:                c.ID,
		Code:                    c.Code,
		Status:                  strings.ToUpper(string(c.EffectiveStatus(now))),
		UsesRemaining:           c.UsesLeft,
		ExpiresAt:               c.ExpiresAt,
		SecretaryFullName:       c.InviteeName,
		SecretaryCorporateEmail: c.InviteeEmail,
	}
}

// Snapshot is the full team state returned by List.
type Snapshot struct {
	Members []Member   `json:"members"`
	Codes   []JoinCode `json:"codes"`
}

type CreateCodeRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type CreateInviteRequest struct {
	MaxUses                 *int       `json:"maxUses"`
	ExpiresAt               *time.Time `json:"expiresAt"`
	SecretaryFullName       string     `json:"secretaryFullName"`
	SecretaryCorporateEmail string     `json:"secretaryCorporateEmail"`
}

type JoinRequest struct {
	Code        string `json:"code"`
	AcceptTerms bool   `json:"acceptTerms"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

type JoinResult struct {
	RedirectTo string `json:"redirectTo"`
}
