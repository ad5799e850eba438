package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medagenda/medagenda/internal/platform/db"
)

const uniqueViolation = "23505"

type PGRepository struct {
	db db.DB
}

func NewPGRepository(d db.DB) *PGRepository {
	return &PGRepository{db: d}
}

const codeCols = `id, code, kind, expires_at, uses_left, max_uses, status, invitee_name, invitee_email, created_at`

func scanCode(row pgx.Row) (*JoinCode, error) {
	var c JoinCode
	var id uuid.UUID
	var kind, status string
	if err := row.Scan(&id, &c.Code, &kind, &c.ExpiresAt, &c.UsesLeft, &c.MaxUses, &status,
		&c.InviteeName, &c.InviteeEmail, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = id.String()
	c.Kind = CodeKind(kind)
	c.Status = CodeStatus(status)
	return &c, nil
}

// lookupArgs matches either the uuid id or the code text. Non-uuid input can
// only ever match by code.
func lookupArgs(idOrCode string) (any, string) {
	if id, err := uuid.Parse(idOrCode); err == nil {
		return id, idOrCode
	}
	return nil, idOrCode
}

func (r *PGRepository) CreateCode(ctx context.Context, c *JoinCode) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("join code id: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO join_codes (`+codeCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, c.Code, string(c.Kind), c.ExpiresAt, c.UsesLeft, c.MaxUses, string(c.Status),
		c.InviteeName, c.InviteeEmail, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert join code: %w", err)
	}
	return nil
}

func (r *PGRepository) GetCode(ctx context.Context, idOrCode string) (*JoinCode, error) {
	id, code := lookupArgs(idOrCode)
	c, err := scanCode(r.db.QueryRow(ctx,
		`SELECT `+codeCols+` FROM join_codes WHERE id = $1 OR code = upper($2)`, id, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get join code: %w", err)
	}
	return c, nil
}

func (r *PGRepository) ListCodes(ctx context.Context) ([]JoinCode, error) {
	rows, err := r.db.Query(ctx, `SELECT `+codeCols+` FROM join_codes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list join codes: %w", err)
	}
	defer rows.Close()

	var out []JoinCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan join code: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *PGRepository) RevokeCode(ctx context.Context, idOrCode string) error {
	id, code := lookupArgs(idOrCode)
	_, err := r.db.Exec(ctx,
		`UPDATE join_codes SET status = 'revoked', uses_left = 0 WHERE id = $1 OR code = upper($2)`, id, code)
	if err != nil {
		return fmt.Errorf("revoke join code: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, full_name, email, phone, joined_at FROM team_members ORDER BY joined_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		var id uuid.UUID
		if err := rows.Scan(&id, &m.FullName, &m.Email, &m.Phone, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.ID = id.String()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PGRepository) RemoveMember(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		// Not a member id we could have issued.
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM team_members WHERE id = $1`, uid); err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return nil
}

// Redeem decrements the code with a conditional UPDATE so concurrent
// redemptions of a single-use code admit exactly one member.
func (r *PGRepository) Redeem(ctx context.Context, code string, m Member, now time.Time) (*JoinCode, error) {
	memberID, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("member id: %w", err)
	}

	var redeemed *JoinCode
	err = db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		c, err := scanCode(tx.QueryRow(ctx, `
			UPDATE join_codes
			SET uses_left = uses_left - 1,
			    status = CASE WHEN uses_left - 1 = 0 THEN 'exhausted' ELSE status END
			WHERE code = upper($1)
			  AND status = 'active'
			  AND uses_left > 0
			  AND (expires_at IS NULL OR expires_at >= $2)
			RETURNING `+codeCols, code, now))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classify(ctx, tx, code, now)
		}
		if err != nil {
			return fmt.Errorf("redeem join code: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO team_members (id, full_name, email, phone, joined_at)
			VALUES ($1, $2, $3, $4, $5)`,
			memberID, m.FullName, m.Email, m.Phone, m.JoinedAt,
		); err != nil {
			return fmt.Errorf("insert team member: %w", err)
		}
		redeemed = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}

// classify explains why the conditional update matched nothing.
func (r *PGRepository) classify(ctx context.Context, tx pgx.Tx, code string, now time.Time) error {
	c, err := scanCode(tx.QueryRow(ctx, `SELECT `+codeCols+` FROM join_codes WHERE code = upper($1)`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get join code: %w", err)
	}
	if err := redeemError(c, now); err != nil {
		return err
	}
	// Stored status is not active without an effective reason; treat as expired.
	return ErrCodeExpired
}

func (r *PGRepository) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE join_codes
		SET status = CASE WHEN uses_left <= 0 THEN 'exhausted' ELSE 'expired' END
		WHERE status = 'active'
		  AND (uses_left <= 0 OR (expires_at IS NOT NULL AND expires_at < $1))`, now)
	if err != nil {
		return 0, fmt.Errorf("mark expired join codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
