package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medagenda/medagenda/internal/platform/db"
)

type PGRepository struct {
	db db.DB
}

func NewPGRepository(d db.DB) *PGRepository {
	return &PGRepository{db: d}
}

const appointmentCols = `id, doctor_id, doctor_name, scheduled_at, location, status, check_in_at,
	patient_full_name, patient_cpf, patient_birth_date, patient_mother_name, patient_sex,
	patient_email, patient_address, patient_updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	p := &a.Patient
	if err := row.Scan(&a.ID, &a.Doctor.ID, &a.Doctor.Name, &a.ScheduledAt, &a.Location, &status, &a.CheckInAt,
		&p.FullName, &p.CPF, &p.BirthDate, &p.MotherName, &p.Sex,
		&p.Email, &p.Address, &p.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func upsert(ctx context.Context, q db.Querier, a *Appointment) error {
	p := a.Patient
	_, err := q.Exec(ctx, `
		INSERT INTO appointments (`+appointmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			doctor_id = EXCLUDED.doctor_id,
			doctor_name = EXCLUDED.doctor_name,
			scheduled_at = EXCLUDED.scheduled_at,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			check_in_at = EXCLUDED.check_in_at,
			patient_full_name = EXCLUDED.patient_full_name,
			patient_cpf = EXCLUDED.patient_cpf,
			patient_birth_date = EXCLUDED.patient_birth_date,
			patient_mother_name = EXCLUDED.patient_mother_name,
			patient_sex = EXCLUDED.patient_sex,
			patient_email = EXCLUDED.patient_email,
			patient_address = EXCLUDED.patient_address,
			patient_updated_at = EXCLUDED.patient_updated_at`,
		a.ID, a.Doctor.ID, a.Doctor.Name, a.ScheduledAt, a.Location, string(a.Status), a.CheckInAt,
		p.FullName, p.CPF, p.BirthDate, p.MotherName, p.Sex, p.Email, p.Address, p.UpdatedAt,
	)
	return err
}

func (r *PGRepository) Save(ctx context.Context, a *Appointment) error {
	if err := upsert(ctx, r.db, a); err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

// Update locks the row for the duration of fn.
func (r *PGRepository) Update(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error) {
	var updated *Appointment
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		a, err := scanAppointment(tx.QueryRow(ctx,
			`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock appointment: %w", err)
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := upsert(ctx, tx, a); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
