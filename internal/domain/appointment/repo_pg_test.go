package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

var appointmentColumns = []string{
	"id", "doctor_id", "doctor_name", "scheduled_at", "location", "status", "check_in_at",
	"patient_full_name", "patient_cpf", "patient_birth_date", "patient_mother_name", "patient_sex",
	"patient_email", "patient_address", "patient_updated_at",
}

func newMockRepo(t *testing.T) (*PGRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPGRepository(mock), mock
}

func anaRow(at time.Time) *pgxmock.Rows {
	var checkIn *time.Time
	return pgxmock.NewRows(appointmentColumns).AddRow(
		"apt-001", "doc-001", "Dra. Helena Costa", at, "Sala 3", "scheduled", checkIn,
		"Ana Oliveira", "12345678901", "", "", "", "", "", at,
	)
}

func TestPGRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM appointments WHERE id = \\$1").
		WithArgs("apt-001").
		WillReturnRows(anaRow(at))

	a, err := repo.Get(context.Background(), "apt-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Patient.FullName != "Ana Oliveira" || a.Status != StatusScheduled || a.CheckInAt != nil {
		t.Errorf("unexpected appointment %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGRepository_Get_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT .+ FROM appointments").
		WithArgs("apt-999").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.Get(context.Background(), "apt-999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepository_Update_ConfirmsUnderLock(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM appointments WHERE id = \\$1 FOR UPDATE").
		WithArgs("apt-001").
		WillReturnRows(anaRow(at))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(repo, WithClock(func() time.Time { return at }))
	a, err := svc.ConfirmPresence(context.Background(), "apt-001", anaRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", a.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGRepository_Update_MismatchRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FOR UPDATE").
		WithArgs("apt-001").
		WillReturnRows(anaRow(at))
	mock.ExpectRollback()

	req := anaRequest()
	req.CPF = "999.999.999-99"
	_, err := NewService(repo).ConfirmPresence(context.Background(), "apt-001", req)
	if !apperr.Is(err, apperr.Mismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGRepository_Update_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FOR UPDATE").
		WithArgs("apt-404").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "apt-404", func(*Appointment) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := Fixtures(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))[0]

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Save(context.Background(), &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
