package appointment

import "time"

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Doctor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Patient is the identity and demographics recorded on an appointment.
type Patient struct {
	FullName   string    `json:"fullName"`
	CPF        string    `json:"cpf"`
	BirthDate  string    `json:"birthDate,omitempty"`
	MotherName string    `json:"motherName,omitempty"`
	Sex        string    `json:"sex,omitempty"`
	Email      string    `json:"email,omitempty"`
	Address    string    `json:"address,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Appointment struct {
	ID          string     `json:"id"`
	Doctor      Doctor     `json:"doctor"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Location    string     `json:"location"`
	Status      Status     `json:"status"`
	CheckInAt   *time.Time `json:"checkInAt"`
	Patient     Patient    `json:"patient"`
}

func (a *Appointment) clone() *Appointment {
	out := *a
	if a.CheckInAt != nil {
		t := *a.CheckInAt
		out.CheckInAt = &t
	}
	return &out
}

// CheckInSummary is what the check-in page may show before the patient
// identifies themself. It carries no patient data.
type CheckInSummary struct {
	ID          string     `json:"id"`
	Doctor      Doctor     `json:"doctor"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Location    string     `json:"location"`
	Status      Status     `json:"status"`
	CheckInAt   *time.Time `json:"checkInAt"`
}

type ConfirmRequest struct {
	FullName   string `json:"fullName"`
	CPF        string `json:"cpf"`
	BirthDate  string `json:"birthDate"`
	MotherName string `json:"motherName"`
	Sex        string `json:"sex"`
	Email      string `json:"email"`
	Address    string `json:"address"`
}
